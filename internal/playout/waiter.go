package playout

import "time"

// spinThreshold is how close to the deadline the waiter switches from
// sleeping to a tight spin, trading CPU for sub-millisecond wake accuracy
// on the last stretch (spec §4.3 step 3).
const spinThreshold = 2 * time.Millisecond

// maxWait caps a single wait call even if the computed deadline is further
// out, so a stalled producer can never starve the barge-in wake check.
const maxWait = 100 * time.Millisecond

// PeriodicWaiter is the platform capability the Periodic Scheduler (C3)
// needs: a monotonic-clock wait that can be interrupted immediately by a
// concurrent call to Wake. Implementations live in waiter_linux.go
// (timerfd plus a wake pipe, the OS's high-resolution waitable primitive) and
// waiter_other.go (a portable time.Timer + channel fallback).
type PeriodicWaiter interface {
	// WaitUntil blocks until deadline, until Wake is called, or until
	// maxWait elapses, whichever is first. Returns true if woken early.
	WaitUntil(deadline time.Time) (woken bool)
	// Wake interrupts any in-progress or future WaitUntil immediately.
	// Safe to call whether or not a wait is in progress, and from any
	// goroutine.
	Wake()
	// Close releases OS resources. Not safe to call concurrently with
	// WaitUntil.
	Close() error
}
