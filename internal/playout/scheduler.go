package playout

import (
	"sync"
	"sync/atomic"
	"time"
)

// tickPeriod is the nominal wall-clock period between ticks (20ms = one
// G.711 frame).
const tickPeriod = 20 * time.Millisecond

// driftResyncThreshold is how far behind next_tick wall-clock can drift
// before the scheduler gives up catching up and resynchronises (spec §4.3
// step 7, and invariant I4's "after which the scheduler resynchronises").
const driftResyncThreshold = 100 * time.Millisecond

// scheduler is the Periodic Scheduler (C3): a single dedicated goroutine
// that invokes onTick exactly once per tickPeriod of wall-clock time,
// interruptible by barge-in via clearRequested + the waiter's Wake.
type scheduler struct {
	waiter         PeriodicWaiter
	onTick         func()
	onClear        func()
	clearRequested atomic.Bool
	running        atomic.Bool
	stop           chan struct{}
	done           chan struct{}
	wg             sync.WaitGroup
}

func newScheduler(waiter PeriodicWaiter, onTick, onClear func()) *scheduler {
	return &scheduler{
		waiter:  waiter,
		onTick:  onTick,
		onClear: onClear,
	}
}

// start launches the scheduler goroutine. Idempotent: a second call while
// already running is a no-op.
func (s *scheduler) start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.run()
}

// stopAndJoin signals shutdown, wakes the waiter, and joins the scheduler
// goroutine with a 500ms timeout. Idempotent.
func (s *scheduler) stopAndJoin() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stop)
	s.waiter.Wake()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
	}
}

// requestClear sets clear_requested and wakes the scheduler so barge-in
// latency stays within the ≤2ms budget regardless of where in the sleep the
// scheduler currently is.
func (s *scheduler) requestClear() {
	s.clearRequested.Store(true)
	s.waiter.Wake()
}

func (s *scheduler) run() {
	defer s.wg.Done()
	nextTick := time.Now().Add(tickPeriod)

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if s.clearRequested.Swap(false) {
			s.onClear()
		}

		wait := time.Until(nextTick)
		if wait > 0 {
			s.waiter.WaitUntil(nextTick)
		}

		select {
		case <-s.stop:
			return
		default:
		}

		if s.clearRequested.Load() {
			continue // step 4: re-check clear_requested; if set, go to step 1
		}

		s.onTick()
		nextTick = nextTick.Add(tickPeriod)

		if now := time.Now(); now.Sub(nextTick) > driftResyncThreshold {
			nextTick = now.Add(tickPeriod)
		}
	}
}
