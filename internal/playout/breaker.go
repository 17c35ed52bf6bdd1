package playout

import "sync/atomic"

// circuitBreaker latches after MaxSendErrors consecutive Transport.send_frame
// failures. Once tripped, send_frame is short-circuited, but every other
// engine behavior continues (frames still drain, the scheduler keeps
// ticking) so that a later Stop/Start resumes cleanly.
type circuitBreaker struct {
	threshold int
	errors    atomic.Int32
	tripped   atomic.Bool
}

func newCircuitBreaker(threshold int) *circuitBreaker {
	return &circuitBreaker{threshold: threshold}
}

// recordSuccess resets the consecutive-error counter.
func (b *circuitBreaker) recordSuccess() {
	b.errors.Store(0)
}

// recordFailure increments the counter and trips the breaker once it
// reaches threshold. Returns true exactly the first time it trips.
func (b *circuitBreaker) recordFailure() (justTripped bool) {
	n := b.errors.Add(1)
	if n >= int32(b.threshold) && !b.tripped.Swap(true) {
		return true
	}
	return false
}

func (b *circuitBreaker) isTripped() bool {
	return b.tripped.Load()
}

// reset clears the breaker so a subsequent Start() resumes sending.
func (b *circuitBreaker) reset() {
	b.errors.Store(0)
	b.tripped.Store(false)
}
