package playout

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchedulerTicksOncePerStep(t *testing.T) {
	waiter := newStepWaiter()
	var ticks atomic.Int32
	s := newScheduler(waiter, func() { ticks.Add(1) }, func() {})
	s.start()
	defer s.stopAndJoin()

	for i := 0; i < 5; i++ {
		waiter.step <- struct{}{}
	}

	require.Eventually(t, func() bool { return ticks.Load() == 5 }, time.Second, time.Millisecond)
}

func TestSchedulerRequestClearInvokesOnClearBeforeNextTick(t *testing.T) {
	waiter := newStepWaiter()
	var ticks, clears atomic.Int32
	s := newScheduler(waiter, func() { ticks.Add(1) }, func() { clears.Add(1) })
	s.start()
	defer s.stopAndJoin()

	waiter.step <- struct{}{}
	require.Eventually(t, func() bool { return ticks.Load() == 1 }, time.Second, time.Millisecond)

	s.requestClear()
	require.Eventually(t, func() bool { return clears.Load() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, int32(1), ticks.Load(), "onClear must not be followed by an onTick in the same iteration")

	waiter.step <- struct{}{}
	require.Eventually(t, func() bool { return ticks.Load() == 2 }, time.Second, time.Millisecond)
}

func TestSchedulerStartIsIdempotent(t *testing.T) {
	waiter := newStepWaiter()
	var ticks atomic.Int32
	s := newScheduler(waiter, func() { ticks.Add(1) }, func() {})
	s.start()
	s.start()
	defer s.stopAndJoin()

	waiter.step <- struct{}{}
	require.Eventually(t, func() bool { return ticks.Load() == 1 }, time.Second, time.Millisecond)
}

func TestSchedulerStopAndJoinIsIdempotent(t *testing.T) {
	waiter := newStepWaiter()
	s := newScheduler(waiter, func() {}, func() {})
	s.start()
	s.stopAndJoin()
	s.stopAndJoin()
}
