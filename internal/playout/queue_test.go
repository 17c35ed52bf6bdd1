package playout

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJitterQueueFIFOOrder(t *testing.T) {
	q := newJitterQueue(TrimPolicyCapTrim, nil)
	for i := 0; i < 5; i++ {
		f := getFrame()
		f.data[0] = byte(i)
		require.Empty(t, q.enqueue(f, 1))
	}
	require.Equal(t, 5, q.len())

	for i := 0; i < 5; i++ {
		item, ok := q.tryDequeue()
		require.True(t, ok)
		require.Equal(t, byte(i), item.frame.data[0])
		putFrame(item.frame)
	}
	_, ok := q.tryDequeue()
	require.False(t, ok)
}

func TestJitterQueueTryPeekEpoch(t *testing.T) {
	q := newJitterQueue(TrimPolicyCapTrim, nil)
	_, ok := q.tryPeekEpoch()
	require.False(t, ok)

	q.enqueue(getFrame(), 7)
	epoch, ok := q.tryPeekEpoch()
	require.True(t, ok)
	require.Equal(t, uint64(7), epoch)
}

func TestJitterQueueCapTrimDropsOldestToTarget(t *testing.T) {
	q := newJitterQueue(TrimPolicyCapTrim, nil)
	for i := 0; i < MaxQueue; i++ {
		q.enqueue(getFrame(), 1)
	}
	require.Equal(t, MaxQueue, q.len())

	dropped := q.enqueue(getFrame(), 1)
	require.NotEmpty(t, dropped)
	require.LessOrEqual(t, q.len(), MaxQueue)
	require.Equal(t, TrimTarget, q.len())
}

func TestJitterQueueRejectDropsIncomingFrame(t *testing.T) {
	q := newJitterQueue(TrimPolicyReject, nil)
	for i := 0; i < MaxQueue; i++ {
		q.enqueue(getFrame(), 1)
	}
	require.Equal(t, MaxQueue, q.len())

	incoming := getFrame()
	dropped := q.enqueue(incoming, 1)
	require.Len(t, dropped, 1)
	require.Same(t, incoming, dropped[0])
	require.Equal(t, MaxQueue, q.len())
}

func TestJitterQueueDrainAllEmptiesQueue(t *testing.T) {
	q := newJitterQueue(TrimPolicyCapTrim, nil)
	for i := 0; i < 10; i++ {
		q.enqueue(getFrame(), 1)
	}
	drained := q.drainAll()
	require.Len(t, drained, 10)
	require.Equal(t, 0, q.len())
	_, ok := q.tryPeekEpoch()
	require.False(t, ok)
}

func TestJitterQueueNeverExceedsMaxQueue(t *testing.T) {
	q := newJitterQueue(TrimPolicyCapTrim, nil)
	for i := 0; i < MaxQueue*3; i++ {
		q.enqueue(getFrame(), 1)
		require.LessOrEqual(t, q.len(), MaxQueue)
	}
}
