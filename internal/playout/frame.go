// Package playout implements the outbound RTP playout engine: frame
// accumulation, jitter-buffered playback, periodic scheduling, barge-in
// cancellation and fill-audio generation for a telephony call driven by a
// remote realtime speech AI.
package playout

import "sync"

// FrameSize is one 20ms frame of G.711 audio at 8kHz: one byte per sample.
const FrameSize = 160

// Frame is an opaque, fixed-size block of G.711 audio. Ownership is always
// exclusive — a Frame is either scratch data in the Accumulator, queued in
// the Jitter Queue, in flight through the scheduler, or sitting in the pool.
type Frame struct {
	data [FrameSize]byte
}

// Bytes returns the frame's payload. Callers must not retain the slice past
// the point the frame is returned to the pool.
func (f *Frame) Bytes() []byte { return f.data[:] }

var framePool = sync.Pool{
	New: func() any { return &Frame{} },
}

// getFrame rents a zeroed frame from the pool.
func getFrame() *Frame {
	f := framePool.Get().(*Frame)
	for i := range f.data {
		f.data[i] = 0
	}
	return f
}

// putFrame returns a frame to the pool. Callers must not use f afterwards.
func putFrame(f *Frame) {
	if f == nil {
		return
	}
	framePool.Put(f)
}
