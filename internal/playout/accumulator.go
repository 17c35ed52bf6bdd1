package playout

import "sync"

// MaxAccumulator bounds the scratch buffer the Accumulator can grow to.
const MaxAccumulator = 65536

// OverflowPolicy selects what the Accumulator does when a write would push
// the scratch buffer past MaxAccumulator.
type OverflowPolicy int

const (
	// OverflowDrainPartial drains whatever complete frames it can from the
	// write and drops the remainder. This is the default: it favors
	// keeping audio flowing over preserving every byte of a burst that
	// outran the buffer.
	OverflowDrainPartial OverflowPolicy = iota
	// OverflowRefuse drops the entire incoming write whenever it would push
	// the scratch buffer past MaxAccumulator.
	OverflowRefuse
)

// accumulator is the Frame Accumulator (spec component C1): it converts the
// producer's variable-length byte writes into FrameSize-aligned frames
// enqueued into a Jitter Queue. buffer/flush/reset mutually exclude each
// other via mu; the scheduler never touches this type.
type accumulator struct {
	mu       sync.Mutex
	scratch  []byte
	overflow OverflowPolicy
	onLog    func(string)
}

func newAccumulator(policy OverflowPolicy, onLog func(string)) *accumulator {
	if onLog == nil {
		onLog = func(string) {}
	}
	return &accumulator{
		scratch:  make([]byte, 0, FrameSize*8),
		overflow: policy,
		onLog:    onLog,
	}
}

// buffer appends b to the scratch tail, then extracts every complete frame
// it can and hands each to emit (tagged with epoch by the caller). A
// nil/empty b is a silent no-op.
func (a *accumulator) buffer(b []byte, emit func([]byte)) {
	if len(b) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	room := MaxAccumulator - len(a.scratch)
	if len(b) > room {
		switch a.overflow {
		case OverflowRefuse:
			a.onLog("accumulator overflow: refusing write that would exceed capacity")
			return
		default: // OverflowDrainPartial
			a.onLog("accumulator overflow: draining available frames, dropping remainder")
			b = b[:room]
		}
	}

	a.scratch = a.growAndAppend(a.scratch, b)

	for len(a.scratch) >= FrameSize {
		frame := make([]byte, FrameSize)
		copy(frame, a.scratch[:FrameSize])
		a.scratch = a.scratch[FrameSize:]
		emit(frame)
	}
}

// growAndAppend appends src to dst, doubling capacity as needed up to
// MaxAccumulator rather than relying on append's default growth policy,
// since the cap must never exceed MaxAccumulator.
func (a *accumulator) growAndAppend(dst, src []byte) []byte {
	need := len(dst) + len(src)
	if cap(dst) < need {
		newCap := cap(dst)
		if newCap == 0 {
			newCap = FrameSize * 8
		}
		for newCap < need {
			newCap *= 2
		}
		if newCap > MaxAccumulator {
			newCap = MaxAccumulator
		}
		grown := make([]byte, len(dst), newCap)
		copy(grown, dst)
		dst = grown
	}
	return append(dst, src...)
}

// flush pads a non-empty tail with silenceByte to a full frame and hands it
// to emit, then clears the tail. A no-op when the tail is empty.
func (a *accumulator) flush(silenceByte byte, emit func([]byte)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.scratch) == 0 {
		return
	}
	frame := make([]byte, FrameSize)
	for i := range frame {
		frame[i] = silenceByte
	}
	copy(frame, a.scratch)
	a.scratch = a.scratch[:0]
	emit(frame)
}

// reset clears the tail without emitting anything (used on barge-in).
func (a *accumulator) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scratch = a.scratch[:0]
}

func (a *accumulator) tailLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.scratch)
}
