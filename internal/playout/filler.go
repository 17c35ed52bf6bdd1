package playout

import (
	"math"
	"math/rand"
)

// tapBaseAmplitude is the PCM16-scale amplitude a tap starts from before
// per-burst randomization and per-sample decay.
const tapBaseAmplitude = 1200.0

// tapDecay is the per-sample geometric decay factor within a tap.
const tapDecay = 0.65

// fillerPhase tracks whether the filler is between bursts or between the
// individual clicks of a burst in progress.
type fillerPhase int

const (
	phasePausing fillerPhase = iota
	phaseBetweenClicks
)

// filler is the Filler Generator (spec §4.5): a small FSM that produces one
// encoded G.711 frame per call, modelling a subtle keyboard-click rhythm for
// cold-start fill. A tap fills a single frame, so there is no separate
// in-burst phase: the filler is either Pausing between bursts or waiting
// BetweenClicks of the burst in progress, and emits a tap whenever its
// frame countdown reaches zero.
type filler struct {
	codec Codec
	rng   *rand.Rand

	phase              fillerPhase
	framesUntilNextTap int
	tapsInBurst        int
	tapIndex           int
	burstAmp           float64
}

func newFiller(codec Codec) *filler {
	f := &filler{codec: codec, rng: rand.New(rand.NewSource(0x5eed))}
	f.reset()
	return f
}

// reset returns the filler to a fresh between-bursts state, used on
// construction and on every barge-in (spec §4.4 execute_clear step 4).
func (f *filler) reset() {
	f.phase = phasePausing
	f.framesUntilNextTap = f.randRange(20, 35)
	f.tapsInBurst = 0
	f.tapIndex = 0
	f.burstAmp = 1.0
}

func (f *filler) randRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + f.rng.Intn(hi-lo+1)
}

// next produces the next FrameSize-byte encoded frame: either silence
// (between clicks / between bursts) or a decaying, noise-modulated tap.
func (f *filler) next() []byte {
	if f.framesUntilNextTap > 0 {
		f.framesUntilNextTap--
		return f.silenceFrame()
	}

	if f.tapIndex == 0 {
		f.tapsInBurst = f.randRange(2, 4)
		f.burstAmp = 0.8 + f.rng.Float64()*0.4 // [0.8, 1.2]
	}

	frame := f.tapFrame()
	f.tapIndex++
	if f.tapIndex >= f.tapsInBurst {
		f.tapIndex = 0
		f.phase = phasePausing
		f.framesUntilNextTap = f.randRange(20, 35)
	} else {
		f.phase = phaseBetweenClicks
		f.framesUntilNextTap = f.randRange(5, 8)
	}
	return frame
}

func (f *filler) tapFrame() []byte {
	tapLen := f.randRange(8, 12)
	amp := tapBaseAmplitude * f.burstAmp

	pcm := make([]int16, FrameSize)
	for i := 0; i < tapLen && i < FrameSize; i++ {
		decay := math.Pow(tapDecay, float64(i))
		noise := f.rng.Float64()*2 - 1 // [-1, 1]
		v := amp * decay * noise
		pcm[i] = clampInt16(v)
	}

	out := make([]byte, FrameSize)
	for i, s := range pcm {
		out[i] = f.codec.EncodePCM16(s)
	}
	return out
}

func (f *filler) silenceFrame() []byte {
	out := make([]byte, FrameSize)
	sb := f.codec.SilenceByte()
	for i := range out {
		out[i] = sb
	}
	return out
}

func clampInt16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
