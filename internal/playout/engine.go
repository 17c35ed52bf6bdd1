package playout

import (
	"math/rand"
	"sync"
	"sync/atomic"
)

// Cold-start / adaptive-resume thresholds, in frames (§4.4).
const (
	coldStartThreshold = 4
	minResumeThreshold = 5
	maxResumeThreshold = 10
	maxSendErrors      = 10
)

// playoutState is PlayoutState (spec §3): Buffering or Playing.
type playoutState int

const (
	stateBuffering playoutState = iota
	statePlaying
)

// Config selects the engine's construction-time policies. Zero value is a
// usable default: cap-trim, drain-partial overflow, typing sounds off. The
// codec is not part of Config; it is passed to NewEngine.
type Config struct {
	TrimPolicy          TrimPolicy
	OverflowPolicy      OverflowPolicy
	TypingSoundsEnabled bool
}

// Stats is a point-in-time telemetry snapshot (EXPANSION: not part of the
// original operation set, purely observational).
type Stats struct {
	FramesSent           uint64
	FillFramesSent       uint64
	FramesDroppedStale   uint64
	CircuitBreakerTrips  uint64
	QueuedFrames         int
	AdaptiveResumeFrames int
	State                string
}

// Engine is the Playout State Machine (C4): the single type a session layer
// holds. It owns the Accumulator, Jitter Queue, Scheduler, circuit breaker,
// jitter stats and filler, and is the only thing that ever calls
// Transport.SendFrame (invariant I6).
type Engine struct {
	transport Transport
	codec     Codec
	listener  Listener

	accum     *accumulator
	queue     *jitterQueue
	breaker   *circuitBreaker
	jstats    *jitterStats
	filler    *filler
	scheduler *scheduler
	waiter    PeriodicWaiter

	silenceFrame []byte

	epoch         atomic.Uint64
	typingEnabled atomic.Bool

	// state, hasPlayedAudio, hadPlayedBeforeClear, timestampUnits are only
	// ever touched from the scheduler goroutine (spec §5's "one thread owns
	// the Scheduler + State Machine"), so they need no synchronization.
	state                playoutState
	hasPlayedAudio       bool
	hadPlayedBeforeClear bool
	timestampUnits       uint32
	payloadType          uint8

	framesSent          atomic.Uint64
	fillFramesSent      atomic.Uint64
	framesDroppedStale  atomic.Uint64
	circuitBreakerTrips atomic.Uint64

	clearMu sync.Mutex // serializes concurrent producer-side clear() callers
}

// NewEngine constructs an Engine. The initial RTP timestamp is randomised
// per spec §6.
func NewEngine(transport Transport, codec Codec, listener Listener, cfg Config) *Engine {
	if listener == nil {
		listener = NoopListener{}
	}
	e := &Engine{
		transport:      transport,
		codec:          codec,
		listener:       listener,
		breaker:        newCircuitBreaker(maxSendErrors),
		jstats:         newJitterStats(minResumeThreshold, maxResumeThreshold),
		filler:         newFiller(codec),
		waiter:         NewPeriodicWaiter(),
		state:          stateBuffering,
		payloadType:    codec.PayloadType(),
		timestampUnits: randomInitialTimestamp(),
	}
	e.accum = newAccumulator(cfg.OverflowPolicy, e.onLog)
	e.queue = newJitterQueue(cfg.TrimPolicy, e.onLog)

	e.silenceFrame = make([]byte, FrameSize)
	sb := codec.SilenceByte()
	for i := range e.silenceFrame {
		e.silenceFrame[i] = sb
	}

	e.typingEnabled.Store(cfg.TypingSoundsEnabled)
	e.scheduler = newScheduler(e.waiter, e.tickOnce, e.executeClear)
	return e
}

func randomInitialTimestamp() uint32 {
	return rand.Uint32()
}

// Start begins ticking. Idempotent.
func (e *Engine) Start() {
	e.breaker.reset()
	e.scheduler.start()
}

// Stop halts the scheduler goroutine (joined with a 500ms timeout, per
// spec §5) and drains the queue back to the pool. Idempotent.
func (e *Engine) Stop() {
	e.scheduler.stopAndJoin()
	for _, f := range e.queue.drainAll() {
		putFrame(f)
	}
}

// SetTypingSounds toggles the cold-start typing filler at runtime.
func (e *Engine) SetTypingSounds(enabled bool) {
	e.typingEnabled.Store(enabled)
}

// QueuedFrames returns a lock-free snapshot of the jitter queue length.
func (e *Engine) QueuedFrames() int {
	return e.queue.len()
}

// Stats returns a telemetry snapshot (EXPANSION).
func (e *Engine) Stats() Stats {
	stateName := "buffering"
	if e.state == statePlaying {
		stateName = "playing"
	}
	return Stats{
		FramesSent:           e.framesSent.Load(),
		FillFramesSent:       e.fillFramesSent.Load(),
		FramesDroppedStale:   e.framesDroppedStale.Load(),
		CircuitBreakerTrips:  e.circuitBreakerTrips.Load(),
		QueuedFrames:         e.queue.len(),
		AdaptiveResumeFrames: e.jstats.adaptiveResume(),
		State:                stateName,
	}
}

// Write is the producer entry point (spec §4.1 buffer + the adaptive jitter
// EWMA feed). Infallible and non-blocking beyond the accumulator mutex.
func (e *Engine) Write(b []byte) {
	if len(b) == 0 {
		return
	}
	e.jstats.observeArrival(nowMonotonic())
	epoch := e.epoch.Load()
	e.accum.buffer(b, func(payload []byte) {
		e.enqueuePayload(payload, epoch)
	})
}

// Flush pads and enqueues any partial tail frame.
func (e *Engine) Flush() {
	epoch := e.epoch.Load()
	e.accum.flush(e.codec.SilenceByte(), func(payload []byte) {
		e.enqueuePayload(payload, epoch)
	})
}

// Clear is the atomic barge-in entry point (spec §4.4/§5): bump the epoch,
// reset the accumulator tail, and wake the scheduler so execute_clear runs
// within the ≤2ms budget.
func (e *Engine) Clear() {
	e.clearMu.Lock()
	defer e.clearMu.Unlock()
	e.epoch.Add(1)
	e.accum.reset()
	e.scheduler.requestClear()
}

func (e *Engine) enqueuePayload(payload []byte, epoch uint64) {
	f := getFrame()
	copy(f.Bytes(), payload)
	for _, dropped := range e.queue.enqueue(f, epoch) {
		putFrame(dropped)
	}
}

func (e *Engine) onLog(msg string) {
	e.listener.OnLog(msg)
}

// tickOnce implements spec §4.4's tick_once() exactly.
func (e *Engine) tickOnce() {
	currentEpoch := e.epoch.Load()

	// Step 2: drain stale.
	for {
		stamp, ok := e.queue.tryPeekEpoch()
		if !ok || stamp == currentEpoch {
			break
		}
		item, ok := e.queue.tryDequeue()
		if !ok {
			break
		}
		putFrame(item.frame)
		e.framesDroppedStale.Add(1)
	}

	queueLen := e.queue.len()

	if e.state == stateBuffering {
		threshold := coldStartThreshold
		if e.hasPlayedAudio || e.hadPlayedBeforeClear {
			threshold = e.jstats.adaptiveResume()
		}
		if queueLen < threshold {
			e.sendFillFrame()
			return
		}
		e.state = statePlaying
		e.hasPlayedAudio = true
	}

	// Playing.
	if e.queue.len() == 0 {
		e.state = stateBuffering
		e.sendSilence()
		if e.hasPlayedAudio {
			e.listener.OnQueueEmpty()
		}
		return
	}

	item, ok := e.queue.tryDequeue()
	if !ok {
		e.state = stateBuffering
		e.sendSilence()
		if e.hasPlayedAudio {
			e.listener.OnQueueEmpty()
		}
		return
	}

	if item.epoch != currentEpoch {
		putFrame(item.frame)
		e.framesDroppedStale.Add(1)
		e.sendSilence()
		return
	}

	payload := append([]byte(nil), item.frame.Bytes()...)
	putFrame(item.frame)
	e.sendRealBytes(payload)

	if e.queue.len() == 0 {
		e.state = stateBuffering
		e.listener.OnQueueEmpty()
	}
}

// sendFillFrame implements the fill-frame-selection rule (spec §4.4): typing
// filler only on a true cold start, silence otherwise.
func (e *Engine) sendFillFrame() {
	var payload []byte
	if e.typingEnabled.Load() && !e.hasPlayedAudio && !e.hadPlayedBeforeClear {
		payload = e.filler.next()
	} else {
		payload = e.silenceFrame
	}
	if e.send(payload) {
		e.fillFramesSent.Add(1)
	}
}

// sendSilence emits the plain silence frame outside of the Buffering
// fill-selection path — Playing-state underrun and stale-race gaps are
// never typing-filler candidates, only plain silence (spec §4.4 step 5).
func (e *Engine) sendSilence() {
	if e.send(e.silenceFrame) {
		e.fillFramesSent.Add(1)
	}
}

// sendRealBytes sends a frame dequeued straight from the jitter queue,
// counted toward FramesSent (spec P2's non-fill frame count).
func (e *Engine) sendRealBytes(payload []byte) {
	if e.send(payload) {
		e.framesSent.Add(1)
	}
}

// send carries payload to the Transport, applying the circuit breaker and
// RTP timestamp advance-on-success rule (spec §9 resolved open question).
// Returns whether the send was attempted and did not error.
func (e *Engine) send(payload []byte) bool {
	if e.breaker.isTripped() {
		return false
	}

	var frame [FrameSize]byte
	copy(frame[:], payload)

	err := e.transport.SendFrame(frame[:], e.timestampUnits, e.payloadType)
	if err != nil {
		if e.breaker.recordFailure() {
			e.circuitBreakerTrips.Add(1)
			e.listener.OnCircuitBreakerTripped("circuit breaker tripped after consecutive send failures")
		}
		return false
	}

	e.breaker.recordSuccess()
	e.timestampUnits += FrameSize
	return true
}

// executeClear implements spec §4.4 execute_clear(), invoked by the
// scheduler goroutine when it observes clear_requested.
func (e *Engine) executeClear() {
	e.hadPlayedBeforeClear = e.hasPlayedAudio || e.hadPlayedBeforeClear
	e.hasPlayedAudio = false
	for _, f := range e.queue.drainAll() {
		putFrame(f)
	}
	e.filler.reset()
	e.state = stateBuffering
}
