package sipsession

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/emiago/diago/media"
	"github.com/pion/rtp"

	"voicebridge/internal/aibridge"
	"voicebridge/internal/playout"
	"voicebridge/internal/rtptransport"
)

// callSession bridges one answered SIP dialog to one AI WebSocket
// connection for the lifetime of the call: the playout engine emits the
// AI's speech onto the SIP leg, and the inbound SIP RTP is decoded and
// forwarded upstream (doubling as the barge-in signal source).
type callSession struct {
	logger   *slog.Logger
	endpoint *Endpoint
	engine   *playout.Engine
	ai       *aibridge.Bridge
}

func newCallSession(ctx context.Context, logger *slog.Logger, endpoint *Endpoint, cfg Config) (*callSession, error) {
	if logger == nil {
		logger = slog.Default()
	}

	transport := rtptransport.New(endpoint.RTPWriter())
	engine := playout.NewEngine(transport, endpoint.Codec, &engineListener{logger: logger}, playout.Config{
		TrimPolicy:          cfg.TrimPolicy,
		OverflowPolicy:      cfg.OverflowPolicy,
		TypingSoundsEnabled: cfg.TypingSoundsEnabled,
	})

	conn, err := aibridge.Dial(ctx, cfg.AIEndpointURL, cfg.AIAuthHeader)
	if err != nil {
		return nil, err
	}
	bridge := aibridge.New(conn, engine, logger)

	return &callSession{
		logger:   logger,
		endpoint: endpoint,
		engine:   engine,
		ai:       bridge,
	}, nil
}

// Run starts the engine and both audio directions, blocking until ctx is
// done or the inbound RTP stream ends.
func (s *callSession) Run(ctx context.Context) {
	s.engine.Start()
	s.ai.Start()
	defer s.stop()

	s.readInboundRTP(ctx)
}

func (s *callSession) stop() {
	s.engine.Stop()
	if err := s.ai.Close(); err != nil {
		s.logger.Warn("sipsession: ai bridge close failed", "error", err)
	}
}

// readInboundRTP decodes the caller's RTP stream to linear PCM16 and
// forwards each frame upstream through the AI bridge, which also runs the
// barge-in energy heuristic against it.
func (s *callSession) readInboundRTP(ctx context.Context) {
	reader := s.endpoint.RTPReader()
	if reader == nil {
		s.logger.Warn("sipsession: no rtp reader available")
		return
	}

	buf := make([]byte, media.RTPBufSize)
	pkt := &rtp.Packet{}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		*pkt = rtp.Packet{}
		if _, err := reader.ReadRTP(buf, pkt); err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("sipsession: rtp read failed", "error", err)
			}
			return
		}
		if uint8(pkt.PayloadType) != s.endpoint.PayloadType || len(pkt.Payload) == 0 {
			continue
		}

		pcm := decodeToPCM16(s.endpoint.Codec, pkt.Payload)
		if err := s.ai.ForwardCallerAudio(pcm); err != nil {
			s.logger.Warn("sipsession: forward caller audio failed", "error", err)
			return
		}
	}
}

func decodeToPCM16(c playout.Codec, payload []byte) []byte {
	out := make([]byte, len(payload)*2)
	for i, b := range payload {
		sample := c.DecodePCM16(b)
		out[i*2] = byte(sample)
		out[i*2+1] = byte(sample >> 8)
	}
	return out
}

// engineListener adapts the playout engine's Listener callbacks to
// structured logging; call-level teardown decisions on a circuit-breaker
// trip belong to the caller of Run, not this package.
type engineListener struct {
	logger *slog.Logger
}

func (l *engineListener) OnQueueEmpty() {
	l.logger.Debug("sipsession: playout queue drained")
}

func (l *engineListener) OnCircuitBreakerTripped(message string) {
	l.logger.Warn("sipsession: playout circuit breaker tripped", "message", message)
}

func (l *engineListener) OnLog(message string) {
	l.logger.Warn("sipsession: playout engine", "message", message)
}
