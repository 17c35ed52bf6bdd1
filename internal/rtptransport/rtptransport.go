// Package rtptransport is the concrete playout.Transport: it packetizes
// fixed-size G.711 frames into RTP and writes them through a diago media
// session's RTP writer.
package rtptransport

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/emiago/diago/media"
	"github.com/pion/rtp"
)

// RTPTransport adapts a diago media.RTPWriter into playout.Transport. One
// instance owns one SSRC and one sequence-number space, matching how a
// single outbound media stream behaves on the wire.
type RTPTransport struct {
	mu     sync.Mutex
	writer media.RTPWriter
	ssrc   uint32
	seq    uint16
	sent   bool
}

// New builds an RTPTransport around an already-negotiated media writer. The
// SSRC and initial sequence number are randomized per RFC 3550 §5.1.
func New(writer media.RTPWriter) *RTPTransport {
	return &RTPTransport{
		writer: writer,
		ssrc:   rand.Uint32(),
		seq:    uint16(rand.Uint32()),
	}
}

// SendFrame implements playout.Transport.
func (t *RTPTransport) SendFrame(payload []byte, timestampUnits uint32, payloadType uint8) error {
	t.mu.Lock()
	seq := t.seq
	t.seq++
	marker := !t.sent
	t.sent = true
	t.mu.Unlock()

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    payloadType,
			SequenceNumber: seq,
			Timestamp:      timestampUnits,
			SSRC:           t.ssrc,
		},
		Payload: payload,
	}

	if t.writer == nil {
		return fmt.Errorf("rtptransport: no media writer attached")
	}
	if err := t.writer.WriteRTP(pkt); err != nil {
		return fmt.Errorf("rtptransport: write rtp: %w", err)
	}
	return nil
}

// SSRC returns the stream's synchronization source, useful for logging and
// RTCP sender report construction.
func (t *RTPTransport) SSRC() uint32 { return t.ssrc }
