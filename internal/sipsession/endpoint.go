package sipsession

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emiago/diago"
	"github.com/emiago/diago/media"
	msdksdp "github.com/livekit/media-sdk/sdp"

	"voicebridge/internal/codec"
	"voicebridge/internal/playout"
)

// SIPDialog is the subset of diago's dialog types codec negotiation needs,
// narrow enough that both inbound (DialogServerSession) and outbound
// (DialogClientSession) dialogs satisfy it.
type SIPDialog interface {
	MediaSession() *media.MediaSession
	Media() *diago.DialogMedia
}

// Endpoint is everything the playout engine and RTP transport need from a
// negotiated SIP leg: the concrete G.711 codec and the raw RTP reader/writer
// diago handed back after answering.
type Endpoint struct {
	Codec       playout.Codec
	PayloadType uint8
	FrameDur    time.Duration

	rtpReader media.RTPReader
	rtpWriter media.RTPWriter
}

// NewEndpoint negotiates the call's media codec, restricted to the two
// static G.711 payload types the playout engine understands. Anything else
// offered (Opus, G722, ...) is rejected rather than silently downgraded.
func NewEndpoint(dialog SIPDialog, frameDuration time.Duration) (*Endpoint, error) {
	session := dialog.MediaSession()
	if session == nil {
		return nil, errors.New("sipsession: media session not ready")
	}

	mc, err := pickAudioCodec(session)
	if err != nil {
		return nil, err
	}
	if mc.NumChannels != 1 {
		return nil, fmt.Errorf("sipsession: unsupported channel count %d", mc.NumChannels)
	}

	c, ok := codec.ForName(strings.ToUpper(mc.Name))
	if !ok {
		return nil, fmt.Errorf("sipsession: unsupported codec %q (only PCMU/PCMA are supported)", mc.Name)
	}

	sdpName := media.CanonicalSDPName(mc)
	if strings.TrimSpace(sdpName) == "" {
		return nil, fmt.Errorf("sipsession: cannot map codec %q to an SDP name", mc.Name)
	}
	if msdksdp.CodecByName(sdpName) == nil {
		return nil, fmt.Errorf("sipsession: media-sdk does not recognize %q", sdpName)
	}

	if frameDuration <= 0 {
		frameDuration = 20 * time.Millisecond
	}

	return &Endpoint{
		Codec:       c,
		PayloadType: uint8(mc.PayloadType),
		FrameDur:    frameDuration,
		rtpReader:   dialog.Media().RTPPacketReader.Reader(),
		rtpWriter:   dialog.Media().RTPPacketWriter.Writer(),
	}, nil
}

func pickAudioCodec(session *media.MediaSession) (media.Codec, error) {
	if commons := session.CommonCodecs(); len(commons) > 0 {
		if c, ok := media.CodecAudioFromList(commons); ok {
			return c, nil
		}
		return media.Codec{}, fmt.Errorf("no audio codec negotiated (common codecs are non-audio: %v)", commons)
	}
	if c, ok := media.CodecAudioFromList(session.Codecs); ok {
		return c, nil
	}
	return media.Codec{}, errors.New("no audio codec negotiated")
}

func (e *Endpoint) RTPReader() media.RTPReader { return e.rtpReader }
func (e *Endpoint) RTPWriter() media.RTPWriter { return e.rtpWriter }

// PreferredCodecs returns the SIP-side codec offer/answer list, G.711 only,
// in the static PCMU-then-PCMA order RFC 3551 assigns them.
func PreferredCodecs(frameDuration time.Duration) []media.Codec {
	if frameDuration <= 0 {
		frameDuration = 20 * time.Millisecond
	}
	return []media.Codec{
		media.CodecAudioUlaw(frameDuration),
		media.CodecAudioAlaw(frameDuration),
	}
}
