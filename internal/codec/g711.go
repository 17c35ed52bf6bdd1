// Package codec implements the playout.Codec collaborator for the two
// static G.711 payload types a SIP leg can negotiate: PCMU (mu-law) and
// PCMA (a-law).
package codec

import (
	"encoding/binary"
	"strings"

	"github.com/zaf/g711"
)

const (
	// SilenceByteULaw is mu-law's encoding of linear zero.
	SilenceByteULaw byte = 0xFF
	// SilenceByteALaw is a-law's encoding of linear zero.
	SilenceByteALaw byte = 0xD5

	// PayloadTypePCMU is the RTP static payload type for mu-law (RFC 3551).
	PayloadTypePCMU uint8 = 0
	// PayloadTypePCMA is the RTP static payload type for a-law (RFC 3551).
	PayloadTypePCMA uint8 = 8
)

// ULaw is the mu-law implementation of playout.Codec.
type ULaw struct{}

func (ULaw) SilenceByte() byte  { return SilenceByteULaw }
func (ULaw) PayloadType() uint8 { return PayloadTypePCMU }

func (ULaw) EncodePCM16(sample int16) byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(sample))
	enc := g711.EncodeUlaw(buf[:])
	return enc[0]
}

func (ULaw) DecodePCM16(sample byte) int16 {
	dec := g711.DecodeUlaw([]byte{sample})
	return int16(binary.LittleEndian.Uint16(dec))
}

// EncodeFrame converts a linear PCM16 frame into mu-law in one pass,
// amortizing the per-sample round trip EncodePCM16 pays for the filler.
func (ULaw) EncodeFrame(pcm []int16) []byte {
	return g711.EncodeUlaw(pcm16ToBytes(pcm))
}

// DecodeFrame converts a mu-law frame into linear PCM16 in one pass.
func (ULaw) DecodeFrame(encoded []byte) []int16 {
	return bytesToPCM16(g711.DecodeUlaw(encoded))
}

// ALaw is the a-law implementation of playout.Codec.
type ALaw struct{}

func (ALaw) SilenceByte() byte  { return SilenceByteALaw }
func (ALaw) PayloadType() uint8 { return PayloadTypePCMA }

func (ALaw) EncodePCM16(sample int16) byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(sample))
	enc := g711.EncodeAlaw(buf[:])
	return enc[0]
}

func (ALaw) DecodePCM16(sample byte) int16 {
	dec := g711.DecodeAlaw([]byte{sample})
	return int16(binary.LittleEndian.Uint16(dec))
}

func (ALaw) EncodeFrame(pcm []int16) []byte {
	return g711.EncodeAlaw(pcm16ToBytes(pcm))
}

func (ALaw) DecodeFrame(encoded []byte) []int16 {
	return bytesToPCM16(g711.DecodeAlaw(encoded))
}

// ForName resolves a codec by its SDP rtpmap name ("PCMU" or "PCMA",
// case-insensitive). It returns nil, false for anything else so callers can
// fall back to negotiation failure instead of silently picking a default.
func ForName(name string) (interface {
	SilenceByte() byte
	PayloadType() uint8
	EncodePCM16(int16) byte
	DecodePCM16(byte) int16
}, bool) {
	switch strings.ToUpper(name) {
	case "PCMU":
		return ULaw{}, true
	case "PCMA":
		return ALaw{}, true
	default:
		return nil, false
	}
}

func pcm16ToBytes(pcm []int16) []byte {
	buf := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func bytesToPCM16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}
