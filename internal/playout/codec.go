package playout

// Codec is the Codec collaborator consumed by the engine (spec §6): it
// supplies the silence byte used for padding/fill frames and the PCM16
// encode/decode primitives the Filler Generator uses to synthesize typing
// sounds. The engine treats everything else as an opaque byte blob.
type Codec interface {
	// SilenceByte returns the codec's representation of zero amplitude
	// (0xFF for PCMU, 0xD5 for PCMA).
	SilenceByte() byte
	// PayloadType returns the RTP static payload type (0 for PCMU, 8 for
	// PCMA), fixed for the lifetime of a session.
	PayloadType() uint8
	// EncodePCM16 encodes a single linear PCM16 sample into one codec byte.
	EncodePCM16(sample int16) byte
	// DecodePCM16 decodes a single codec byte into a linear PCM16 sample.
	DecodePCM16(sample byte) int16
}
