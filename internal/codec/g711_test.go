package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestULawSilenceByteIsZeroAmplitude(t *testing.T) {
	var c ULaw
	require.Equal(t, SilenceByteULaw, c.SilenceByte())
	require.Equal(t, int16(0), c.DecodePCM16(c.SilenceByte()))
}

func TestALawSilenceByteIsZeroAmplitude(t *testing.T) {
	var c ALaw
	require.Equal(t, SilenceByteALaw, c.SilenceByte())
	// A-law has no exact zero code: linear 0 encodes to 0xD5, which decodes
	// back to +8, the smallest positive quantization step.
	require.Equal(t, SilenceByteALaw, c.EncodePCM16(0))
	require.Equal(t, int16(8), c.DecodePCM16(c.SilenceByte()))
}

func TestULawPayloadType(t *testing.T) {
	require.EqualValues(t, 0, ULaw{}.PayloadType())
}

func TestALawPayloadType(t *testing.T) {
	require.EqualValues(t, 8, ALaw{}.PayloadType())
}

func TestULawEncodeDecodeRoundTripIsLossyButBounded(t *testing.T) {
	var c ULaw
	samples := []int16{0, 100, -100, 1000, -1000, 16000, -16000, 32000, -32000}
	for _, s := range samples {
		enc := c.EncodePCM16(s)
		dec := c.DecodePCM16(enc)
		diff := int(dec) - int(s)
		if diff < 0 {
			diff = -diff
		}
		require.Lessf(t, diff, 1200, "sample %d round-tripped to %d, quantization error too large", s, dec)
	}
}

func TestALawEncodeDecodeRoundTripIsLossyButBounded(t *testing.T) {
	var c ALaw
	samples := []int16{0, 100, -100, 1000, -1000, 16000, -16000, 32000, -32000}
	for _, s := range samples {
		enc := c.EncodePCM16(s)
		dec := c.DecodePCM16(enc)
		diff := int(dec) - int(s)
		if diff < 0 {
			diff = -diff
		}
		require.Lessf(t, diff, 1200, "sample %d round-tripped to %d, quantization error too large", s, dec)
	}
}

func TestULawEncodeFrameMatchesPerSampleEncode(t *testing.T) {
	var c ULaw
	pcm := make([]int16, 160)
	for i := range pcm {
		pcm[i] = int16(i*37 - 2000)
	}
	frame := c.EncodeFrame(pcm)
	require.Len(t, frame, 160)
	for i, s := range pcm {
		require.Equal(t, c.EncodePCM16(s), frame[i])
	}
}

func TestALawDecodeFrameMatchesPerSampleDecode(t *testing.T) {
	var c ALaw
	encoded := make([]byte, 160)
	for i := range encoded {
		encoded[i] = byte(i)
	}
	pcm := c.DecodeFrame(encoded)
	require.Len(t, pcm, 160)
	for i, b := range encoded {
		require.Equal(t, c.DecodePCM16(b), pcm[i])
	}
}

func TestForNameResolvesKnownCodecs(t *testing.T) {
	pcmu, ok := ForName("PCMU")
	require.True(t, ok)
	require.EqualValues(t, 0, pcmu.PayloadType())

	pcma, ok := ForName("pcma")
	require.True(t, ok)
	require.EqualValues(t, 8, pcma.PayloadType())

	_, ok = ForName("opus")
	require.False(t, ok)
}
