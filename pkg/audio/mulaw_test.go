package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMuLawZeroAndSilence(t *testing.T) {
	assert.Equal(t, int16(0), MuLawDecode(MuLawEncode(0)))
	assert.Equal(t, int16(0), MuLawDecode(0xFF))
	assert.Equal(t, int16(0), MuLawDecode(0x7F))
}

func TestMuLawRoundTripAccuracy(t *testing.T) {
	// μ-law is lossy; the reconstruction error is bounded by the segment's
	// quantization step.
	samples := []int16{0, 1, -1, 100, -100, 1000, -1000, 8000, -8000, 30000, -30000, 32635, -32635}

	for _, s := range samples {
		decoded := MuLawDecode(MuLawEncode(s))

		diff := int32(s) - int32(decoded)
		if diff < 0 {
			diff = -diff
		}
		// Worst-case step in the top segment is 1024.
		assert.LessOrEqual(t, diff, int32(1024), "sample: %d decoded: %d", s, decoded)
	}
}

func TestMuLawEncodeMonotonic(t *testing.T) {
	// Decoded values must be non-decreasing as input grows.
	prev := MuLawDecode(MuLawEncode(-32000))
	for s := int32(-32000); s <= 32000; s += 500 {
		cur := MuLawDecode(MuLawEncode(int16(s)))
		assert.GreaterOrEqual(t, cur, prev, "sample: %d", s)
		prev = cur
	}
}

func TestMuLawClipping(t *testing.T) {
	// Values beyond the clip threshold encode the same as the threshold.
	assert.Equal(t, MuLawEncode(muLawClip), MuLawEncode(32767))
	assert.Equal(t, MuLawEncode(-muLawClip), MuLawEncode(-32767))
}

func TestMuLawBufferConversions(t *testing.T) {
	pcm := Int16ToBytes([]int16{0, 500, -500, 10000, -10000})

	mulaw := PCMToMuLaw(pcm)
	require.Len(t, mulaw, 5)

	back := MuLawToPCM(mulaw)
	require.Len(t, back, len(pcm))

	orig := BytesToInt16(pcm)
	decoded := BytesToInt16(back)
	for i := range orig {
		diff := int32(orig[i]) - int32(decoded[i])
		if diff < 0 {
			diff = -diff
		}
		assert.LessOrEqual(t, diff, int32(1024), "index: %d", i)
	}
}

func TestPCMHelpersRoundTrip(t *testing.T) {
	samples := []int16{-32768, -1, 0, 1, 32767}
	assert.Equal(t, samples, BytesToInt16(Int16ToBytes(samples)))
}
