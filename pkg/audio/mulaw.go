package audio

// G.711 μ-law codec for the phone media leg. Phone streams carry μ-law at
// 8kHz mono; the relay works in 16-bit linear PCM.

const (
	muLawBias = 0x84
	muLawClip = 32635
)

var muLawSegmentEnds = [8]int16{0xFF, 0x1FF, 0x3FF, 0x7FF, 0xFFF, 0x1FFF, 0x3FFF, 0x7FFF}

// MuLawEncode converts one 16-bit signed PCM sample to μ-law.
func MuLawEncode(pcm int16) byte {
	sign := (pcm >> 8) & 0x80
	if sign != 0 {
		pcm = -pcm
	}
	if pcm > muLawClip {
		pcm = muLawClip
	}
	pcm += muLawBias

	segment := 7
	for i, end := range muLawSegmentEnds {
		if pcm <= end {
			segment = i
			break
		}
	}

	return byte(^(sign | int16(segment)<<4 | (pcm>>(segment+3))&0x0f))
}

// MuLawDecode converts one μ-law byte to a 16-bit signed PCM sample.
func MuLawDecode(b byte) int16 {
	b = ^b
	segment := (b >> 4) & 0x07
	quant := int16(b & 0x0f)

	magnitude := ((quant<<3 + muLawBias) << segment) - muLawBias
	if b&0x80 != 0 {
		return -magnitude
	}
	return magnitude
}

// MuLawToPCM converts μ-law audio to 16-bit little-endian PCM.
func MuLawToPCM(mulaw []byte) []byte {
	pcm := make([]byte, len(mulaw)*2)
	for i, b := range mulaw {
		sample := MuLawDecode(b)
		pcm[i*2] = byte(sample)
		pcm[i*2+1] = byte(sample >> 8)
	}
	return pcm
}

// PCMToMuLaw converts 16-bit little-endian PCM audio to μ-law.
func PCMToMuLaw(pcm []byte) []byte {
	n := len(pcm) / 2
	mulaw := make([]byte, n)
	for i := 0; i < n; i++ {
		sample := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		mulaw[i] = MuLawEncode(sample)
	}
	return mulaw
}
