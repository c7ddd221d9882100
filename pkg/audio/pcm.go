// Package audio provides the audio plumbing for the call relay: PCM helpers,
// G.711 μ-law conversion for the phone leg, sample-rate conversion, and a
// fixed-interval playout pacer.
package audio

// Int16ToBytes converts 16-bit PCM samples to little-endian bytes.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// BytesToInt16 converts little-endian PCM bytes to 16-bit samples. A trailing
// odd byte is dropped.
func BytesToInt16(data []byte) []int16 {
	n := len(data) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return out
}
