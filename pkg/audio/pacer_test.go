package audio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerFrameSize(t *testing.T) {
	p := NewPacer(24000)

	// 20ms at 24kHz mono 16-bit = 480 samples = 960 bytes.
	frame := p.ReadFrame()
	assert.Len(t, frame, 960)
}

func TestPacerSilenceWhenEmpty(t *testing.T) {
	p := NewPacer(48000)

	frame := p.ReadFrame()
	assert.Equal(t, make([]byte, len(frame)), frame)
}

func TestPacerSlicesInOrder(t *testing.T) {
	p := NewPacer(24000)
	const frameBytes = 960

	data := make([]byte, frameBytes*2)
	for i := range data {
		data[i] = byte(i % 251)
	}
	p.Write(data)

	first := p.ReadFrame()
	second := p.ReadFrame()
	require.True(t, bytes.Equal(data[:frameBytes], first))
	require.True(t, bytes.Equal(data[frameBytes:], second))

	// Buffer exhausted: next frame is silence.
	third := p.ReadFrame()
	assert.Equal(t, make([]byte, frameBytes), third)
}

func TestPacerPartialFrameYieldsSilence(t *testing.T) {
	p := NewPacer(24000)

	p.Write(make([]byte, 100))
	frame := p.ReadFrame()

	// Less than a full frame buffered: silence, data stays queued.
	assert.Equal(t, make([]byte, 960), frame)
	assert.Equal(t, 100, p.Buffered())
}

func TestPacerClear(t *testing.T) {
	p := NewPacer(24000)
	p.Write(make([]byte, 4000))
	p.Clear()
	assert.Equal(t, 0, p.Buffered())
}
