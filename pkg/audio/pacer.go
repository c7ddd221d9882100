package audio

import "sync"

const (
	// FrameDurationMs is the playout frame interval.
	FrameDurationMs = 20

	bytesPerSample = 2 // 16-bit
)

// Pacer buffers PCM produced in bursts by the upstream model and slices it
// into fixed 20ms frames for steady playout. When the buffer runs dry it
// yields silence instead of blocking the playout loop.
type Pacer struct {
	mu            sync.Mutex
	buffer        []byte
	bytesPerFrame int
}

// NewPacer creates a pacer for 16-bit mono PCM at the given sample rate.
func NewPacer(sampleRate int) *Pacer {
	samplesPerFrame := sampleRate * FrameDurationMs / 1000
	bytesPerFrame := samplesPerFrame * bytesPerSample

	return &Pacer{
		buffer:        make([]byte, 0, bytesPerFrame*100),
		bytesPerFrame: bytesPerFrame,
	}
}

// Write appends PCM data to the playout buffer.
func (p *Pacer) Write(data []byte) {
	if len(data) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffer = append(p.buffer, data...)
}

// ReadFrame returns the next 20ms frame, zero-filled when not enough data is
// buffered.
func (p *Pacer) ReadFrame() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame := make([]byte, p.bytesPerFrame)
	if len(p.buffer) >= p.bytesPerFrame {
		copy(frame, p.buffer[:p.bytesPerFrame])
		p.buffer = p.buffer[p.bytesPerFrame:]
	}
	return frame
}

// Buffered returns the number of buffered bytes not yet read.
func (p *Pacer) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

// Clear drops all buffered data.
func (p *Pacer) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffer = p.buffer[:0]
}
