package audio

import (
	"fmt"

	"github.com/asticode/go-astiav"
)

// Resampler converts 16-bit mono PCM between sample rates using FFmpeg's
// software resampler. One Resampler handles one fixed rate pair; create one
// per direction and keep it for the life of the call.
type Resampler struct {
	ctx      *astiav.SoftwareResampleContext
	inFrame  *astiav.Frame
	outFrame *astiav.Frame
	inRate   int
	outRate  int
}

// NewResampler creates a mono S16 resampler from inRate to outRate.
func NewResampler(inRate, outRate int) (*Resampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: %d -> %d", inRate, outRate)
	}

	r := &Resampler{
		inRate:  inRate,
		outRate: outRate,
	}

	r.ctx = astiav.AllocSoftwareResampleContext()
	if r.ctx == nil {
		return nil, fmt.Errorf("failed to allocate resample context")
	}

	r.inFrame = astiav.AllocFrame()
	if r.inFrame == nil {
		r.Free()
		return nil, fmt.Errorf("failed to allocate input frame")
	}

	r.outFrame = astiav.AllocFrame()
	if r.outFrame == nil {
		r.Free()
		return nil, fmt.Errorf("failed to allocate output frame")
	}

	return r, nil
}

// Free releases the FFmpeg resources. The Resampler must not be used after.
func (r *Resampler) Free() {
	if r.ctx != nil {
		r.ctx.Free()
		r.ctx = nil
	}
	if r.inFrame != nil {
		r.inFrame.Free()
		r.inFrame = nil
	}
	if r.outFrame != nil {
		r.outFrame.Free()
		r.outFrame = nil
	}
}

// Convert resamples one chunk of 16-bit mono little-endian PCM.
func (r *Resampler) Convert(input []byte) ([]byte, error) {
	const align = 0

	if len(input) == 0 {
		return nil, fmt.Errorf("empty input data")
	}

	numSamples := len(input) / 2
	if numSamples == 0 {
		return nil, fmt.Errorf("input data too small")
	}

	r.inFrame.Unref()
	r.outFrame.Unref()

	r.inFrame.SetChannelLayout(astiav.ChannelLayoutMono)
	r.inFrame.SetSampleFormat(astiav.SampleFormatS16)
	r.inFrame.SetSampleRate(r.inRate)
	r.inFrame.SetNbSamples(numSamples)

	r.outFrame.SetChannelLayout(astiav.ChannelLayoutMono)
	r.outFrame.SetSampleFormat(astiav.SampleFormatS16)
	r.outFrame.SetSampleRate(r.outRate)

	outSamples := numSamples * r.outRate / r.inRate
	if outSamples == 0 {
		outSamples = 1
	}
	r.outFrame.SetNbSamples(outSamples)

	if err := r.inFrame.AllocBuffer(align); err != nil {
		return nil, fmt.Errorf("failed to allocate input buffer: %w", err)
	}
	if err := r.outFrame.AllocBuffer(align); err != nil {
		return nil, fmt.Errorf("failed to allocate output buffer: %w", err)
	}
	if err := r.inFrame.MakeWritable(); err != nil {
		return nil, fmt.Errorf("making frame writable failed: %w", err)
	}

	// FFmpeg may want an aligned buffer larger than the payload; zero-pad up
	// to the actual size.
	bufSize, err := r.inFrame.SamplesBufferSize(align)
	if err != nil {
		return nil, fmt.Errorf("failed to get buffer size: %w", err)
	}
	buf := input
	if len(input) < bufSize {
		buf = make([]byte, bufSize)
		copy(buf, input)
	}
	if err := r.inFrame.Data().SetBytes(buf[:bufSize], align); err != nil {
		return nil, fmt.Errorf("setting frame data failed: %w", err)
	}

	if err := r.ctx.ConvertFrame(r.inFrame, r.outFrame); err != nil {
		return nil, fmt.Errorf("failed to resample: %w", err)
	}

	out, err := r.outFrame.Data().Bytes(align)
	if err != nil {
		return nil, fmt.Errorf("getting output data failed: %w", err)
	}
	return out, nil
}
