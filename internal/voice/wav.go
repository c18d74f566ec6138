package voice

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
)

// wavFormatPCM is the WAVE format tag for integer PCM.
const wavFormatPCM = 1

// Clip is a decoded sound: mono samples in [-1, 1) at SampleRate.
type Clip struct {
	Samples    []float64
	SampleRate float64
}

// DecodeWAV reads an integer PCM WAVE stream. Multi-channel audio is mixed
// down to mono by averaging the channels of each frame.
func DecodeWAV(r io.ReadSeeker) (Clip, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return Clip{}, fmt.Errorf("not a valid wav stream")
	}
	if d.WavAudioFormat != wavFormatPCM {
		return Clip{}, fmt.Errorf("unsupported wav format tag: %d", d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("decode wav: %w", err)
	}

	format := d.Format()
	if format == nil || format.SampleRate <= 0 || format.NumChannels <= 0 {
		return Clip{}, fmt.Errorf("wav header has no usable format")
	}

	depth := int(d.BitDepth)
	if depth < 8 || depth > 32 {
		return Clip{}, fmt.Errorf("unsupported wav bit depth: %d", depth)
	}

	// 8-bit WAVE samples are unsigned.
	offset := 0
	if depth == 8 {
		offset = 128
	}
	scale := 1 / float64(int64(1)<<(depth-1))

	channels := format.NumChannels
	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := range samples {
		sum := 0
		for c := range channels {
			sum += buf.Data[i*channels+c] - offset
		}
		samples[i] = float64(sum) * scale / float64(channels)
	}

	return Clip{Samples: samples, SampleRate: float64(format.SampleRate)}, nil
}

// LoadWAV decodes the WAVE file at path.
func LoadWAV(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	clip, err := DecodeWAV(f)
	if err != nil {
		return Clip{}, fmt.Errorf("%s: %w", path, err)
	}
	return clip, nil
}
