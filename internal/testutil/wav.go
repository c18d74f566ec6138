package testutil

import (
	"math"
	"os"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV writes samples as a 16-bit PCM WAVE file with the given channel
// count. Samples are interleaved and clipped to [-1, 1).
func WriteWAV(t *testing.T, path string, samples []float64, sampleRate, channels int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(s * 32768)
		data[i] = int(math.Max(-32768, math.Min(32767, v)))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}
