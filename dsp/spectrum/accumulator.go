package spectrum

import (
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-gate/dsp/core"
)

// Accumulator averages banded frames of several analysers. It is not safe
// for concurrent use; each logical sound owns one.
type Accumulator struct {
	layout  *Layout
	sum     []float64
	scratch []float64
	taps    int
	bins    binMap
}

// NewAccumulator creates an empty accumulator for layout.
func NewAccumulator(layout *Layout) *Accumulator {
	return &Accumulator{
		layout:  layout,
		sum:     make([]float64, layout.numBands),
		scratch: make([]float64, layout.numBands),
	}
}

// Layout returns the band layout.
func (a *Accumulator) Layout() *Layout { return a.layout }

// Reset clears the running sum and tap count.
func (a *Accumulator) Reset() {
	for i := range a.sum {
		a.sum[i] = 0
	}

	a.taps = 0
}

// Add bands one frame and adds it to the running sum. Frames with no bins or
// an unusable sample rate are rejected and do not count as a tap.
func (a *Accumulator) Add(mags []byte, sampleRate float64) error {
	if err := validateFrame(mags, sampleRate); err != nil {
		return err
	}

	if !a.bins.matches(len(mags), sampleRate) {
		a.bins = a.layout.newBinMap(len(mags), sampleRate)
	}

	a.bins.reduce(a.scratch, mags)
	vecmath.AddBlockInPlace(a.sum, a.scratch)
	a.taps++

	return nil
}

// Taps returns the number of frames added since the last Reset.
func (a *Accumulator) Taps() int { return a.taps }

// Bands returns the per-band average across added frames clamped to [0,1].
// It returns nil when no frame was added. The result is a new slice.
func (a *Accumulator) Bands() []float64 {
	if a.taps == 0 {
		return nil
	}

	out := make([]float64, len(a.sum))
	vecmath.ScaleBlock(out, a.sum, 1/float64(a.taps))

	for i, v := range out {
		out[i] = core.Clamp(v, 0, 1)
	}

	return out
}
