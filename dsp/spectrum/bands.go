package spectrum

import (
	"fmt"
	"math"
)

const (
	// DefaultBands is the default number of output bands.
	DefaultBands = 128
	// DefaultMinHz is the default lower edge of the first band.
	DefaultMinHz = 20.0
	// DefaultMaxHz is the default upper edge of the last band.
	DefaultMaxHz = 18000.0

	// maxMagnitude is the full-scale value of a byte magnitude frame.
	maxMagnitude = 255.0
)

// Layout describes N log-spaced bands over [minHz, maxHz]. A Layout is
// immutable and safe for concurrent use.
type Layout struct {
	numBands int
	minHz    float64
	maxHz    float64
	edges    []float64 // numBands+1 frequencies
}

// NewLayout builds a band layout.
func NewLayout(numBands int, minHz, maxHz float64) (*Layout, error) {
	if numBands <= 0 {
		return nil, fmt.Errorf("spectrum band count must be > 0: %d", numBands)
	}

	if minHz <= 0 || math.IsNaN(minHz) || math.IsInf(minHz, 0) {
		return nil, fmt.Errorf("spectrum min frequency must be positive and finite: %f", minHz)
	}

	if !(maxHz > minHz) || math.IsInf(maxHz, 0) {
		return nil, fmt.Errorf("spectrum max frequency must be finite and above min: min=%f max=%f", minHz, maxHz)
	}

	logMin := math.Log(minHz)
	logMax := math.Log(maxHz)

	edges := make([]float64, numBands+1)
	for b := range edges {
		edges[b] = math.Exp(logMin + (float64(b)/float64(numBands))*(logMax-logMin))
	}

	return &Layout{
		numBands: numBands,
		minHz:    minHz,
		maxHz:    maxHz,
		edges:    edges,
	}, nil
}

// DefaultLayout returns the 128-band 20 Hz - 18 kHz layout.
func DefaultLayout() *Layout {
	l, err := NewLayout(DefaultBands, DefaultMinHz, DefaultMaxHz)
	if err != nil {
		panic(err)
	}

	return l
}

// NumBands returns the number of bands.
func (l *Layout) NumBands() int { return l.numBands }

// MinHz returns the lower edge of band 0.
func (l *Layout) MinHz() float64 { return l.minHz }

// MaxHz returns the upper edge of the last band.
func (l *Layout) MaxHz() float64 { return l.maxHz }

// Edges returns the lower and upper frequency of band b.
func (l *Layout) Edges(b int) (lo, hi float64) {
	return l.edges[b], l.edges[b+1]
}

// BinIndex maps a frequency onto a bin of a frame with binCount bins
// covering 0..sampleRate/2. The result is clamped to [0, binCount-1].
func BinIndex(freq float64, binCount int, sampleRate float64) int {
	nyquist := sampleRate / 2
	idx := int(math.Round(freq / nyquist * float64(binCount)))

	if idx < 0 {
		return 0
	}

	if idx > binCount-1 {
		return binCount - 1
	}

	return idx
}

// BinRange returns the inclusive bin range of band b.
func (l *Layout) BinRange(b, binCount int, sampleRate float64) (lo, hi int) {
	fLo, fHi := l.Edges(b)
	return BinIndex(fLo, binCount, sampleRate), BinIndex(fHi, binCount, sampleRate)
}

// binMap caches the bin ranges of every band for one frame shape.
type binMap struct {
	binCount   int
	sampleRate float64
	lo         []int
	hi         []int
}

func (l *Layout) newBinMap(binCount int, sampleRate float64) binMap {
	m := binMap{
		binCount:   binCount,
		sampleRate: sampleRate,
		lo:         make([]int, l.numBands),
		hi:         make([]int, l.numBands),
	}

	for b := range l.numBands {
		m.lo[b], m.hi[b] = l.BinRange(b, binCount, sampleRate)
	}

	return m
}

func (m *binMap) matches(binCount int, sampleRate float64) bool {
	return m.lo != nil && m.binCount == binCount && m.sampleRate == sampleRate
}

// reduce writes the band means of mags into dst (len numBands).
func (m *binMap) reduce(dst []float64, mags []byte) {
	for b := range dst {
		lo, hi := m.lo[b], m.hi[b]
		if hi < lo {
			dst[b] = 0
			continue
		}

		sum := 0
		for k := lo; k <= hi; k++ {
			sum += int(mags[k])
		}

		dst[b] = float64(sum) / (float64(hi-lo+1) * maxMagnitude)
	}
}

// Reduce computes the band values of a single magnitude frame into dst, which
// must hold NumBands values. It returns an error for an empty frame or an
// unusable sample rate.
func (l *Layout) Reduce(dst []float64, mags []byte, sampleRate float64) error {
	if len(dst) != l.numBands {
		return fmt.Errorf("spectrum band buffer length %d != %d", len(dst), l.numBands)
	}

	if err := validateFrame(mags, sampleRate); err != nil {
		return err
	}

	m := l.newBinMap(len(mags), sampleRate)
	m.reduce(dst, mags)

	return nil
}

func validateFrame(mags []byte, sampleRate float64) error {
	if len(mags) == 0 {
		return errEmptyFrame
	}

	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("%w: %f", errSampleRate, sampleRate)
	}

	return nil
}
