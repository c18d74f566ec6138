// Package tap provides an in-process measurement tap for gate.Service.
package tap

import (
	"errors"
	"fmt"
	"sync"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-gate/dsp/core"
	"github.com/cwbudde/algo-gate/dsp/spectrum"
	"github.com/cwbudde/algo-gate/dsp/window"
	"github.com/cwbudde/algo-gate/gate"
)

var (
	// ErrNoData is returned by reads before any samples were written.
	ErrNoData = errors.New("tap: no data")
	// ErrClosed is returned by reads after Close.
	ErrClosed = errors.New("tap: closed")
)

const (
	defaultFFTSize = 1024
	minFFTSize     = 32
	maxFFTSize     = 32768

	defaultMinDB = -100.0
	defaultMaxDB = -30.0
)

type config struct {
	fftSize int
	minDB   float64
	maxDB   float64
	window  window.Type
}

// Option configures an Analyser.
type Option func(*config)

// WithFFTSize sets the analysis size. It must be a power of two in
// [32, 32768]; other values are ignored.
func WithFFTSize(n int) Option {
	return func(cfg *config) {
		if n >= minFFTSize && n <= maxFFTSize && n&(n-1) == 0 {
			cfg.fftSize = n
		}
	}
}

// WithDecibelRange sets the dB range mapped onto magnitude bytes 0..255.
func WithDecibelRange(minDB, maxDB float64) Option {
	return func(cfg *config) {
		if core.IsFinite(minDB) && core.IsFinite(maxDB) && minDB < maxDB {
			cfg.minDB = minDB
			cfg.maxDB = maxDB
		}
	}
}

// WithWindow sets the analysis window applied before the FFT.
func WithWindow(t window.Type) Option {
	return func(cfg *config) {
		cfg.window = t
	}
}

// Analyser keeps the most recent FFT-size window of one voice's output and
// serves it as a [gate.Tap]. Write and the reads may be called from
// different goroutines.
type Analyser struct {
	mu sync.Mutex

	sampleRate float64
	minDB      float64
	maxDB      float64

	ring   []float64
	write  int
	filled int
	closed bool

	coeffs []float64
	plan   *algofft.Plan[complex128]
	in     []complex128
	out    []complex128
	frame  []float64
	mags   []float64
}

var _ gate.Tap = (*Analyser)(nil)

// New creates an analyser for a signal at sampleRate. Defaults: 1024-point
// Blackman-windowed FFT, no temporal smoothing, -100..-30 dB byte range.
func New(sampleRate float64, opts ...Option) (*Analyser, error) {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return nil, fmt.Errorf("tap sample rate must be positive and finite: %f", sampleRate)
	}

	cfg := config{
		fftSize: defaultFFTSize,
		minDB:   defaultMinDB,
		maxDB:   defaultMaxDB,
		window:  window.TypeBlackman,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	plan, err := algofft.NewPlan64(cfg.fftSize)
	if err != nil {
		return nil, fmt.Errorf("tap init fft plan: %w", err)
	}

	n := cfg.fftSize

	return &Analyser{
		sampleRate: sampleRate,
		minDB:      cfg.minDB,
		maxDB:      cfg.maxDB,
		ring:       make([]float64, n),
		coeffs:     window.Generate(cfg.window, n, window.WithPeriodic()),
		plan:       plan,
		in:         make([]complex128, n),
		out:        make([]complex128, n),
		frame:      make([]float64, n),
		mags:       make([]float64, n/2),
	}, nil
}

// FFTSize returns the analysis size.
func (a *Analyser) FFTSize() int { return len(a.ring) }

// BinCount returns the number of magnitude bins, FFTSize/2.
func (a *Analyser) BinCount() int { return len(a.mags) }

// SampleRate returns the signal sample rate.
func (a *Analyser) SampleRate() float64 { return a.sampleRate }

// Write appends samples to the analysis window.
func (a *Analyser) Write(samples []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}

	n := len(a.ring)
	if len(samples) > n {
		samples = samples[len(samples)-n:]
	}

	for _, x := range samples {
		a.ring[a.write] = x
		a.write = (a.write + 1) % n
	}

	a.filled = min(n, a.filled+len(samples))
}

// Reset discards all written samples.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	clear(a.ring)
	a.write = 0
	a.filled = 0
}

// Close makes all further reads fail.
func (a *Analyser) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true

	return nil
}

func (a *Analyser) readyLocked() error {
	switch {
	case a.closed:
		return ErrClosed
	case a.filled == 0:
		return ErrNoData
	default:
		return nil
	}
}

// snapshotLocked copies the ring oldest-first into dst. Slots not yet written
// read as zero.
func (a *Analyser) snapshotLocked(dst []float64) {
	k := copy(dst, a.ring[a.write:])
	copy(dst[k:], a.ring[:a.write])
}

// ReadTimeDomain returns a copy of the last FFTSize samples, oldest first.
func (a *Analyser) ReadTimeDomain() ([]float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.readyLocked(); err != nil {
		return nil, err
	}

	out := make([]float64, len(a.ring))
	a.snapshotLocked(out)

	return out, nil
}

// ReadFrequency windows the current samples, transforms them and returns
// FFTSize/2 magnitude bytes.
func (a *Analyser) ReadFrequency() (gate.FrequencyFrame, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.readyLocked(); err != nil {
		return gate.FrequencyFrame{}, err
	}

	a.snapshotLocked(a.frame)

	if err := window.Apply(a.frame, a.coeffs); err != nil {
		return gate.FrequencyFrame{}, err
	}

	for i, x := range a.frame {
		a.in[i] = complex(x, 0)
	}

	if err := a.plan.Forward(a.out, a.in); err != nil {
		return gate.FrequencyFrame{}, fmt.Errorf("tap fft: %w", err)
	}

	spectrum.MagnitudeInto(a.mags, a.out[:len(a.mags)])
	vecmath.ScaleBlock(a.mags, a.mags, 1/float64(len(a.ring)))

	bins := make([]byte, len(a.mags))
	spectrum.QuantizeDB(bins, a.mags, a.minDB, a.maxDB)

	return gate.FrequencyFrame{Magnitudes: bins, SampleRate: a.sampleRate}, nil
}
