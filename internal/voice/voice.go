// Package voice plays sounds in real time into measurement taps registered
// with the gate service.
package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-gate/dsp/core"
	"github.com/cwbudde/algo-gate/gate"
	"github.com/cwbudde/algo-gate/tap"
)

const defaultBlockSize = 256

// Registrar is the part of gate.Service a voice needs.
type Registrar interface {
	Register(id string, t gate.Tap, opts ...gate.SourceOption) (gate.Handle, error)
	Unregister(h gate.Handle)
}

// Sound is a decoded sound ready to play.
type Sound struct {
	ID         string
	Samples    []float64
	SampleRate float64
	Gain       float64
	Loop       bool
	// Gate holds the options used when this voice creates the sound's entry.
	Gate []gate.SourceOption
}

type config struct {
	blockSize   int
	analyserOps []tap.Option
}

// Option configures a voice.
type Option func(*config)

// WithBlockSize sets the number of samples written per step.
func WithBlockSize(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.blockSize = n
		}
	}
}

// WithAnalyserOptions passes options to the voice's analyser.
func WithAnalyserOptions(opts ...tap.Option) Option {
	return func(cfg *config) {
		cfg.analyserOps = append(cfg.analyserOps, opts...)
	}
}

// Voice is one playing instance of a sound. Each voice owns its analyser and
// its registration.
type Voice struct {
	sound    Sound
	reg      Registrar
	analyser *tap.Analyser
	handle   gate.Handle
	block    []float64
	step     time.Duration

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// Start registers a fresh analyser for s and plays s into it in real time.
// A one-shot voice unregisters itself at the end; a looping voice plays until
// Stop or ctx is done.
func Start(ctx context.Context, reg Registrar, s Sound, opts ...Option) (*Voice, error) {
	if len(s.Samples) == 0 {
		return nil, fmt.Errorf("voice %q has no samples", s.ID)
	}

	if s.Gain < 0 || !core.IsFinite(s.Gain) {
		return nil, fmt.Errorf("voice gain must be non-negative and finite: %f", s.Gain)
	}

	cfg := config{blockSize: defaultBlockSize}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	an, err := tap.New(s.SampleRate, cfg.analyserOps...)
	if err != nil {
		return nil, err
	}

	h, err := reg.Register(s.ID, an, s.Gate...)
	if err != nil {
		an.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	v := &Voice{
		sound:    s,
		reg:      reg,
		analyser: an,
		handle:   h,
		block:    make([]float64, cfg.blockSize),
		step:     time.Duration(float64(cfg.blockSize) / s.SampleRate * float64(time.Second)),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go v.run(ctx)

	return v, nil
}

// ID returns the sound id.
func (v *Voice) ID() string { return v.sound.ID }

// Handle returns the gate registration.
func (v *Voice) Handle() gate.Handle { return v.handle }

// Analyser returns the voice's tap.
func (v *Voice) Analyser() *tap.Analyser { return v.analyser }

// Done is closed once the voice has finished and unregistered.
func (v *Voice) Done() <-chan struct{} { return v.done }

// Stop ends playback and waits until the voice has unregistered.
func (v *Voice) Stop() {
	v.stopOnce.Do(v.cancel)
	<-v.done
}

func (v *Voice) run(ctx context.Context) {
	defer close(v.done)
	defer v.analyser.Close()
	defer v.reg.Unregister(v.handle)
	defer v.cancel()

	t := time.NewTicker(v.step)
	defer t.Stop()

	pos := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		n, next, finished := v.fill(pos)
		vecmath.ScaleBlock(v.block[:n], v.block[:n], v.sound.Gain)
		v.analyser.Write(v.block[:n])
		pos = next

		if finished {
			return
		}
	}
}

// fill copies the next block starting at pos into v.block. It wraps for
// looping sounds and reports finished when a one-shot reaches its end.
func (v *Voice) fill(pos int) (n, next int, finished bool) {
	src := v.sound.Samples

	for n < len(v.block) {
		c := copy(v.block[n:], src[pos:])
		n += c
		pos += c

		if pos == len(src) {
			if !v.sound.Loop {
				return n, pos, true
			}

			pos = 0
		}
	}

	return n, pos, false
}
