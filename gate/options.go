package gate

import (
	"log/slog"
	"math"
	"time"

	"github.com/cwbudde/algo-gate/dsp/core"
	"github.com/cwbudde/algo-gate/dsp/envelope"
	"github.com/cwbudde/algo-gate/dsp/spectrum"
)

const (
	defaultThresholdDB = -18.0
	defaultAttack      = 15 * time.Millisecond
	defaultRelease     = 120 * time.Millisecond
	defaultMinInterval = 90 * time.Millisecond

	defaultTickInterval = 16 * time.Millisecond
)

// SourceConfig holds the per-sound analysis parameters.
type SourceConfig struct {
	// ThresholdLinear is the linear RMS level that opens the hit detector.
	ThresholdLinear float64
	// Attack is the envelope time constant while the level rises.
	Attack time.Duration
	// Release is the envelope time constant while the level falls.
	Release time.Duration
	// MinInterval is the minimum spacing between two hits.
	MinInterval time.Duration
}

// SourceOption mutates a SourceConfig.
type SourceOption func(*SourceConfig)

// DefaultSourceConfig returns -18 dBFS threshold, 15 ms attack, 120 ms
// release and 90 ms minimum hit interval.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		ThresholdLinear: core.DBToLinear(defaultThresholdDB),
		Attack:          defaultAttack,
		Release:         defaultRelease,
		MinInterval:     defaultMinInterval,
	}
}

// WithThresholdDB sets the hit threshold in dBFS.
func WithThresholdDB(db float64) SourceOption {
	return func(cfg *SourceConfig) {
		if core.IsFinite(db) {
			cfg.ThresholdLinear = core.DBToLinear(db)
		}
	}
}

// WithThresholdLinear sets the hit threshold as a linear RMS value.
func WithThresholdLinear(v float64) SourceOption {
	return func(cfg *SourceConfig) {
		if v >= 0 && core.IsFinite(v) {
			cfg.ThresholdLinear = v
		}
	}
}

// WithAttack sets the envelope attack time.
func WithAttack(d time.Duration) SourceOption {
	return func(cfg *SourceConfig) {
		if d > 0 {
			cfg.Attack = d
		}
	}
}

// WithRelease sets the envelope release time.
func WithRelease(d time.Duration) SourceOption {
	return func(cfg *SourceConfig) {
		if d > 0 {
			cfg.Release = d
		}
	}
}

// WithMinInterval sets the minimum spacing between hits.
func WithMinInterval(d time.Duration) SourceOption {
	return func(cfg *SourceConfig) {
		if d >= 0 {
			cfg.MinInterval = d
		}
	}
}

// ApplySourceOptions applies zero or more options to the default config.
func ApplySourceOptions(opts ...SourceOption) SourceConfig {
	cfg := DefaultSourceConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return cfg
}

// Scheduler starts periodic passes. Start calls fn at a fixed cadence until
// the returned stop function is called. stop must not wait for an
// in-flight call to return.
type Scheduler interface {
	Start(fn func(now time.Time)) (stop func())
}

type config struct {
	tickInterval time.Duration
	tickRate     float64
	layout       *spectrum.Layout
	sampleRate   float64
	scheduler    Scheduler
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*config)

func defaultConfig() config {
	return config{
		tickInterval: defaultTickInterval,
		tickRate:     envelope.DefaultTickRate,
		logger:       slog.New(slog.DiscardHandler),
	}
}

// WithTickInterval sets the wall-clock interval between passes.
func WithTickInterval(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.tickInterval = d
		}
	}
}

// WithTickRate sets the nominal tick rate in Hz used to scale the envelope
// time constants.
func WithTickRate(hz float64) Option {
	return func(cfg *config) {
		if hz > 0 && !math.IsInf(hz, 0) {
			cfg.tickRate = hz
		}
	}
}

// WithLayout sets the spectrum band layout.
func WithLayout(l *spectrum.Layout) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.layout = l
		}
	}
}

// WithSampleRate sets the initial context sample rate.
func WithSampleRate(rate float64) Option {
	return func(cfg *config) {
		if rate > 0 && core.IsFinite(rate) {
			cfg.sampleRate = rate
		}
	}
}

// WithScheduler replaces the interval ticker.
func WithScheduler(s Scheduler) Option {
	return func(cfg *config) {
		if s != nil {
			cfg.scheduler = s
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.logger = l
		}
	}
}
