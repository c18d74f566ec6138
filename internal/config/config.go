package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-gate/dsp/core"
	"github.com/cwbudde/algo-gate/dsp/spectrum"
	"github.com/cwbudde/algo-gate/gate"
)

type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Journal  JournalConfig  `yaml:"journal"`
	Sounds   []SoundConfig  `yaml:"sounds"`
}

type AnalysisConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"` // e.g. "16ms"
	TickRate     float64       `yaml:"tick_rate"`     // nominal Hz for envelope scaling
	Bands        int           `yaml:"bands"`
	MinHz        float64       `yaml:"min_hz"`
	MaxHz        float64       `yaml:"max_hz"`
	SampleRate   float64       `yaml:"sample_rate"` // analysis context rate
}

type JournalConfig struct {
	Path string `yaml:"path"` // sqlite file, empty disables the journal
}

type SoundConfig struct {
	ID   string     `yaml:"id"`
	File string     `yaml:"file"` // integer PCM WAVE, mixed down to mono
	Loop bool       `yaml:"loop"`
	Gain *float64   `yaml:"gain"` // linear, unset means 1
	Gate GateConfig `yaml:"gate"`
}

// LinearGain returns the configured gain, or 1 when it is unset. Zero mutes
// the sound.
func (s SoundConfig) LinearGain() float64 {
	if s.Gain == nil {
		return 1
	}
	return *s.Gain
}

// GateConfig is a per-sound preset. Unset fields keep the gate defaults.
type GateConfig struct {
	ThresholdDB   *float64 `yaml:"threshold_db"`
	AttackMs      *float64 `yaml:"attack_ms"`
	ReleaseMs     *float64 `yaml:"release_ms"`
	MinIntervalMs *float64 `yaml:"min_interval_ms"`
}

func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			TickInterval: 16 * time.Millisecond,
			TickRate:     60,
			Bands:        spectrum.DefaultBands,
			MinHz:        spectrum.DefaultMinHz,
			MaxHz:        spectrum.DefaultMaxHz,
			SampleRate:   48000,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error

	a := c.Analysis
	if a.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("analysis.tick_interval must be positive: %v", a.TickInterval))
	}

	if !positive(a.TickRate) {
		errs = append(errs, fmt.Errorf("analysis.tick_rate must be positive: %f", a.TickRate))
	}

	if _, err := spectrum.NewLayout(a.Bands, a.MinHz, a.MaxHz); err != nil {
		errs = append(errs, fmt.Errorf("analysis: %w", err))
	}

	if !positive(a.SampleRate) {
		errs = append(errs, fmt.Errorf("analysis.sample_rate must be positive: %f", a.SampleRate))
	}

	seen := make(map[string]bool, len(c.Sounds))

	for i, s := range c.Sounds {
		name := s.ID
		if name == "" {
			name = fmt.Sprintf("#%d", i)
			errs = append(errs, fmt.Errorf("sounds[%d].id must not be empty", i))
		} else if seen[s.ID] {
			errs = append(errs, fmt.Errorf("sound %q is defined twice", s.ID))
		}

		seen[s.ID] = true

		if s.File == "" {
			errs = append(errs, fmt.Errorf("sound %s: file must not be empty", name))
		}

		if s.Gain != nil && (*s.Gain < 0 || !core.IsFinite(*s.Gain)) {
			errs = append(errs, fmt.Errorf("sound %s: gain must be non-negative: %f", name, *s.Gain))
		}

		if err := s.Gate.validate(); err != nil {
			errs = append(errs, fmt.Errorf("sound %s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

func (g GateConfig) validate() error {
	var errs []error

	if g.ThresholdDB != nil && (!core.IsFinite(*g.ThresholdDB)) {
		errs = append(errs, fmt.Errorf("gate.threshold_db must be finite: %f", *g.ThresholdDB))
	}

	if g.AttackMs != nil && !positive(*g.AttackMs) {
		errs = append(errs, fmt.Errorf("gate.attack_ms must be positive: %f", *g.AttackMs))
	}

	if g.ReleaseMs != nil && !positive(*g.ReleaseMs) {
		errs = append(errs, fmt.Errorf("gate.release_ms must be positive: %f", *g.ReleaseMs))
	}

	if g.MinIntervalMs != nil && (*g.MinIntervalMs < 0 || math.IsNaN(*g.MinIntervalMs)) {
		errs = append(errs, fmt.Errorf("gate.min_interval_ms must be non-negative: %f", *g.MinIntervalMs))
	}

	return errors.Join(errs...)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// Sound returns the sound with the given id.
func (c *Config) Sound(id string) (SoundConfig, bool) {
	for _, s := range c.Sounds {
		if s.ID == id {
			return s, true
		}
	}

	return SoundConfig{}, false
}

// Layout builds the spectrum band layout.
func (a AnalysisConfig) Layout() (*spectrum.Layout, error) {
	return spectrum.NewLayout(a.Bands, a.MinHz, a.MaxHz)
}

// ServiceOptions returns the gate service options for this analysis block.
func (a AnalysisConfig) ServiceOptions() ([]gate.Option, error) {
	layout, err := a.Layout()
	if err != nil {
		return nil, err
	}

	return []gate.Option{
		gate.WithTickInterval(a.TickInterval),
		gate.WithTickRate(a.TickRate),
		gate.WithLayout(layout),
		gate.WithSampleRate(a.SampleRate),
	}, nil
}

// Options returns the source options for the fields that are set.
func (g GateConfig) Options() []gate.SourceOption {
	var opts []gate.SourceOption

	if g.ThresholdDB != nil {
		opts = append(opts, gate.WithThresholdDB(*g.ThresholdDB))
	}

	if g.AttackMs != nil {
		opts = append(opts, gate.WithAttack(core.DurationMs(*g.AttackMs)))
	}

	if g.ReleaseMs != nil {
		opts = append(opts, gate.WithRelease(core.DurationMs(*g.ReleaseMs)))
	}

	if g.MinIntervalMs != nil {
		opts = append(opts, gate.WithMinInterval(core.DurationMs(*g.MinIntervalMs)))
	}

	return opts
}
