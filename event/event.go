// Package event carries the level, spectrum and hit notifications produced by
// the gate service to any number of subscribers.
package event

import "time"

// Kind identifies an event type.
type Kind int

const (
	KindLevel Kind = iota
	KindSpectrum
	KindHit
)

// String returns the event kind name.
func (k Kind) String() string {
	switch k {
	case KindLevel:
		return "level"
	case KindSpectrum:
		return "spectrum"
	case KindHit:
		return "hit"
	default:
		return "unknown"
	}
}

// Event is implemented by LevelEvent, SpectrumEvent and HitEvent.
type Event interface {
	Kind() Kind
	Source() string
	At() time.Time
}

// LevelEvent reports the smoothed envelope of a sound once per tick.
type LevelEvent struct {
	ID   string
	RMS  float64
	Time time.Time
}

// SpectrumEvent reports the banded spectrum of a sound. Bands are in [0,1]
// and log-spaced over [MinHz, MaxHz].
type SpectrumEvent struct {
	ID    string
	Bands []float64
	MinHz float64
	MaxHz float64
	Time  time.Time
}

// HitEvent reports a debounced threshold crossing.
type HitEvent struct {
	ID   string
	RMS  float64
	Time time.Time
}

func (e LevelEvent) Kind() Kind        { return KindLevel }
func (e LevelEvent) Source() string    { return e.ID }
func (e LevelEvent) At() time.Time     { return e.Time }
func (e SpectrumEvent) Kind() Kind     { return KindSpectrum }
func (e SpectrumEvent) Source() string { return e.ID }
func (e SpectrumEvent) At() time.Time  { return e.Time }
func (e HitEvent) Kind() Kind          { return KindHit }
func (e HitEvent) Source() string      { return e.ID }
func (e HitEvent) At() time.Time       { return e.Time }

// Publisher is the sink the gate service publishes into.
type Publisher interface {
	PublishLevel(LevelEvent)
	PublishSpectrum(SpectrumEvent)
	PublishHit(HitEvent)
}
