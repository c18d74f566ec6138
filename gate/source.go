package gate

import (
	"reflect"
	"time"

	"github.com/cwbudde/algo-gate/dsp/envelope"
	"github.com/cwbudde/algo-gate/dsp/hit"
	"github.com/cwbudde/algo-gate/dsp/spectrum"
	"github.com/cwbudde/algo-gate/event"
)

type tapEntry struct {
	id  TapID
	tap Tap
}

// source is one logical sound: its taps, fixed config and analysis state.
type source struct {
	id       string
	cfg      SourceConfig
	taps     []tapEntry
	follower *envelope.Follower
	detector *hit.Detector
	acc      *spectrum.Accumulator
	levels   []float64
}

func newSource(id string, cfg SourceConfig, tickRate float64, layout *spectrum.Layout) (*source, error) {
	follower, err := envelope.NewFollower(cfg.Attack.Seconds(), cfg.Release.Seconds(), tickRate)
	if err != nil {
		return nil, err
	}

	detector, err := hit.NewDetector(cfg.ThresholdLinear, cfg.MinInterval)
	if err != nil {
		return nil, err
	}

	return &source{
		id:       id,
		cfg:      cfg,
		follower: follower,
		detector: detector,
		acc:      spectrum.NewAccumulator(layout),
	}, nil
}

func (s *source) removeTapID(id TapID) bool {
	for i, e := range s.taps {
		if e.id == id {
			s.taps = append(s.taps[:i], s.taps[i+1:]...)
			return true
		}
	}

	return false
}

// removeTap drops every entry holding tap. A tap whose dynamic type is not
// comparable never matches, since comparing it would panic.
func (s *source) removeTap(tap Tap) int {
	if t := reflect.TypeOf(tap); t == nil || !t.Comparable() {
		return 0
	}

	kept := s.taps[:0]
	removed := 0

	for _, e := range s.taps {
		if e.tap == tap {
			removed++
			continue
		}

		kept = append(kept, e)
	}

	clear(s.taps[len(kept):])
	s.taps = kept

	return removed
}

// frame is the outcome of analysing one source for one tick.
type frame struct {
	level    event.LevelEvent
	spectrum *event.SpectrumEvent
	hit      *event.HitEvent
}

// analyze runs one pass over the source's taps. sampleRate is the fallback
// for frames that do not carry their own.
func (s *source) analyze(now time.Time, sampleRate float64) frame {
	s.levels = s.levels[:0]
	s.acc.Reset()

	for _, e := range s.taps {
		samples, err := e.tap.ReadTimeDomain()
		if err != nil || len(samples) == 0 {
			continue
		}

		s.levels = append(s.levels, envelope.RMS(samples))
	}

	smoothed := s.follower.Update(envelope.CombineRMS(s.levels))

	out := frame{
		level: event.LevelEvent{ID: s.id, RMS: smoothed, Time: now},
	}

	for _, e := range s.taps {
		f, err := e.tap.ReadFrequency()
		if err != nil {
			continue
		}

		rate := f.SampleRate
		if rate <= 0 {
			rate = sampleRate
		}

		// Frames without bins or without a usable rate do not contribute.
		_ = s.acc.Add(f.Magnitudes, rate)
	}

	if bands := s.acc.Bands(); bands != nil {
		layout := s.acc.Layout()
		out.spectrum = &event.SpectrumEvent{
			ID:    s.id,
			Bands: bands,
			MinHz: layout.MinHz(),
			MaxHz: layout.MaxHz(),
			Time:  now,
		}
	}

	if s.detector.Update(smoothed, now) {
		out.hit = &event.HitEvent{ID: s.id, RMS: smoothed, Time: now}
	}

	return out
}

// SourceState is a read-only view of a logical sound.
type SourceState struct {
	ID       string
	Config   SourceConfig
	Taps     int
	Smoothed float64
	Open     bool
	LastHit  time.Time
}

func (s *source) state() SourceState {
	return SourceState{
		ID:       s.id,
		Config:   s.cfg,
		Taps:     len(s.taps),
		Smoothed: s.follower.Value(),
		Open:     s.detector.IsOpen(),
		LastHit:  s.detector.LastHit(),
	}
}
