package gate

import (
	"errors"
	"sync"
	"time"

	"github.com/cwbudde/algo-gate/event"
	"github.com/cwbudde/algo-gate/internal/testutil"
)

var errNotReady = errors.New("not ready")

// fakeTap serves fixed snapshots.
type fakeTap struct {
	mu      sync.Mutex
	samples []float64
	frame   FrequencyFrame
	timeErr error
	freqErr error
}

func levelTap(rms float64) *fakeTap {
	return &fakeTap{
		samples: testutil.DC(rms, 256),
		freqErr: errNotReady,
	}
}

func (f *fakeTap) setLevel(rms float64) {
	f.mu.Lock()
	f.samples = testutil.DC(rms, 256)
	f.mu.Unlock()
}

func (f *fakeTap) ReadTimeDomain() ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.timeErr != nil {
		return nil, f.timeErr
	}

	return f.samples, nil
}

func (f *fakeTap) ReadFrequency() (FrequencyFrame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.freqErr != nil {
		return FrequencyFrame{}, f.freqErr
	}

	return f.frame, nil
}

// recorder keeps every published event in order.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) PublishLevel(e event.LevelEvent)       { r.add(e) }
func (r *recorder) PublishSpectrum(e event.SpectrumEvent) { r.add(e) }
func (r *recorder) PublishHit(e event.HitEvent)           { r.add(e) }

func (r *recorder) add(e event.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) kinds(id string) []event.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []event.Kind

	for _, e := range r.events {
		if e.Source() == id {
			out = append(out, e.Kind())
		}
	}

	return out
}

func (r *recorder) hits(id string) []event.HitEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []event.HitEvent

	for _, e := range r.events {
		if h, ok := e.(event.HitEvent); ok && h.ID == id {
			out = append(out, h)
		}
	}

	return out
}

func (r *recorder) levels(id string) []event.LevelEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []event.LevelEvent

	for _, e := range r.events {
		if l, ok := e.(event.LevelEvent); ok && l.ID == id {
			out = append(out, l)
		}
	}

	return out
}

func (r *recorder) spectra(id string) []event.SpectrumEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []event.SpectrumEvent

	for _, e := range r.events {
		if s, ok := e.(event.SpectrumEvent); ok && s.ID == id {
			out = append(out, s)
		}
	}

	return out
}

// manualScheduler records start/stop calls without running a goroutine.
type manualScheduler struct {
	mu      sync.Mutex
	starts  int
	stops   int
	running bool
}

func (m *manualScheduler) Start(func(time.Time)) func() {
	m.mu.Lock()
	m.starts++
	m.running = true
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		m.stops++
		m.running = false
		m.mu.Unlock()
	}
}

func (m *manualScheduler) counts() (starts, stops int, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.starts, m.stops, m.running
}

func tickEvery(svc *Service, start time.Time, step time.Duration, n int) time.Time {
	now := start
	for i := 0; i < n; i++ {
		svc.Tick(now)
		now = now.Add(step)
	}

	return now
}
