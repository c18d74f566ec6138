package gate

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cwbudde/algo-gate/dsp/core"
	"github.com/cwbudde/algo-gate/dsp/spectrum"
	"github.com/cwbudde/algo-gate/event"
)

// ErrClosed is returned by Register after Close.
var ErrClosed = errors.New("gate: service closed")

// Service is the source registry and analysis loop.
//
// All methods are safe for concurrent use.
type Service struct {
	pub  event.Publisher
	cfg  config
	pass sync.Mutex

	mu         sync.Mutex
	sources    map[string]*source
	nextTap    TapID
	sampleRate float64
	stop       func()
	closed     bool
}

// New creates a service publishing into pub. The ticker stays idle until the
// first tap is registered.
func New(pub event.Publisher, opts ...Option) (*Service, error) {
	if pub == nil {
		return nil, errors.New("gate publisher must not be nil")
	}

	cfg := defaultConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if cfg.layout == nil {
		cfg.layout = spectrum.DefaultLayout()
	}

	if cfg.scheduler == nil {
		cfg.scheduler = intervalScheduler{interval: cfg.tickInterval}
	}

	return &Service{
		pub:        pub,
		cfg:        cfg,
		sources:    make(map[string]*source),
		sampleRate: cfg.sampleRate,
	}, nil
}

// Register adds tap to the logical sound id. Options only take effect when
// the call creates the entry for id.
func (s *Service) Register(id string, tap Tap, opts ...SourceOption) (Handle, error) {
	if id == "" {
		return Handle{}, errors.New("gate source id must not be empty")
	}

	if tap == nil {
		return Handle{}, fmt.Errorf("gate tap for %q must not be nil", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Handle{}, ErrClosed
	}

	src, ok := s.sources[id]
	if !ok {
		var err error

		src, err = newSource(id, ApplySourceOptions(opts...), s.cfg.tickRate, s.cfg.layout)
		if err != nil {
			return Handle{}, fmt.Errorf("gate source %q: %w", id, err)
		}

		s.sources[id] = src
	}

	s.nextTap++
	h := Handle{Source: id, Tap: s.nextTap}
	src.taps = append(src.taps, tapEntry{id: h.Tap, tap: tap})

	if s.stop == nil {
		s.stop = s.cfg.scheduler.Start(s.Tick)
	}

	s.cfg.logger.Debug("gate register", "sound", id, "tap", h.Tap, "taps", len(src.taps))

	return h, nil
}

// Unregister removes exactly the registration behind h. Unknown or already
// removed handles are ignored.
func (s *Service) Unregister(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sources[h.Source]
	if !ok || !src.removeTapID(h.Tap) {
		return
	}

	s.cfg.logger.Debug("gate unregister", "sound", h.Source, "tap", h.Tap, "taps", len(src.taps))
	s.pruneLocked(src)
}

// RemoveTap removes every registration of tap under id. Taps are compared
// by identity. A tap of a non-comparable type is never matched and should be
// removed through its Handle instead.
func (s *Service) RemoveTap(id string, tap Tap) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sources[id]
	if !ok || src.removeTap(tap) == 0 {
		return
	}

	s.cfg.logger.Debug("gate unregister", "sound", id, "taps", len(src.taps))
	s.pruneLocked(src)
}

// pruneLocked deletes src when it has no taps left and stops the ticker when
// the registry is empty.
func (s *Service) pruneLocked(src *source) {
	if len(src.taps) > 0 {
		return
	}

	delete(s.sources, src.id)

	if len(s.sources) == 0 {
		s.stopLocked()
	}
}

func (s *Service) stopLocked() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}

// SetSampleRate sets the context sample rate used for frames that do not
// carry their own.
func (s *Service) SetSampleRate(rate float64) error {
	if rate <= 0 || !core.IsFinite(rate) {
		return fmt.Errorf("gate sample rate must be positive and finite: %f", rate)
	}

	s.mu.Lock()
	s.sampleRate = rate
	s.mu.Unlock()

	return nil
}

// SampleRate returns the context sample rate, 0 when unset.
func (s *Service) SampleRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sampleRate
}

// Layout returns the spectrum band layout.
func (s *Service) Layout() *spectrum.Layout { return s.cfg.layout }

// TickInterval returns the configured pass interval.
func (s *Service) TickInterval() time.Duration { return s.cfg.tickInterval }

// Sources returns the registered sound ids in sorted order.
func (s *Service) Sources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.idsLocked()
}

func (s *Service) idsLocked() []string {
	ids := make([]string, 0, len(s.sources))
	for id := range s.sources {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

// TapCount returns the number of taps registered under id.
func (s *Service) TapCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if src, ok := s.sources[id]; ok {
		return len(src.taps)
	}

	return 0
}

// State returns a snapshot of the logical sound id.
func (s *Service) State(id string) (SourceState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sources[id]
	if !ok {
		return SourceState{}, false
	}

	return src.state(), true
}

// Running reports whether the ticker is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stop != nil
}

// Close stops the ticker and drops every registration. A pass already in
// progress skips the sources it has not yet visited.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.stopLocked()
	clear(s.sources)
}

// Tick runs one analysis pass at time now. It is called by the ticker and
// may be called directly when the service is driven by an external clock.
//
// The id list is taken once at the start of the pass. Each source is analysed
// under the registry lock and its events are published after the lock is
// released, in the order level, spectrum, hit. A source removed by an
// observer earlier in the pass is skipped.
func (s *Service) Tick(now time.Time) {
	s.pass.Lock()
	defer s.pass.Unlock()

	s.mu.Lock()
	ids := s.idsLocked()
	s.mu.Unlock()

	for _, id := range ids {
		s.mu.Lock()

		src, ok := s.sources[id]
		if !ok {
			s.mu.Unlock()
			continue
		}

		out := src.analyze(now, s.sampleRate)
		s.mu.Unlock()

		s.publish(out)
	}
}

func (s *Service) publish(out frame) {
	s.pub.PublishLevel(out.level)

	if out.spectrum != nil {
		s.pub.PublishSpectrum(*out.spectrum)
	}

	if out.hit != nil {
		s.cfg.logger.Debug("gate hit", "sound", out.hit.ID, "rms", out.hit.RMS)
		s.pub.PublishHit(*out.hit)
	}
}
