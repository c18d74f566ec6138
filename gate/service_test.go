package gate

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cwbudde/algo-gate/dsp/core"
	"github.com/cwbudde/algo-gate/event"
	"github.com/cwbudde/algo-gate/internal/testutil"
)

const tick = 16 * time.Millisecond

func newTestService(t *testing.T, opts ...Option) (*Service, *recorder, *manualScheduler) {
	t.Helper()

	rec := &recorder{}
	sched := &manualScheduler{}

	svc, err := New(rec, append([]Option{WithScheduler(sched)}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return svc, rec, sched
}

func TestNewRejectsNilPublisher(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil publisher")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.Register("", levelTap(0.1)); err == nil {
		t.Fatal("expected error for empty id")
	}

	if _, err := svc.Register("tap", nil); err == nil {
		t.Fatal("expected error for nil tap")
	}

	if got := svc.Sources(); len(got) != 0 {
		t.Fatalf("failed registrations left sources %v", got)
	}

	svc.Close()

	if _, err := svc.Register("tap", levelTap(0.1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("Register after Close error = %v, want ErrClosed", err)
	}
}

func TestDefaultSourceConfig(t *testing.T) {
	cfg := DefaultSourceConfig()

	testutil.RequireNearlyEqual(t, "threshold", cfg.ThresholdLinear, core.DBToLinear(-18), 1e-12)

	if cfg.Attack != 15*time.Millisecond || cfg.Release != 120*time.Millisecond || cfg.MinInterval != 90*time.Millisecond {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestSourceOptionsIgnoreInvalidValues(t *testing.T) {
	cfg := ApplySourceOptions(
		WithThresholdLinear(-1),
		WithThresholdDB(math.NaN()),
		WithAttack(0),
		WithRelease(-time.Second),
		WithMinInterval(-time.Millisecond),
		nil,
	)

	if cfg != DefaultSourceConfig() {
		t.Fatalf("invalid options changed config: %+v", cfg)
	}

	cfg = ApplySourceOptions(WithThresholdDB(-6), WithMinInterval(0))
	testutil.RequireNearlyEqual(t, "threshold", cfg.ThresholdLinear, core.DBToLinear(-6), 1e-12)

	if cfg.MinInterval != 0 {
		t.Fatalf("MinInterval = %v, want 0", cfg.MinInterval)
	}
}

func TestRegisterUnregisterBeforeTickIsIdempotent(t *testing.T) {
	svc, rec, sched := newTestService(t)

	h, err := svc.Register("tap", levelTap(0.5))
	if err != nil {
		t.Fatal(err)
	}

	if !svc.Running() {
		t.Fatal("ticker should run after first registration")
	}

	svc.Unregister(h)
	svc.Unregister(h)
	svc.Unregister(Handle{Source: "missing", Tap: 42})

	if got := svc.Sources(); len(got) != 0 {
		t.Fatalf("Sources() = %v, want empty", got)
	}

	if svc.Running() {
		t.Fatal("ticker should stop when the registry empties")
	}

	starts, stops, running := sched.counts()
	if starts != 1 || stops != 1 || running {
		t.Fatalf("scheduler starts=%d stops=%d running=%v", starts, stops, running)
	}

	svc.Tick(time.Now())

	if len(rec.events) != 0 {
		t.Fatalf("empty registry published %d events", len(rec.events))
	}
}

func TestTickerStartsOncePerBusyPeriod(t *testing.T) {
	svc, _, sched := newTestService(t)

	a, _ := svc.Register("a", levelTap(0))
	b, _ := svc.Register("b", levelTap(0))
	c, _ := svc.Register("a", levelTap(0))

	svc.Unregister(a)
	svc.Unregister(b)

	if !svc.Running() {
		t.Fatal("ticker stopped while a tap is still registered")
	}

	svc.Unregister(c)

	if _, err := svc.Register("a", levelTap(0)); err != nil {
		t.Fatal(err)
	}

	starts, stops, running := sched.counts()
	if starts != 2 || stops != 1 || !running {
		t.Fatalf("scheduler starts=%d stops=%d running=%v", starts, stops, running)
	}
}

func TestConfigFixedForEntryLifetime(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.Register("tap", levelTap(0), WithThresholdLinear(0.2)); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Register("tap", levelTap(0), WithThresholdLinear(0.9)); err != nil {
		t.Fatal(err)
	}

	st, ok := svc.State("tap")
	if !ok {
		t.Fatal("missing state")
	}

	if st.Config.ThresholdLinear != 0.2 || st.Taps != 2 {
		t.Fatalf("state = %+v, want threshold 0.2 with 2 taps", st)
	}
}

func TestRemoveTapRemovesEveryRegistration(t *testing.T) {
	svc, _, _ := newTestService(t)
	shared := levelTap(0.1)
	other := levelTap(0.1)

	svc.Register("a", shared)
	svc.Register("a", shared)
	svc.Register("a", other)
	svc.Register("b", shared)

	svc.RemoveTap("a", shared)

	if got := svc.TapCount("a"); got != 1 {
		t.Fatalf("TapCount(a) = %d, want 1", got)
	}

	if got := svc.TapCount("b"); got != 1 {
		t.Fatalf("TapCount(b) = %d, want 1", got)
	}

	svc.RemoveTap("a", other)
	svc.RemoveTap("a", other)

	if got := svc.Sources(); len(got) != 1 || got[0] != "b" {
		t.Fatalf("Sources() = %v, want [b]", got)
	}
}

// sliceTap is a value-type tap holding a slice, so its type is not comparable.
type sliceTap struct {
	samples []float64
}

func (s sliceTap) ReadTimeDomain() ([]float64, error) { return s.samples, nil }

func (s sliceTap) ReadFrequency() (FrequencyFrame, error) { return FrequencyFrame{}, errNotReady }

func TestRemoveTapIgnoresNonComparableTaps(t *testing.T) {
	svc, _, _ := newTestService(t)
	tp := sliceTap{samples: testutil.DC(0.1, 64)}

	h, err := svc.Register("a", tp)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	svc.RemoveTap("a", tp)
	svc.RemoveTap("a", nil)

	if got := svc.TapCount("a"); got != 1 {
		t.Fatalf("TapCount(a) = %d, want 1", got)
	}

	svc.Unregister(h)

	if got := svc.Sources(); len(got) != 0 {
		t.Fatalf("Sources() = %v, want none", got)
	}
}

func TestSustainedLevelHitsOnce(t *testing.T) {
	svc, rec, _ := newTestService(t)
	tp := levelTap(0.5)

	_, err := svc.Register("tap", tp,
		WithThresholdLinear(0.2),
		WithAttack(10*time.Millisecond),
		WithRelease(120*time.Millisecond),
		WithMinInterval(90*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Unix(1000, 0)
	now := tickEvery(svc, start, tick, 19) // ~300 ms

	hits := rec.hits("tap")
	if len(hits) != 1 {
		t.Fatalf("sustained level produced %d hits, want 1", len(hits))
	}

	if hits[0].Time.Sub(start) > 2*tick {
		t.Fatalf("first hit at %v, want within 2 ticks", hits[0].Time.Sub(start))
	}

	// Fall below the close line, then rise again.
	tp.setLevel(0)
	now = tickEvery(svc, now, tick, 20)
	tp.setLevel(0.5)
	tickEvery(svc, now, tick, 1)

	hits = rec.hits("tap")
	if len(hits) != 2 {
		t.Fatalf("got %d hits after re-crossing, want 2", len(hits))
	}

	if gap := hits[1].Time.Sub(hits[0].Time); gap < 90*time.Millisecond {
		t.Fatalf("hits %v apart, want at least 90ms", gap)
	}
}

func TestSuppressedCrossingFiresAfterDebounce(t *testing.T) {
	svc, rec, _ := newTestService(t)
	tp := levelTap(0.5)

	svc.Register("tap", tp,
		WithThresholdLinear(0.2),
		WithAttack(time.Millisecond),
		WithRelease(time.Millisecond),
		WithMinInterval(90*time.Millisecond),
	)

	start := time.Unix(1000, 0)
	svc.Tick(start)

	tp.setLevel(0)
	svc.Tick(start.Add(tick))

	tp.setLevel(0.5)
	for i := 2; i <= 6; i++ {
		svc.Tick(start.Add(time.Duration(i) * tick))
	}

	hits := rec.hits("tap")
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}

	if got := hits[1].Time.Sub(start); got != 6*tick {
		t.Fatalf("second hit at %v, want %v", got, 6*tick)
	}
}

func TestTwoTapsCombine(t *testing.T) {
	svc, rec, _ := newTestService(t)

	svc.Register("tap", levelTap(0.1), WithAttack(time.Millisecond))
	svc.Register("tap", levelTap(0.3))

	svc.Tick(time.Unix(1000, 0))

	levels := rec.levels("tap")
	if len(levels) != 1 {
		t.Fatalf("got %d level events, want 1", len(levels))
	}

	testutil.RequireNearlyEqual(t, "combined", levels[0].RMS, math.Sqrt((0.01+0.09)/2), 1e-9)
}

func TestReRegisterResetsState(t *testing.T) {
	svc, _, _ := newTestService(t)

	h, _ := svc.Register("alarm", levelTap(0.5),
		WithThresholdLinear(0.2),
		WithAttack(time.Millisecond),
	)
	svc.Tick(time.Unix(1000, 0))

	st, _ := svc.State("alarm")
	if !st.Open {
		t.Fatal("source should be open after a hit")
	}

	svc.Unregister(h)

	if _, ok := svc.State("alarm"); ok {
		t.Fatal("state should be discarded with the last tap")
	}

	svc.Register("alarm", levelTap(0), WithThresholdLinear(0.9))

	st, ok := svc.State("alarm")
	if !ok {
		t.Fatal("missing state after re-registration")
	}

	if st.Open || st.Smoothed != 0 || !st.LastHit.IsZero() {
		t.Fatalf("state not reset: %+v", st)
	}

	if st.Config.ThresholdLinear != 0.9 {
		t.Fatalf("threshold = %v, want 0.9", st.Config.ThresholdLinear)
	}
}

func TestLevelPublishedEveryTickEvenWhenSilent(t *testing.T) {
	svc, rec, _ := newTestService(t)
	tp := levelTap(0)
	tp.timeErr = errNotReady

	svc.Register("quiet", tp)
	tickEvery(svc, time.Unix(1000, 0), tick, 3)

	levels := rec.levels("quiet")
	if len(levels) != 3 {
		t.Fatalf("got %d level events, want 3", len(levels))
	}

	for _, l := range levels {
		if l.RMS != 0 {
			t.Fatalf("failed tap produced level %v", l.RMS)
		}
	}

	if got := rec.spectra("quiet"); len(got) != 0 {
		t.Fatalf("got %d spectrum events without frames", len(got))
	}
}

func TestEventOrderPerSource(t *testing.T) {
	svc, rec, _ := newTestService(t, WithSampleRate(48000))

	tp := levelTap(0.5)
	tp.freqErr = nil
	tp.frame = FrequencyFrame{Magnitudes: fullScale(512)}

	svc.Register("tap", tp, WithThresholdLinear(0.2), WithAttack(time.Millisecond))
	svc.Tick(time.Unix(1000, 0))

	want := []event.Kind{event.KindLevel, event.KindSpectrum, event.KindHit}

	got := rec.kinds("tap")
	if len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", got, want)
		}
	}
}

func fullScale(n int) []byte {
	mags := make([]byte, n)
	for i := range mags {
		mags[i] = 255
	}

	return mags
}

func TestSpectrumNeedsSampleRate(t *testing.T) {
	svc, rec, _ := newTestService(t)

	tp := levelTap(0)
	tp.freqErr = nil
	tp.frame = FrequencyFrame{Magnitudes: fullScale(512)}

	svc.Register("tap", tp)
	svc.Tick(time.Unix(1000, 0))

	if got := rec.spectra("tap"); len(got) != 0 {
		t.Fatalf("spectrum published without a sample rate")
	}

	if err := svc.SetSampleRate(0); err == nil {
		t.Fatal("expected error for zero sample rate")
	}

	if err := svc.SetSampleRate(48000); err != nil {
		t.Fatal(err)
	}

	svc.Tick(time.Unix(1001, 0))

	spectra := rec.spectra("tap")
	if len(spectra) != 1 {
		t.Fatalf("got %d spectrum events, want 1", len(spectra))
	}

	s := spectra[0]
	if len(s.Bands) != 128 || s.MinHz != 20 || s.MaxHz != 18000 {
		t.Fatalf("unexpected spectrum shape: %d bands %v..%v", len(s.Bands), s.MinHz, s.MaxHz)
	}

	for b, v := range s.Bands {
		if v != 1 {
			t.Fatalf("band %d = %v, want 1", b, v)
		}
	}
}

func TestFrameSampleRateOverridesContext(t *testing.T) {
	svc, rec, _ := newTestService(t)

	tp := levelTap(0)
	tp.freqErr = nil
	tp.frame = FrequencyFrame{Magnitudes: fullScale(256), SampleRate: 44100}

	svc.Register("tap", tp)
	svc.Tick(time.Unix(1000, 0))

	if got := rec.spectra("tap"); len(got) != 1 {
		t.Fatalf("got %d spectrum events, want 1", len(got))
	}
}

func TestIdenticalTapsAverageToOne(t *testing.T) {
	mags := make([]byte, 512)
	for i := range mags {
		mags[i] = byte(i * 7 % 256)
	}

	run := func(n int) []float64 {
		svc, rec, _ := newTestService(t, WithSampleRate(48000))

		for i := 0; i < n; i++ {
			tp := levelTap(0)
			tp.freqErr = nil
			tp.frame = FrequencyFrame{Magnitudes: mags}
			svc.Register("tap", tp)
		}

		svc.Tick(time.Unix(1000, 0))

		spectra := rec.spectra("tap")
		if len(spectra) != 1 {
			t.Fatalf("got %d spectrum events, want 1", len(spectra))
		}

		return spectra[0].Bands
	}

	testutil.RequireSliceNearlyEqual(t, run(3), run(1), 1e-12)
}

func TestObserverMayUnregisterDuringPass(t *testing.T) {
	bus := event.NewBus()
	sched := &manualScheduler{}

	svc, err := New(bus, WithScheduler(sched))
	if err != nil {
		t.Fatal(err)
	}

	svc.Register("a", levelTap(0.5), WithThresholdLinear(0.2), WithAttack(time.Millisecond))
	hb, _ := svc.Register("b", levelTap(0.5))

	var seen []string

	bus.OnLevel(func(e event.LevelEvent) { seen = append(seen, e.ID) })
	bus.OnHit(func(e event.HitEvent) {
		if e.ID == "a" {
			svc.Unregister(hb)
		}
	})

	svc.Tick(time.Unix(1000, 0))

	if len(seen) != 1 || seen[0] != "a" {
		t.Fatalf("levels seen = %v, want [a]", seen)
	}

	if got := svc.Sources(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("Sources() = %v, want [a]", got)
	}
}

func TestObserverMayRegisterDuringPass(t *testing.T) {
	bus := event.NewBus()

	svc, err := New(bus, WithScheduler(&manualScheduler{}))
	if err != nil {
		t.Fatal(err)
	}

	svc.Register("a", levelTap(0))

	var once sync.Once

	bus.OnLevel(func(event.LevelEvent) {
		once.Do(func() {
			if _, err := svc.Register("late", levelTap(0)); err != nil {
				t.Error(err)
			}
		})
	})

	svc.Tick(time.Unix(1000, 0))

	if got := svc.TapCount("late"); got != 1 {
		t.Fatalf("TapCount(late) = %d, want 1", got)
	}
}

func TestCloseClearsRegistry(t *testing.T) {
	svc, _, sched := newTestService(t)

	svc.Register("a", levelTap(0))
	svc.Close()

	if svc.Running() || len(svc.Sources()) != 0 {
		t.Fatal("Close left the service running")
	}

	if _, stops, _ := sched.counts(); stops != 1 {
		t.Fatalf("scheduler stops = %d, want 1", stops)
	}
}

func TestIntervalTickerDrivesPasses(t *testing.T) {
	bus := event.NewBus()

	svc, err := New(bus, WithTickInterval(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	levels, cancel := bus.Subscribe(16)
	defer cancel()

	h, err := svc.Register("tap", levelTap(0.25))
	if err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-levels:
		if e.Source() != "tap" {
			t.Fatalf("event for %q, want tap", e.Source())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ticker produced no event")
	}

	svc.Unregister(h)

	if svc.Running() {
		t.Fatal("ticker still running after last tap removed")
	}
}

func TestConcurrentRegistrationAndTicks(t *testing.T) {
	svc, _, _ := newTestService(t, WithSampleRate(48000))

	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := 0; i < 100; i++ {
				h, err := svc.Register("tap", levelTap(0.3))
				if err != nil {
					t.Error(err)
					return
				}

				svc.Unregister(h)
			}
		}()
	}

	wg.Add(1)

	go func() {
		defer wg.Done()

		now := time.Unix(1000, 0)
		for i := 0; i < 200; i++ {
			svc.Tick(now)
			now = now.Add(tick)
		}
	}()

	wg.Wait()

	if got := svc.Sources(); len(got) != 0 {
		t.Fatalf("Sources() = %v, want empty", got)
	}
}

func TestHandleString(t *testing.T) {
	if got := (Handle{Source: "tap", Tap: 3}).String(); got != "tap#3" {
		t.Fatalf("String() = %q", got)
	}
}
