package event

import "sync"

// Bus fans events out to observers registered per kind. Observers run
// synchronously on the publishing goroutine, in registration order, and may
// subscribe or cancel from inside a callback.
//
// Bus is safe for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	level    []observer[LevelEvent]
	spectrum []observer[SpectrumEvent]
	hit      []observer[HitEvent]
}

type observer[E any] struct {
	id uint64
	fn func(E)
}

// Subscription is returned by the On* methods.
type Subscription struct {
	cancel func()
	once   *sync.Once
}

// Cancel removes the observer. It is safe to call more than once and on the
// zero Subscription.
func (s Subscription) Cancel() {
	if s.cancel == nil {
		return
	}

	s.once.Do(s.cancel)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// OnLevel registers fn for level events.
func (b *Bus) OnLevel(fn func(LevelEvent)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.allocID()
	b.level = appendObserver(b.level, observer[LevelEvent]{id: id, fn: fn})

	return b.subscription(func() { b.level = removeObserver(b.level, id) })
}

// OnSpectrum registers fn for spectrum events.
func (b *Bus) OnSpectrum(fn func(SpectrumEvent)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.allocID()
	b.spectrum = appendObserver(b.spectrum, observer[SpectrumEvent]{id: id, fn: fn})

	return b.subscription(func() { b.spectrum = removeObserver(b.spectrum, id) })
}

// OnHit registers fn for hit events.
func (b *Bus) OnHit(fn func(HitEvent)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.allocID()
	b.hit = appendObserver(b.hit, observer[HitEvent]{id: id, fn: fn})

	return b.subscription(func() { b.hit = removeObserver(b.hit, id) })
}

func (b *Bus) allocID() uint64 {
	b.nextID++
	return b.nextID
}

func (b *Bus) subscription(remove func()) Subscription {
	return Subscription{
		once: &sync.Once{},
		cancel: func() {
			b.mu.Lock()
			remove()
			b.mu.Unlock()
		},
	}
}

// PublishLevel delivers e to every level observer.
func (b *Bus) PublishLevel(e LevelEvent) {
	b.mu.RLock()
	obs := b.level
	b.mu.RUnlock()

	for _, o := range obs {
		o.fn(e)
	}
}

// PublishSpectrum delivers e to every spectrum observer.
func (b *Bus) PublishSpectrum(e SpectrumEvent) {
	b.mu.RLock()
	obs := b.spectrum
	b.mu.RUnlock()

	for _, o := range obs {
		o.fn(e)
	}
}

// PublishHit delivers e to every hit observer.
func (b *Bus) PublishHit(e HitEvent) {
	b.mu.RLock()
	obs := b.hit
	b.mu.RUnlock()

	for _, o := range obs {
		o.fn(e)
	}
}

// Len returns the number of observers for kind.
func (b *Bus) Len(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	switch kind {
	case KindLevel:
		return len(b.level)
	case KindSpectrum:
		return len(b.spectrum)
	case KindHit:
		return len(b.hit)
	default:
		return 0
	}
}

// Observer lists are copy-on-write so publishers can iterate a snapshot
// without holding the lock.
func appendObserver[E any](list []observer[E], o observer[E]) []observer[E] {
	out := make([]observer[E], len(list), len(list)+1)
	copy(out, list)

	return append(out, o)
}

func removeObserver[E any](list []observer[E], id uint64) []observer[E] {
	out := make([]observer[E], 0, len(list))
	for _, o := range list {
		if o.id != id {
			out = append(out, o)
		}
	}

	return out
}
