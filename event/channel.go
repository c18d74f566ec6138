package event

import "sync"

// Subscribe returns a channel receiving every event kind, and a cancel
// function that detaches it. Sends never block the publisher: when the
// buffer is full the event is dropped. The channel is never closed, since a
// publisher may still hold a snapshot of the observer list.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, max(buffer, 1))

	done := make(chan struct{})
	send := func(e Event) {
		select {
		case <-done:
			return
		default:
		}

		select {
		case ch <- e:
		default:
		}
	}

	subs := []Subscription{
		b.OnLevel(func(e LevelEvent) { send(e) }),
		b.OnSpectrum(func(e SpectrumEvent) { send(e) }),
		b.OnHit(func(e HitEvent) { send(e) }),
	}

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			for _, s := range subs {
				s.Cancel()
			}

			close(done)
		})
	}
}
