package voice

import (
	"context"
	"sync"
)

// Player starts voices and keeps track of the ones still playing.
type Player struct {
	reg  Registrar
	opts []Option

	mu     sync.Mutex
	voices map[*Voice]struct{}
}

func NewPlayer(reg Registrar, opts ...Option) *Player {
	return &Player{
		reg:    reg,
		opts:   opts,
		voices: make(map[*Voice]struct{}),
	}
}

// Play starts a new voice for s. Overlapping calls for the same sound add
// taps to the same gate entry.
func (p *Player) Play(ctx context.Context, s Sound) (*Voice, error) {
	v, err := Start(ctx, p.reg, s, p.opts...)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.voices[v] = struct{}{}
	p.mu.Unlock()

	go func() {
		<-v.Done()

		p.mu.Lock()
		delete(p.voices, v)
		p.mu.Unlock()
	}()

	return v, nil
}

// Active returns the number of voices still playing.
func (p *Player) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.voices)
}

// StopAll stops every playing voice and waits for them to unregister.
func (p *Player) StopAll() {
	p.mu.Lock()
	voices := make([]*Voice, 0, len(p.voices))
	for v := range p.voices {
		voices = append(voices, v)
	}
	p.mu.Unlock()

	for _, v := range voices {
		v.Stop()
	}
}
