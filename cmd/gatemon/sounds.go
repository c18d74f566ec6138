package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/cwbudde/algo-gate/internal/config"
	"github.com/cwbudde/algo-gate/internal/voice"
)

// soundTable holds the decoded sounds selected on the command line. It is
// rebuilt when the config file changes.
type soundTable struct {
	dir    string
	filter []string

	mu     sync.Mutex
	sounds []voice.Sound
}

func newSoundTable(configPath string, cfg *config.Config, filter []string) (*soundTable, error) {
	t := &soundTable{dir: filepath.Dir(configPath), filter: filter}
	if err := t.reload(cfg); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *soundTable) reload(cfg *config.Config) error {
	sounds, err := t.load(cfg)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.sounds = sounds
	t.mu.Unlock()
	return nil
}

func (t *soundTable) load(cfg *config.Config) ([]voice.Sound, error) {
	entries := cfg.Sounds
	if len(t.filter) > 0 {
		entries = nil
		for _, id := range t.filter {
			s, ok := cfg.Sound(id)
			if !ok {
				return nil, fmt.Errorf("unknown sound %q", id)
			}
			entries = append(entries, s)
		}
	}

	sounds := make([]voice.Sound, 0, len(entries))
	for _, s := range entries {
		path := s.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(t.dir, path)
		}
		clip, err := voice.LoadWAV(path)
		if err != nil {
			return nil, fmt.Errorf("sound %s: %w", s.ID, err)
		}
		sounds = append(sounds, voice.Sound{
			ID:         s.ID,
			Samples:    clip.Samples,
			SampleRate: clip.SampleRate,
			Gain:       s.LinearGain(),
			Loop:       s.Loop,
			Gate:       s.Gate.Options(),
		})
	}
	return sounds, nil
}

func (t *soundTable) snapshot() []voice.Sound {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]voice.Sound(nil), t.sounds...)
}

// play starts the loops once and replays one-shots every interval until ctx
// is done. Loops added by a reload start on the next interval.
func (t *soundTable) play(ctx context.Context, p *voice.Player, interval time.Duration) {
	looping := make(map[string]bool)

	start := func() {
		for _, s := range t.snapshot() {
			if s.Loop && looping[s.ID] {
				continue
			}
			v, err := p.Play(ctx, s)
			if err != nil {
				slog.Error("play failed", "sound", s.ID, "err", err)
				continue
			}
			slog.Debug("voice started", "tap", v.Handle(), "gain", s.Gain)
			if s.Loop {
				looping[s.ID] = true
			}
		}
	}

	start()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start()
		}
	}
}
