package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// HotConfig wraps Config with hot-reload support
type HotConfig struct {
	mu   sync.RWMutex
	cfg  *Config
	path string
	subs []func(*Config)
}

func NewHotConfig(path string) (*HotConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &HotConfig{cfg: cfg, path: path}, nil
}

func (hc *HotConfig) Get() *Config {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.cfg
}

// OnReload registers a callback for config changes
func (hc *HotConfig) OnReload(fn func(*Config)) {
	hc.mu.Lock()
	hc.subs = append(hc.subs, fn)
	hc.mu.Unlock()
}

// reload keeps the previous config when the file does not load.
func (hc *HotConfig) reload() {
	cfg, err := Load(hc.path)
	if err != nil {
		slog.Error("config reload failed", "err", err)
		return
	}
	hc.mu.Lock()
	hc.cfg = cfg
	subs := append([]func(*Config){}, hc.subs...)
	hc.mu.Unlock()

	slog.Info("config reloaded", "path", hc.path, "sounds", len(cfg.Sounds))
	for _, fn := range subs {
		fn(cfg)
	}
}

// Watch starts watching the config file for changes until ctx is done. The
// parent directory is watched so that editors which save by renaming a new
// file over the old one keep triggering reloads.
func (hc *HotConfig) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}

	target := filepath.Clean(hc.path)
	dir := filepath.Dir(target)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					hc.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("config watcher error", "err", err)
			}
		}
	}()

	return nil
}
