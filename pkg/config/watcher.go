// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls a single configuration file and reloads it when the
// modification time moves forward. One-shot CLI commands never need it;
// the MCP server uses it so log settings can change without a restart.
// Connection parameters for Qdrant are bound at startup and a reload
// does not touch them.
type Watcher struct {
	path     string
	interval time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	modTime   time.Time
	current   *Config
	listeners []func(*Config)

	stopCh chan struct{}
	doneCh chan struct{}
}

// WatcherOption adjusts watcher behavior.
type WatcherOption func(*Watcher)

// WithWatchInterval overrides the poll interval. Non-positive values
// are ignored.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatchLogger overrides the watcher's logger.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher loads the file at path and returns a watcher primed with
// that snapshot. Call Start to begin polling.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: time.Second,
		logger:   slog.Default(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if info, err := os.Stat(path); err == nil {
		w.modTime = info.ModTime()
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	w.current = cfg
	return w, nil
}

// Config returns the most recently loaded configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers fn to run after each successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Start launches the polling loop. It stops when ctx is done or Stop
// is called.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		defer close(w.doneCh)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-ticker.C:
				if w.fileChanged() {
					w.reload()
				}
			}
		}
	}()
}

// Stop ends the polling loop and waits for it to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *Watcher) fileChanged() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		// Treat a missing file as unchanged; the last good snapshot
		// stays in effect.
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if info.ModTime().After(w.modTime) {
		w.modTime = info.ModTime()
		return true
	}
	return false
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload failed", "path", w.path, "error", err)
		return
	}
	w.logger.Info("config reloaded", "path", w.path)

	w.mu.Lock()
	w.current = cfg
	listeners := make([]func(*Config), len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
}
