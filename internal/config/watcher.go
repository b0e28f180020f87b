package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Hooks receive the settings that take effect without a restart. Each hook
// runs only when its value changed. Nil hooks are skipped.
type Hooks struct {
	LogLevel     func(LogLevel)
	PollInterval func(time.Duration)
	XPPerWord    func(int)
}

// ChangeFunc observes every accepted config change, after the hooks ran.
type ChangeFunc func(old, new *Config, d ConfigDiff)

// Watcher keeps the config file and the running process in step. It polls
// the file, and [Watcher.Reload] checks it on demand. A changed, valid file
// replaces the current config and its live settings are handed to the
// [Hooks]; changes that need a restart are logged. Invalid edits are
// rejected and the previous config stays in effect.
type Watcher struct {
	path     string
	interval time.Duration
	hooks    Hooks
	onChange ChangeFunc

	// reloadMu serialises polls and explicit reloads.
	reloadMu sync.Mutex
	hash     [sha256.Size]byte

	mu      sync.Mutex
	current *Config

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds. A
// negative interval disables polling; only [Watcher.Reload] reads the file.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d != 0 {
			w.interval = d
		}
	}
}

// WithChangeFunc registers fn to observe accepted changes.
func WithChangeFunc(fn ChangeFunc) WatcherOption {
	return func(w *Watcher) { w.onChange = fn }
}

// NewWatcher loads path and starts watching it. The initial load must
// succeed; its settings are not passed to the hooks.
func NewWatcher(path string, hooks Hooks, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		hooks:    hooks,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, hash, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current, w.hash = cfg, hash

	if w.interval > 0 {
		go w.poll()
	}
	return w, nil
}

// Current returns the config in effect.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

// Reload reads the file now and applies it if its content changed. Unlike
// polling it reports an unreadable or invalid file to the caller. An
// unchanged file yields an empty diff.
func (w *Watcher) Reload() (ConfigDiff, error) {
	return w.reload()
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if _, err := w.reload(); err != nil {
				slog.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
			}
		}
	}
}

func (w *Watcher) reload() (ConfigDiff, error) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	cfg, hash, err := w.read()
	if err != nil {
		return ConfigDiff{}, err
	}
	if hash == w.hash {
		return ConfigDiff{}, nil
	}
	w.hash = hash

	w.mu.Lock()
	old := w.current
	w.current = cfg
	w.mu.Unlock()

	d := Diff(old, cfg)
	w.apply(d)
	slog.Info("config watcher: configuration reloaded", "path", w.path, "changed", d.Changed())
	if w.onChange != nil {
		w.onChange(old, cfg, d)
	}
	return d, nil
}

// apply hands the live settings of d to the hooks.
func (w *Watcher) apply(d ConfigDiff) {
	if d.LogLevelChanged && w.hooks.LogLevel != nil {
		w.hooks.LogLevel(d.NewLogLevel)
	}
	if d.PollIntervalChanged && w.hooks.PollInterval != nil {
		w.hooks.PollInterval(d.NewPollInterval)
	}
	if d.XPPerWordChanged && w.hooks.XPPerWord != nil {
		w.hooks.XPPerWord(d.NewXPPerWord)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config watcher: changes take effect after a restart", "sections", d.RestartRequired)
	}
}

// read parses and validates the file and returns it with its content hash.
func (w *Watcher) read() (*Config, [sha256.Size]byte, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	return cfg, sha256.Sum256(data), nil
}
