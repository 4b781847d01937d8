package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/goclaw/recall/pkg/logger"
)

// Watcher reloads the config file when it changes and hands the new Config
// to the registered callbacks. It watches the file's directory rather than
// the file, so editors that save by renaming a temp file over it are seen.
type Watcher struct {
	mu         sync.Mutex
	watcher    *fsnotify.Watcher
	loader     *Loader
	configPath string
	overrides  map[string]interface{}
	callbacks  []func(*Config)
	debounce   time.Duration
	reloadMu   sync.Mutex
	stopCh     chan struct{}
	stopOnce   sync.Once
	running    bool
}

// WatcherOption is a functional option for Watcher configuration.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the file must stay quiet before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithOverrides re-applies command line overrides on every reload.
func WithOverrides(overrides map[string]interface{}) WatcherOption {
	return func(w *Watcher) {
		w.overrides = overrides
	}
}

// NewWatcher creates a new configuration file watcher.
func NewWatcher(configPath string, loader *Loader, opts ...WatcherOption) (*Watcher, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is required for watching")
	}

	fswatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher:    fswatcher,
		loader:     loader,
		configPath: filepath.Clean(configPath),
		debounce:   500 * time.Millisecond,
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch blocks until ctx is cancelled or Stop is called. A burst of events
// produces one reload once the file has been quiet for the debounce period.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher is already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	if _, err := os.Stat(w.configPath); err != nil {
		return fmt.Errorf("failed to watch config file %s: %w", w.configPath, err)
	}
	if err := w.watcher.Add(filepath.Dir(w.configPath)); err != nil {
		return fmt.Errorf("failed to watch config file %s: %w", w.configPath, err)
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-w.stopCh:
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.configPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(w.debounce)
			}

		case <-timer.C:
			w.reloadConfig(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "path", w.configPath, "error", err)
		}
	}
}

// reloadConfig reloads the file and runs the callbacks in registration
// order. A failed reload keeps the current configuration.
func (w *Watcher) reloadConfig(ctx context.Context) {
	w.reloadMu.Lock()
	w.loader.Reset()
	cfg, err := w.loader.Load(w.configPath, w.overrides)
	w.reloadMu.Unlock()
	if err != nil {
		logger.Warn("failed to reload config", "path", w.configPath, "error", err)
		return
	}

	w.mu.Lock()
	callbacks := slices.Clone(w.callbacks)
	w.mu.Unlock()

	for _, cb := range callbacks {
		if ctx.Err() != nil {
			return
		}
		runCallback(cb, cfg)
	}
}

func runCallback(cb func(*Config), cfg *Config) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("config callback panic", "panic", r)
		}
	}()
	cb(cfg)
}

// OnChange registers a callback for reloaded configurations. Callbacks run
// on the watch goroutine, one at a time.
func (w *Watcher) OnChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Stop ends Watch and releases the fsnotify watcher. It is safe to call
// more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.watcher.Close()
	})
	return err
}

// HotReloadableConfig contains configuration values that can be hot-reloaded.
type HotReloadableConfig struct {
	LogLevel  string
	Scoring   ScoringConfig
	Strategic StrategicConfig
}

// ExtractHotReloadable extracts hot-reloadable values from Config.
func ExtractHotReloadable(cfg *Config) HotReloadableConfig {
	return HotReloadableConfig{
		LogLevel:  cfg.Log.Level,
		Scoring:   cfg.Memory.Scoring,
		Strategic: cfg.Memory.Strategic,
	}
}

// Changed checks if hot-reloadable configuration has changed.
func (h HotReloadableConfig) Changed(other HotReloadableConfig) bool {
	return h.LogLevel != other.LogLevel ||
		h.Scoring != other.Scoring ||
		h.StrategicChanged(other)
}

// StrategicChanged reports whether the strategic tuning differs.
func (h HotReloadableConfig) StrategicChanged(other HotReloadableConfig) bool {
	a, b := h.Strategic, other.Strategic
	return a.PersonalLimit != b.PersonalLimit ||
		a.ProjectLimit != b.ProjectLimit ||
		a.TaskLimit != b.TaskLimit ||
		a.ProjectThreshold != b.ProjectThreshold ||
		a.TaskThreshold != b.TaskThreshold ||
		a.TaskRecencyWeight != b.TaskRecencyWeight ||
		!slices.Equal(a.GoalKeywords, b.GoalKeywords)
}
