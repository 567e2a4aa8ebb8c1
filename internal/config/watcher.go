package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/platformbuilds/hindsight/pkg/logger"
)

// Watcher reloads configuration when the file changes and fans the new
// config out to registered callbacks. Reloads that fail validation are
// logged and dropped; the previous config stays in effect.
type Watcher struct {
	config     *Config
	configPath string
	logger     logger.Logger
	mu         sync.RWMutex
	callbacks  []func(*Config)
	stopCh     chan struct{}
	stopOnce   sync.Once
}

func NewWatcher(configPath string, log logger.Logger) *Watcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Watcher{
		configPath: configPath,
		logger:     log,
		callbacks:  make([]func(*Config), 0),
		stopCh:     make(chan struct{}),
	}
}

// Start begins watching for configuration file changes. It blocks
// until the context is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.configPath); err != nil {
		return fmt.Errorf("failed to watch config file: %w", err)
	}

	w.logger.Info("Configuration watcher started", "configPath", w.configPath)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Info("Configuration file changed, reloading", "file", event.Name)
			if err := w.reload(); err != nil {
				w.logger.Error("Failed to reload configuration", "error", err)
				continue
			}
			w.notify()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Configuration watcher error", "error", err)

		case <-ctx.Done():
			w.logger.Info("Configuration watcher stopping")
			return nil

		case <-w.stopCh:
			w.logger.Info("Configuration watcher stopped")
			return nil
		}
	}
}

// OnChange adds a callback invoked with each successfully reloaded config.
func (w *Watcher) OnChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Current returns the most recently loaded configuration, or nil before
// the first successful reload.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Stop stops the configuration watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

func (w *Watcher) reload() error {
	newConfig, err := Load()
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.config = newConfig
	w.mu.Unlock()

	w.logger.Info("Configuration reloaded successfully")
	return nil
}

func (w *Watcher) notify() {
	w.mu.RLock()
	config := w.config
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, callback := range callbacks {
		go func(fn func(*Config)) {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("Configuration callback panic", "panic", r)
				}
			}()
			fn(config)
		}(callback)
	}
}
