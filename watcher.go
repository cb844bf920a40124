// Package main - watcher.go
//
// Hot reload of the config directory. Events are collected per file and
// handled once the file has been quiet for the debounce window, so an editor
// writing a file in several chunks triggers one reload.
package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce is the quiet time before a changed file is reloaded
const DefaultReloadDebounce = 100 * time.Millisecond

// ConfigWatcher dispatches file changes in one directory to per-file handlers.
type ConfigWatcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu       sync.RWMutex
	handlers map[string]func()
}

// NewConfigWatcher creates a watcher for dir
func NewConfigWatcher(dir string) (*ConfigWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &ConfigWatcher{
		dir:      dir,
		watcher:  fsw,
		debounce: DefaultReloadDebounce,
		handlers: make(map[string]func()),
	}, nil
}

// Handle registers fn for changes to the file called name inside the directory
func (w *ConfigWatcher) Handle(name string, fn func()) {
	w.mu.Lock()
	w.handlers[name] = fn
	w.mu.Unlock()
}

func (w *ConfigWatcher) handler(path string) (func(), bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	fn, ok := w.handlers[filepath.Base(path)]
	return fn, ok
}

// Start begins watching; events are processed until ctx is cancelled
func (w *ConfigWatcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", w.dir, err)
	}
	LogInfo("[CONFIG] Watching %s for changes", w.dir)
	go w.run(ctx)
	return nil
}

// Stop closes the underlying watcher
func (w *ConfigWatcher) Stop() error {
	return w.watcher.Close()
}

func (w *ConfigWatcher) run(ctx context.Context) {
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if _, known := w.handler(event.Name); !known {
				continue
			}
			// Rename covers editors that save through a temp file
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pending[event.Name] = time.Now()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			LogWarn("[CONFIG] Watcher error: %v", err)

		case <-ticker.C:
			now := time.Now()
			for path, at := range pending {
				if now.Sub(at) < w.debounce {
					continue
				}
				delete(pending, path)
				if fn, ok := w.handler(path); ok {
					LogInfo("[CONFIG] %s changed, reloading", filepath.Base(path))
					SafeGo(fn)
				}
			}
		}
	}
}
