package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher monitors a directory tree and reports changed paths so the cache
// owner can invalidate them. Paths are delivered on a channel instead of a
// callback because the cache is single-goroutine by contract: the owner
// drains Invalidations from the same goroutine that uses the cache.
type Watcher struct {
	watcher            *fsnotify.Watcher
	root               string
	stabilityThreshold time.Duration

	invalidations chan string
	done          chan struct{}
	stopOnce      sync.Once

	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	logger zerolog.Logger
}

// WatcherConfig holds watcher construction parameters.
type WatcherConfig struct {
	// Root is the directory tree to monitor.
	Root string
	// StabilityThreshold debounces rapid successive events on one path.
	StabilityThreshold time.Duration
}

// NewWatcher creates a watcher for the given root.
func NewWatcher(cfg WatcherConfig, logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if cfg.StabilityThreshold == 0 {
		cfg.StabilityThreshold = 100 * time.Millisecond
	}

	return &Watcher{
		watcher:            fw,
		root:               cfg.Root,
		stabilityThreshold: cfg.StabilityThreshold,
		invalidations:      make(chan string, 64),
		done:               make(chan struct{}),
		debounceTimers:     make(map[string]*time.Timer),
		logger:             logger.With().Str("component", "cache-watcher").Logger(),
	}, nil
}

// Invalidations delivers debounced changed paths until the watcher stops.
func (w *Watcher) Invalidations() <-chan string {
	return w.invalidations
}

// Start begins watching the root tree.
func (w *Watcher) Start() error {
	if err := w.addDirectoryRecursive(w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}

	go w.eventLoop()

	w.logger.Info().Str("path", w.root).Msg("Cache watcher started")
	return nil
}

// Stop stops the watcher and cancels pending debounce timers.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	clear(w.debounceTimers)
	w.debounceMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.logger.Info().Msg("Cache watcher stopped")
	return nil
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.shouldIgnore(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// A newly created directory needs its own watch.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addDirectoryRecursive(event.Name)
			return
		}
	}

	w.debounceEvent(event.Name)
}

// debounceEvent coalesces rapid changes to the same path.
func (w *Watcher) debounceEvent(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debounceTimers[path]; exists {
		timer.Stop()
	}

	w.debounceTimers[path] = time.AfterFunc(w.stabilityThreshold, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()

		select {
		case <-w.done:
		case w.invalidations <- path:
		default:
			w.logger.Warn().Str("path", path).Msg("Invalidation channel full, dropping event")
		}
	})
}

func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") && base != filepath.Base(w.root) {
		return true
	}
	return strings.HasSuffix(base, ".tmp") || strings.HasSuffix(base, ".swp")
}

func (w *Watcher) addDirectoryRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}
