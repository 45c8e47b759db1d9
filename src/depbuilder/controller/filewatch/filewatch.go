// Package filewatch drops cached results for files that change on disk.
package filewatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	tally "github.com/uber-go/tally/v4"
	"github.com/uber/depbuilder/src/depbuilder/repository/cache"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_nameKey   = "filewatch"
	_watchedOp = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
)

// Params defines the dependencies that will be available to the watcher.
type Params struct {
	fx.In

	Config config.Provider
	Cache  cache.Repository
	Logger *zap.SugaredLogger
	Stats  tally.Scope
}

// Invalidator drops cached results for a file.
type Invalidator interface {
	InvalidateFile(ctx context.Context, path string) int
}

// Watcher invalidates cached results of queried files when they change.
type Watcher interface {
	// Track watches the directory of path and invalidates path whenever it changes.
	Track(path string) error
	// Close stops watching and cancels pending invalidations. It is safe to call more than once.
	Close() error
}

type watcher struct {
	watcher     *fsnotify.Watcher
	invalidator Invalidator
	debounce    time.Duration
	logger      *zap.SugaredLogger
	stats       tally.Scope

	mu      sync.Mutex
	closed  bool
	dirs    map[string]struct{}
	files   map[string]struct{}
	timers  map[string]*time.Timer
	pending sync.WaitGroup

	closer    chan struct{}
	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
}

// New creates a watcher from the "cache" configuration block.
// When watching is disabled the returned Watcher does nothing.
func New(p Params) (Watcher, error) {
	cfg, err := cache.LoadConfig(p.Config)
	if err != nil {
		return nil, err
	}
	if !cfg.Watch {
		p.Logger.Infow("file watching disabled, relying on content hashes")
		return nop{}, nil
	}
	return NewWatcher(p.Cache, cfg.Debounce, p.Logger, p.Stats)
}

// NewWatcher starts watching. Events for a tracked file are debounced per file for debounce
// before the file is invalidated.
func NewWatcher(invalidator Invalidator, debounce time.Duration, logger *zap.SugaredLogger, stats tally.Scope) (Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fs watcher: %w", err)
	}
	if stats == nil {
		stats = tally.NoopScope
	}

	w := &watcher{
		watcher:     fw,
		invalidator: invalidator,
		debounce:    debounce,
		logger:      logger.Named(_nameKey),
		stats:       stats.SubScope(_nameKey),
		dirs:        make(map[string]struct{}),
		files:       make(map[string]struct{}),
		timers:      make(map[string]*time.Timer),
		closer:      make(chan struct{}),
	}
	w.wg.Add(1)
	go w.handleChanges()
	return w, nil
}

// Track implements Watcher.
func (w *watcher) Track(path string) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.files[path] = struct{}{}
	_, watched := w.dirs[dir]
	if !watched {
		w.dirs[dir] = struct{}{}
	}
	w.mu.Unlock()

	if watched {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		w.mu.Lock()
		delete(w.dirs, dir)
		w.mu.Unlock()
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.logger.Debugw("watching directory", "dir", dir)
	return nil
}

// Close implements Watcher.
func (w *watcher) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		for name, timer := range w.timers {
			if timer.Stop() {
				w.pending.Done()
			}
			delete(w.timers, name)
		}
		w.mu.Unlock()

		close(w.closer)
		w.wg.Wait()
		w.pending.Wait()
		if err := w.watcher.Close(); err != nil {
			w.closeErr = fmt.Errorf("failed to close fs watcher: %w", err)
		}
	})
	return w.closeErr
}

func (w *watcher) handleChanges() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(_watchedOp) {
				continue
			}
			w.handleDebounce(filepath.Clean(event.Name))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("failure in file watcher", "error", err)
			w.stats.Counter("errors").Inc(1)
		case <-w.closer:
			return
		}
	}
}

// handleDebounce restarts the quiet period of name, scheduling its invalidation.
func (w *watcher) handleDebounce(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if _, ok := w.files[name]; !ok {
		return
	}
	if timer, ok := w.timers[name]; ok && timer.Stop() {
		w.pending.Done()
	}

	w.pending.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		defer w.pending.Done()
		w.invalidate(name, &timer)
	})
	w.timers[name] = timer
}

// invalidate reads timer under the lock since the callback may start before it is assigned.
func (w *watcher) invalidate(name string, timer **time.Timer) {
	w.mu.Lock()
	if w.timers[name] == *timer {
		delete(w.timers, name)
	}
	w.mu.Unlock()

	dropped := w.invalidator.InvalidateFile(context.Background(), name)
	w.stats.Counter("invalidations").Inc(1)
	w.logger.Debugw("file changed", "file", name, "dropped", dropped)
}

type nop struct{}

func (nop) Track(string) error { return nil }

func (nop) Close() error { return nil }
