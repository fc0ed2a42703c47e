// Package watch re-runs documents when they change on disk. It watches the
// parent directories of the given paths (editors typically replace files
// rather than write them in place, which drops inode-level watches).
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mdrun/internal/logging"
)

// Watcher drives a rerun callback for a fixed set of document paths.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	paths       map[string]string // absolute path -> as-given path
	rerun       func(path string)
	debounceMap map[string]time.Time
	debounceDur time.Duration
}

// New creates a watcher over the given documents. rerun is called with the
// original (as-given) path after a change settles; it runs on the watch
// goroutine, one document at a time, preserving the sequential execution
// model.
func New(paths []string, rerun func(path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:     fsw,
		paths:       make(map[string]string),
		rerun:       rerun,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond, // settle rapid editor saves
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.paths[abs] = p
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, err
		}
		logging.Watch("watching directory: %s", dir)
	}
	return w, nil
}

// Run blocks until ctx is done, dispatching rerun calls as documents settle.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Watch("watch loop stopped")
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.Get(logging.CategoryWatch).Error("watch error: %v", err)

		case <-ticker.C:
			w.dispatchSettled()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}
	if _, watched := w.paths[abs]; !watched {
		return
	}
	logging.WatchDebug("change event for %s", abs)

	w.mu.Lock()
	w.debounceMap[abs] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) dispatchSettled() {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, abs := range settled {
		path := w.paths[abs]
		logging.Watch("re-running %s", path)
		w.rerun(path)
	}
}
