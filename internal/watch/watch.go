// Package watch re-runs a function whenever a file changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher observes a single file. Builds usually replace the output rather
// than write it in place, so the parent directory is watched and events are
// filtered by name.
type Watcher struct {
	path     string
	debounce time.Duration
	log      *zap.Logger
	fsw      *fsnotify.Watcher
}

// New starts watching path. The watch is established before New returns, so
// changes made afterwards are never missed. Close the Watcher, or call Run,
// to release it.
func New(path string, debounce time.Duration, log *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	dir := filepath.Dir(abs)
	if err = fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	log.Debug("watching", zap.String("path", abs))
	return &Watcher{path: abs, debounce: debounce, log: log, fsw: fsw}, nil
}

// Path is the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Run calls onChange after each settled burst of changes to the file, until
// ctx is done. Errors from onChange are logged and do not stop the loop. Run
// closes the watcher before returning, and returns nil when ctx ends it.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context) error) error {
	defer w.Close()

	// A stopped timer with a drained channel; armed by the first event.
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.log.Debug("file event", zap.String("path", ev.Name), zap.Stringer("op", ev.Op))
			timer.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		case <-timer.C:
			if _, err := os.Stat(w.path); errors.Is(err, os.ErrNotExist) {
				// Removed, or mid-rename. A later create re-arms the timer.
				w.log.Debug("file missing, waiting", zap.String("path", w.path))
				continue
			}
			if err := onChange(ctx); err != nil {
				w.log.Error("reload failed", zap.String("path", w.path), zap.Error(err))
			}
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
