package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a watcher waits for writes to settle before reloading.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a configuration file when it changes on disk.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	debounce time.Duration
}

// WatchOption configures a Watcher.
type WatchOption func(w *Watcher)

// WithDebounce sets how long the watcher waits after the last change before reloading.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher starts watching path. The parent directory is watched rather than the file, so
// editors that save by renaming a temporary file are seen too.
//
// Parameters:
//   - path: the configuration file
//   - options: watch options
//
// Returns:
//   - *Watcher: the watcher, events are queued until Run is called
//   - error: an error if the directory cannot be watched
func NewWatcher(path string, options ...WatchOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w := &Watcher{path: abs, fsw: fsw, debounce: DefaultDebounce}
	for _, option := range options {
		option(w)
	}
	return w, nil
}

// Run delivers a freshly loaded configuration to fn after every settled change of the file,
// until ctx is done or the watcher is closed. A file that fails to load is reported through
// the error argument and the previous configuration stays in effect on the caller's side.
//
// Parameters:
//   - ctx: stops the loop when done
//   - fn: receives each reload result on the Run goroutine
//
// Returns:
//   - error: nil when ctx is done, otherwise the watcher failure
func (w *Watcher) Run(ctx context.Context, fn func(*Config, error)) error {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				common.Logger().Warn("config watch overflowed, reloading", "path", w.path)
				timer.Reset(w.debounce)
				continue
			}
			return fmt.Errorf("config: watch %s: %w", w.path, err)

		case <-timer.C:
			cfg, err := Load(w.path)
			if err != nil {
				common.Logger().Warn("config reload failed", "path", w.path, "error", err)
			} else {
				common.Logger().Info("config reloaded", "path", w.path)
			}
			fn(cfg, err)
		}
	}
}

// Close stops watching. A running Run returns.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Watch is NewWatcher followed by Run, closing the watcher when ctx is done.
//
// Parameters:
//   - ctx: stops watching when done
//   - path: the configuration file
//   - fn: receives each reload result
//   - options: watch options
//
// Returns:
//   - error: an error if watching fails
func Watch(ctx context.Context, path string, fn func(*Config, error), options ...WatchOption) error {
	w, err := NewWatcher(path, options...)
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Run(ctx, fn)
}
