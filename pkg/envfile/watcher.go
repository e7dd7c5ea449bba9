package envfile

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/papercomputeco/difyvoice/pkg/logger"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher re-reads an env file whenever it is written or recreated and hands
// the parsed variables to OnChange. Bursts of events within the debounce
// window are coalesced into one reload.
type Watcher struct {
	path     string
	onChange func(env map[string]string)
	debounce time.Duration
	logger   *slog.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides the default 100ms debounce window.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the watcher logger.
func WithLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = l
	}
}

// NewWatcher creates a Watcher for path.
func NewWatcher(path string, onChange func(env map[string]string), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		onChange: onChange,
		debounce: defaultDebounce,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is done. The directory containing the file is
// watched so that editors replacing the file are still noticed.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating env watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching env dir: %w", err)
	}
	w.logger.Debug("watching env file", "path", w.path)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			w.reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("env watcher error: %w", err)
		}
	}
}

func (w *Watcher) reload() {
	env, err := Read(w.path)
	if err != nil {
		w.logger.Warn("env file reload failed", "path", w.path, "error", err)
		return
	}

	w.logger.Debug("env file reloaded", "path", w.path, "keys", len(env))
	if w.onChange != nil {
		w.onChange(env)
	}
}
