package fixtures

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/architech-studio/architech/pkg/logging"
)

// Default debounce windows for fixture reloads
const (
	DefaultQuietPeriod = 200 * time.Millisecond
	DefaultMaxWait     = 2 * time.Second
)

// Watcher reseeds fixtures into a sink whenever their files change
type Watcher struct {
	dir         string
	sink        Sink
	quietPeriod time.Duration
	maxWait     time.Duration
	reloaded    func(Fixture)
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithDebounce overrides the debounce windows
func WithDebounce(quietPeriod, maxWait time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.quietPeriod = quietPeriod
		w.maxWait = maxWait
	}
}

// OnReload registers a callback invoked after each fixture is reseeded
func OnReload(fn func(Fixture)) WatcherOption {
	return func(w *Watcher) { w.reloaded = fn }
}

// NewWatcher creates a watcher for dir
func NewWatcher(dir string, sink Sink, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		dir:         dir,
		sink:        sink,
		quietPeriod: DefaultQuietPeriod,
		maxWait:     DefaultMaxWait,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches the directory until ctx is done. ready, if non-nil, is
// closed once the directory is being watched.
func (w *Watcher) Run(ctx context.Context, ready chan<- struct{}) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	logging.Info("watching fixtures", "dir", w.dir)
	if ready != nil {
		close(ready)
	}

	changes := make(chan ChangeEvent, 100)
	debouncer := NewDebouncer(changes, w.quietPeriod, w.maxWait)
	debouncer.Start(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !IsFixture(event.Name) || !(event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create)) {
				continue
			}
			logging.Trace("fixture changed", "path", event.Name, "op", event.Op.String())
			select {
			case changes <- ChangeEvent{Paths: []string{event.Name}, Timestamp: time.Now()}:
			default:
				logging.Warn("dropping fixture change, reload queue full", "path", event.Name)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.Error("fixture watcher error", "error", err)

		case batch, ok := <-debouncer.Output():
			if !ok {
				return nil
			}
			w.reload(batch.Paths)
		}
	}
}

func (w *Watcher) reload(paths []string) {
	for _, path := range paths {
		f, err := Load(path)
		if err != nil {
			// Files removed between the event and the reload are not errors
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			logging.Warn("fixture reload failed", "path", path, "error", err)
			continue
		}
		p, d := f.Records()
		w.sink.Seed(p, d)
		logging.Info("fixture reloaded", "path", path, "projectID", f.Project.ID)
		if w.reloaded != nil {
			w.reloaded(f)
		}
	}
}
