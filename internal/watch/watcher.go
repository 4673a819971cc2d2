// Package watch re-runs a sync whenever a snapshot file changes on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"tasksync/internal/utils"
)

// DefaultDebounce is how long a file must stay quiet before a sync runs
const DefaultDebounce = 250 * time.Millisecond

// SyncFunc is called with the snapshot path after each settled change
type SyncFunc func(ctx context.Context, path string) error

// Options configures a Watcher
type Options struct {
	// Debounce collapses bursts of events into one sync. Zero selects DefaultDebounce.
	Debounce time.Duration
	// Initial runs one sync as soon as Run starts
	Initial bool
	// OnError receives errors from the sync callback and from fsnotify.
	// They are logged when nil.
	OnError func(error)
}

// Watcher watches a single snapshot file. The parent directory is watched
// rather than the file so editors that save by rename are still seen.
type Watcher struct {
	path string
	dir  string
	opts Options
	fn   SyncFunc
}

// New creates a watcher for path
func New(path string, fn SyncFunc, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		path: abs,
		dir:  filepath.Dir(abs),
		opts: opts,
		fn:   fn,
	}, nil
}

// Path returns the absolute path being watched
func (w *Watcher) Path() string {
	return w.path
}

// Run blocks until ctx is cancelled. Syncs run one at a time on the calling
// goroutine's event loop, never concurrently.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", w.dir, err)
	}
	utils.Debugf("Watching %s", w.path)

	if w.opts.Initial {
		w.sync(ctx)
	}

	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			utils.Debugf("Snapshot event: %s", event)
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.opts.Debounce)
			pending = true

		case <-timer.C:
			pending = false
			w.sync(ctx)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.report(fmt.Errorf("watch error: %w", err))
		}
	}
}

// relevant keeps create, write and rename-into events for the watched file
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write)
}

func (w *Watcher) sync(ctx context.Context) {
	if err := w.fn(ctx, w.path); err != nil {
		w.report(err)
	}
}

func (w *Watcher) report(err error) {
	if w.opts.OnError != nil {
		w.opts.OnError(err)
		return
	}
	utils.Warnf("%v", err)
}
