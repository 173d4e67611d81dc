package ingestion_engine

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EnqueueFunc hands a changed path to the pipeline.
type EnqueueFunc func(ctx context.Context, path string) error

// Watcher re-ingests files under root as they change. Events for one path
// are coalesced until it has been quiet for the debounce interval. Removals
// are ignored; stored chunks are never deleted.
type Watcher struct {
	root     string
	match    func(string) bool
	debounce time.Duration
	enqueue  EnqueueFunc
	logger   *slog.Logger
}

// NewWatcher builds a watcher. match may be nil to accept every file.
func NewWatcher(root string, match func(string) bool, debounce time.Duration, enqueue EnqueueFunc, logger *slog.Logger) *Watcher {
	if match == nil {
		match = func(string) bool { return true }
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		root:     root,
		match:    match,
		debounce: debounce,
		enqueue:  enqueue,
		logger:   logger.With("component", "watcher"),
	}
}

// pendingQueue bounds changes waiting for the pipeline. Changes beyond it
// are dropped with a warning so the event loop never blocks.
const pendingQueue = 256

// firing is a debounce timer expiry. gen identifies the timer that fired so
// an expiry superseded by a later event is ignored.
type firing struct {
	path string
	gen  uint64
}

type debounced struct {
	timer *time.Timer
	gen   uint64
}

// Run blocks until ctx is done or the watcher cannot be created.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("watching for changes", "root", w.root, "debounce", w.debounce)

	ready := make(chan string, pendingQueue)
	go w.dispatch(ctx, ready)

	timers := make(map[string]*debounced)
	fire := make(chan firing, 64)
	defer func() {
		for _, d := range timers {
			d.timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(fw, ev.Name); err != nil {
						w.logger.Warn("cannot watch new directory", "dir", ev.Name, "err", err)
					}
					continue
				}
			}
			if !w.match(ev.Name) {
				continue
			}
			d, ok := timers[ev.Name]
			if ok {
				d.timer.Stop()
				d.gen++
			} else {
				d = &debounced{}
				timers[ev.Name] = d
			}
			f := firing{path: ev.Name, gen: d.gen}
			d.timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- f:
				case <-ctx.Done():
				}
			})

		case f := <-fire:
			d, ok := timers[f.path]
			if !ok || d.gen != f.gen {
				continue
			}
			delete(timers, f.path)
			select {
			case ready <- f.path:
			default:
				w.logger.Warn("pipeline queue full, dropping change", "path", f.path)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

// dispatch hands settled changes to the pipeline off the event loop.
func (w *Watcher) dispatch(ctx context.Context, ready <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-ready:
			if err := w.enqueue(ctx, path); err != nil {
				w.logger.Warn("enqueue failed", "path", path, "err", err)
				continue
			}
			w.logger.Debug("change enqueued", "path", path)
		}
	}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
