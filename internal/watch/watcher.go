// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package watch re-runs the pipeline when documents under the root change.
// Raw fsnotify events are debounced into batches; each batch triggers one
// callback.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a batch is emitted.
const DefaultDebounce = 2 * time.Second

// IgnoreChecker tells the watcher which paths to leave alone.
type IgnoreChecker interface {
	ShouldIgnoreDir(path string) bool
	ShouldIgnore(path string) bool
	IsIgnoreFile(path string) bool
	Reload()
}

// Watcher watches a directory tree recursively.
type Watcher struct {
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	ignore    IgnoreChecker
	filter    func(path string) bool
	root      string
	logger    *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithFilter drops file events whose path fails keep. Ignore-file events
// and new directories always pass.
func WithFilter(keep func(path string) bool) Option {
	return func(w *Watcher) { w.filter = keep }
}

// New registers every non-ignored directory under root.
func New(root string, ignore IgnoreChecker, debounce time.Duration, logger *slog.Logger, opts ...Option) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		fs:        fsw,
		debouncer: NewDebouncer(debounce),
		ignore:    ignore,
		root:      root,
		logger:    logger,
	}
	for _, o := range opts {
		o(w)
	}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ignore.ShouldIgnoreDir(path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("registering %s: %w", root, err)
	}
	return w, nil
}

// Events returns debounced batches.
func (w *Watcher) Events() <-chan []Event {
	return w.debouncer.Output()
}

// Start forwards fsnotify events to the debouncer until ctx is done or
// the watcher is closed.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := ev.Name

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.ignore.ShouldIgnoreDir(path) {
				if err := w.fs.Add(path); err != nil {
					w.logger.Warn("failed to watch new directory", "path", path, "error", err)
				}
				// Files copied in with the directory produce no events of their own.
				w.debouncer.Add(path, OpCreate)
			}
			return
		}
	}

	if !w.ignore.IsIgnoreFile(path) {
		if w.ignore.ShouldIgnore(path) {
			return
		}
		if w.filter != nil && !w.filter(path) {
			return
		}
	}

	var op Op
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpWrite
	case ev.Has(fsnotify.Remove):
		op = OpRemove
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}
	w.debouncer.Add(path, op)
}

// Close stops watching and closes the Events channel.
func (w *Watcher) Close() error {
	err := w.fs.Close()
	w.debouncer.Stop()
	return err
}

// Serve calls onBatch for every batch until ctx is done. Changes to the
// root's ignore files reload the ignore rules before the callback runs.
// Errors from onBatch are logged and do not stop the loop.
func (w *Watcher) Serve(ctx context.Context, onBatch func(ctx context.Context, batch []Event) error) error {
	go w.Start(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			for _, e := range batch {
				if w.ignore.IsIgnoreFile(e.Path) {
					w.ignore.Reload()
					w.logger.Info("reloaded ignore rules", "trigger", filepath.Base(e.Path))
					break
				}
			}
			w.logger.Debug("change batch", "events", len(batch))
			if err := onBatch(ctx, batch); err != nil {
				w.logger.Error("rerun failed", "error", err)
			}
		}
	}
}
