package engine

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"stencil-go/packages/compiler/src/config"
)

// Watcher observes a template tree and reports changed template sources.
// It is a development aid: paired with debug mode, a change invalidates the
// stale unit on the next compile attempt.
type Watcher struct {
	watcher *fsnotify.Watcher
	suffix  string
	logger  *slog.Logger
}

// NewWatcher creates a watcher over a template root and all of its
// subdirectories.
func NewWatcher(root string, opts *config.Options, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{watcher: fsw, suffix: opts.DefaultSuffix, logger: logger}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops the watcher
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run delivers changed template paths to the callback until the context is
// cancelled or the watcher closes.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event, onChange)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event, onChange func(path string)) {
	if event.Op&fsnotify.Create != 0 {
		// A created directory joins the watch set.
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Warn("watch add failed", slog.String("path", event.Name), slog.String("error", err.Error()))
			}
			return
		}
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if !strings.HasSuffix(event.Name, w.suffix) {
		return
	}
	w.logger.Debug("template changed", slog.String("path", event.Name), slog.String("op", event.Op.String()))
	onChange(event.Name)
}
