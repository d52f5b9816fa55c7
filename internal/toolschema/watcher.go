package toolschema

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 200 * time.Millisecond

// Watcher serves the override schema at path and swaps in a new one each
// time the file is rewritten and still parses. Requests already holding a
// schema keep the one they started with.
type Watcher struct {
	path    string
	current atomic.Pointer[Schema]
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	// Done is closed when the event loop exits.
	Done chan struct{}
}

func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create schema watcher: %w", err)
	}
	// Editors often replace the file instead of writing it in place, so
	// watch the directory and filter by name.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %q: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		path:    filepath.Clean(path),
		logger:  logger,
		watcher: fw,
		Done:    make(chan struct{}),
	}
	w.current.Store(s)
	return w, nil
}

func (w *Watcher) Current() *Schema {
	return w.current.Load()
}

// Start runs the event loop until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.Done)
	defer w.watcher.Close()

	debounce := time.NewTimer(reloadDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			debounce.Reset(reloadDebounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("schema watcher error", zap.Error(err))
		case <-debounce.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	s, err := Load(w.path)
	if err != nil {
		w.logger.Warn("schema reload rejected, keeping previous version",
			zap.String("path", w.path), zap.Error(err))
		return
	}
	w.current.Store(s)
	w.logger.Info("schema reloaded",
		zap.String("path", w.path),
		zap.Int("version", s.Version),
		zap.Int("tables", len(s.Tables)))
}
