package indexmap

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/alertidx/pkg/core"
)

// Watched is a mapping backed by a YAML file that reloads on change.
// A file that fails to parse is logged and the last good mapping stays active.
type Watched struct {
	path     string
	current  atomic.Pointer[Static]
	logger   *slog.Logger
	onReload func(error)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// WatchOption configures a Watched mapping.
type WatchOption func(*Watched)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) WatchOption {
	return func(w *Watched) {
		w.logger = logger
	}
}

// WithReloadHook is called after every reload attempt with its outcome.
func WithReloadHook(fn func(error)) WatchOption {
	return func(w *Watched) {
		w.onReload = fn
	}
}

// NewWatched loads path. The first load must succeed.
func NewWatched(path string, opts ...WatchOption) (*Watched, error) {
	w := &Watched{path: filepath.Clean(path)}
	for _, opt := range opts {
		opt(w)
	}
	s, err := Load(w.path)
	if err != nil {
		return nil, err
	}
	w.current.Store(s)
	return w, nil
}

// IndexFor implements core.IndexSupplier.
func (w *Watched) IndexFor(sensorType string) string {
	return w.current.Load().IndexFor(sensorType)
}

// Start watches the mapping file until ctx is done or Close is called.
// The parent directory is watched so editors that replace the file by rename
// are picked up.
func (w *Watched) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return fmt.Errorf("mapping watcher already started")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	done := w.done

	lifecycle.Go(runCtx, func(ctx context.Context) error {
		defer close(done)
		defer watcher.Close()
		return w.run(ctx, watcher)
	}, lifecycle.WithErrorHandler(func(err error) {
		if w.logger != nil {
			w.logger.Error("mapping watcher stopped", "path", w.path, "error", err)
		}
	}))
	return nil
}

// Close stops the watcher and waits for it to exit.
func (w *Watched) Close() error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (w *Watched) run(ctx context.Context, watcher *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			if w.logger != nil {
				w.logger.Error("fsnotify error", "error", err)
			}
		}
	}
}

func (w *Watched) reload() {
	s, err := Load(w.path)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("mapping reload failed, keeping previous", "path", w.path, "error", err)
		}
	} else {
		w.current.Store(s)
		if w.logger != nil {
			w.logger.Debug("mapping reloaded", "path", w.path, "keys", s.Len())
		}
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}

// State implements introspection.Introspectable.
func (w *Watched) State() any {
	w.mu.Lock()
	watching := w.cancel != nil
	w.mu.Unlock()
	return map[string]any{
		"path":     w.path,
		"keys":     w.current.Load().Len(),
		"watching": watching,
	}
}

// ComponentType implements introspection.Component.
func (w *Watched) ComponentType() string {
	return "index-mapping"
}

var _ core.IndexSupplier = (*Watched)(nil)
