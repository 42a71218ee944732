// Package graphwatch keeps a Graph in sync with its YAML definition file.
//
// The current Graph is swapped atomically on every successful reload, so
// readers never observe a partially built Graph. A definition that fails to
// decode or build leaves the previous Graph in place.
//
//	w, err := graphwatch.New("graph.yaml", reg, graphwatch.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//	go w.Run(ctx)
//	guard := privacy.NewGuard(w)
package graphwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/syssam/datagraph/graph"
	"github.com/syssam/datagraph/schema"
)

// DefaultDebounce is how long Run waits for further changes before reloading.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a graph definition file when it changes.
type Watcher struct {
	path     string
	reg      *schema.Registry
	current  atomic.Pointer[graph.Graph]
	fsw      *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
	onReload func(*graph.Graph, error)

	mu        sync.Mutex // serializes reloads
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger reloads are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithOnReload registers a callback invoked after every reload attempt made
// by Run, with the new Graph or the error that kept the old one.
func WithOnReload(fn func(*graph.Graph, error)) Option {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// New loads the definition at path against reg and starts watching its
// directory. The initial load must succeed.
func New(path string, reg *schema.Registry, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("graphwatch: %w", err)
	}
	w := &Watcher{
		path:     abs,
		reg:      reg,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if _, err := w.Reload(); err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("graphwatch: create watcher: %w", err)
	}
	// Editors often replace the file, so the directory is watched.
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("graphwatch: watch %s: %w", filepath.Dir(abs), err)
	}
	w.fsw = fsw
	return w, nil
}

// Graph returns the current Graph.
func (w *Watcher) Graph() *graph.Graph {
	return w.current.Load()
}

// Path returns the absolute path of the definition file.
func (w *Watcher) Path() string {
	return w.path
}

// Reload reads and builds the definition now. On failure the current Graph
// is kept and the error returned.
func (w *Watcher) Reload() (*graph.Graph, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("graphwatch: read definition: %w", err)
	}
	g, err := graph.Load(w.reg, data)
	if err != nil {
		return nil, fmt.Errorf("graphwatch: load %s: %w", w.path, err)
	}
	w.current.Store(g)
	return g, nil
}

// Run reloads the definition after it changes until ctx is done or the
// Watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending bool
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC, pending = timer.C, true
		case <-timerC:
			if !pending {
				continue
			}
			pending, timerC = false, nil
			w.reload(ctx)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.ErrorContext(ctx, "graphwatch: watcher error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	g, err := w.Reload()
	switch {
	case errors.Is(err, os.ErrNotExist):
		w.logger.WarnContext(ctx, "graphwatch: definition missing, keeping current graph", slog.String("path", w.path))
	case err != nil:
		w.logger.WarnContext(ctx, "graphwatch: reload failed, keeping current graph", slog.String("path", w.path), slog.Any("error", err))
	default:
		w.logger.InfoContext(ctx, "graphwatch: reloaded", slog.String("path", w.path), slog.Any("subsets", g.Subsets()))
	}
	if w.onReload != nil {
		w.onReload(g, err)
	}
}

// Close stops watching and makes Run return.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.fsw.Close()
	})
	return w.closeErr
}
