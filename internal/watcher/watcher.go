// Package watcher reports result artifacts that change under a results
// directory, coalescing bursts of file system events with a debouncer.
package watcher

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Dicklesworthstone/pavcore/internal/store"
)

// ErrClosed is returned when operations are called on a closed Watcher.
var ErrClosed = errors.New("watcher: watcher is closed")

// Change is an artifact that was written, created or removed.
type Change struct {
	Path    string
	NumAlts int
	K       int
	Removed bool
}

// Handler receives the changes of one quiet period, ordered by
// configuration then path.
type Handler func(changes []Change)

// ErrorHandler is called when a watch error occurs.
type ErrorHandler func(err error)

// Watcher watches <root> and its <num_alts> subdirectories for artifacts.
type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	debouncer    *Debouncer
	handler      Handler
	errorHandler ErrorHandler
	logger       *slog.Logger
	root         string

	mu      sync.Mutex
	dirs    map[string]bool
	pending map[string]Change
	closed  bool
	done    chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets the quiet period before changes are reported.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debouncer = NewDebouncer(d)
		}
	}
}

// WithErrorHandler sets the error handler.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(w *Watcher) {
		w.errorHandler = handler
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New starts watching root, which must be an existing directory.
func New(root string, handler Handler, opts ...Option) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch %s: not a directory", absRoot)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		debouncer: NewDebouncer(DefaultDebounceDuration),
		handler:   handler,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		root:      absRoot,
		dirs:      make(map[string]bool),
		pending:   make(map[string]Change),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.mu.Lock()
	err = w.addDir(absRoot)
	if err == nil {
		entries, _ := os.ReadDir(absRoot)
		for _, e := range entries {
			if e.IsDir() && isConfigDir(e.Name()) {
				w.addDir(filepath.Join(absRoot, e.Name()))
			}
		}
	}
	w.mu.Unlock()
	if err != nil {
		fsWatcher.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

// isConfigDir reports whether name is a <num_alts> directory.
func isConfigDir(name string) bool {
	n, err := strconv.Atoi(name)
	return err == nil && n > 0
}

// addDir watches dir. Must be called with w.mu held.
func (w *Watcher) addDir(dir string) error {
	if w.dirs[dir] {
		return nil
	}
	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.dirs[dir] = true
	w.logger.Debug("watching directory", "path", dir)
	return nil
}

// Dirs returns the watched directories in sorted order.
func (w *Watcher) Dirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	dirs := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// Close stops the watcher, drops unreported changes and waits for the event
// loop to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.debouncer.Cancel()
	err := w.fsWatcher.Close()
	w.mu.Unlock()

	<-w.done
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		}
	}
}

func (w *Watcher) reportError(err error) {
	if w.errorHandler != nil {
		w.errorHandler(err)
		return
	}
	w.logger.Warn("watch error", "error", err)
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	removed := ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
	if removed && w.dirs[ev.Name] {
		delete(w.dirs, ev.Name)
		return
	}

	// a new <num_alts> directory: watch it and pick up anything written
	// before the watch was in place
	if ev.Has(fsnotify.Create) && filepath.Dir(ev.Name) == w.root && isConfigDir(filepath.Base(ev.Name)) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addDir(ev.Name); err != nil {
				w.reportError(err)
				return
			}
			entries, _ := os.ReadDir(ev.Name)
			for _, e := range entries {
				w.enqueue(filepath.Join(ev.Name, e.Name()), false)
			}
			return
		}
	}

	w.enqueue(ev.Name, removed)
}

// enqueue records an artifact change and restarts the quiet period. Must be
// called with w.mu held.
func (w *Watcher) enqueue(path string, removed bool) {
	numAlts, k, ok := store.ParseName(path)
	if !ok {
		return
	}
	w.pending[path] = Change{Path: path, NumAlts: numAlts, K: k, Removed: removed}
	w.debouncer.Trigger(w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if w.closed || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	changes := make([]Change, 0, len(w.pending))
	for _, c := range w.pending {
		changes = append(changes, c)
	}
	w.pending = make(map[string]Change)
	w.mu.Unlock()

	sort.Slice(changes, func(i, j int) bool {
		a, b := changes[i], changes[j]
		if a.NumAlts != b.NumAlts {
			return a.NumAlts < b.NumAlts
		}
		if a.K != b.K {
			return a.K < b.K
		}
		return a.Path < b.Path
	})
	w.logger.Debug("artifacts changed", "count", len(changes))
	if w.handler != nil {
		w.handler(changes)
	}
}
