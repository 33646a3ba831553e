// Package watcher implements drop-folder mode: recordings copied into a
// directory are picked up and fed through the processing pipeline.
//
// File events are debounced per path, because a copy in progress emits a
// stream of write events and the file must not be processed until it has
// settled. Processing is sequential: lecture recordings are large and the
// remote transcription/summarization stages are rate limited, so one run at
// a time keeps memory and quota use predictable. A circuit breaker guards
// the handler so a persistently failing backend is not hammered on every
// dropped file.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lectio/lectio/internal/resilience"
)

const (
	defaultDebounce  = 2 * time.Second
	defaultQueueSize = 64
)

// defaultExtensions lists the audio formats picked up from the drop folder.
var defaultExtensions = []string{".m4a", ".mp3", ".wav", ".aac", ".flac", ".ogg", ".mp4"}

// Handler processes one settled audio file.
type Handler func(ctx context.Context, path string) error

// Option is a functional option for configuring a [Watcher].
type Option func(*Watcher)

// WithDebounce sets how long a file must stay quiet before it is processed.
// Default: 2s.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithExtensions overrides the set of file extensions treated as audio.
func WithExtensions(exts []string) Option {
	return func(w *Watcher) {
		w.exts = make(map[string]bool, len(exts))
		for _, e := range exts {
			w.exts[strings.ToLower(e)] = true
		}
	}
}

// WithBreaker sets the circuit breaker guarding the handler. Default: a
// breaker with the package defaults.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(w *Watcher) {
		w.breaker = cb
	}
}

// Watcher monitors one directory and runs the handler for every settled
// audio file.
type Watcher struct {
	dir     string
	handler Handler
	fs      *fsnotify.Watcher
	logger  *slog.Logger

	debounce time.Duration
	exts     map[string]bool
	breaker  *resilience.CircuitBreaker

	mu      sync.Mutex
	pending map[string]*time.Timer
	queue   chan string
}

// New creates a Watcher for dir. The directory must already exist.
func New(dir string, handler Handler, opts ...Option) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: create: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watcher: watch %s: %w", dir, err)
	}

	w := &Watcher{
		dir:      dir,
		handler:  handler,
		fs:       fs,
		logger:   slog.Default().With("component", "watcher"),
		debounce: defaultDebounce,
		pending:  make(map[string]*time.Timer),
		queue:    make(chan string, defaultQueueSize),
	}
	for _, o := range opts {
		o(w)
	}
	if w.exts == nil {
		WithExtensions(defaultExtensions)(w)
	}
	if w.breaker == nil {
		w.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "watcher"})
	}
	return w, nil
}

// Run blocks until ctx is cancelled, dispatching settled files sequentially.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	w.logger.Info("watching drop folder", "dir", w.dir, "debounce", w.debounce)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.worker(ctx)
	}()
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return errors.New("watcher: event channel closed")
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.isAudio(event.Name) {
				continue
			}
			w.touch(event.Name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return errors.New("watcher: error channel closed")
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

// touch starts or resets the debounce timer for path.
func (w *Watcher) touch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case w.queue <- path:
		default:
			w.logger.Warn("processing queue full, dropping file", "file", path)
		}
	})
	w.logger.Debug("file detected, waiting for it to settle", "file", path)
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

// worker drains the queue one file at a time.
func (w *Watcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.queue:
			w.process(ctx, path)
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	err := w.breaker.Execute(func() error {
		return w.handler(ctx, path)
	})
	switch {
	case err == nil:
		w.logger.Info("file processed", "file", path)
	case errors.Is(err, resilience.ErrCircuitOpen):
		w.logger.Warn("backend unavailable, skipping file", "file", path)
	default:
		w.logger.Error("processing failed", "file", path, "error", err)
	}
}

func (w *Watcher) isAudio(path string) bool {
	return w.exts[strings.ToLower(filepath.Ext(path))]
}
