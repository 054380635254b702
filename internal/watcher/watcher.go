package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/curia-rag/curia/internal/errors"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new document appeared.
	OpCreate Operation = iota
	// OpModify indicates an existing document was written.
	OpModify
	// OpDelete indicates a document was removed.
	OpDelete
	// OpRename indicates a document was renamed away.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is a change to one document.
type FileEvent struct {
	// Path is the file name relative to the watched directory.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the quiet period before a batch is emitted.
	// Default: 500ms
	DebounceWindow time.Duration

	// PollInterval is the scan interval in polling mode.
	// Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the number of batches buffered for the consumer.
	// Default: 16
	EventBufferSize int

	// ForcePolling skips fsnotify. Useful on network mounts.
	ForcePolling bool

	// Filter reports whether a file name is a document worth reporting.
	// Nil accepts every non-hidden file.
	Filter func(name string) bool

	Logger *slog.Logger
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 16,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Watcher watches one directory, non-recursively, and emits debounced
// batches of document events.
type Watcher struct {
	dir       string
	opts      Options
	logger    *slog.Logger
	fsWatcher *fsnotify.Watcher
	poller    *poller
	debouncer *Debouncer
	events    chan []FileEvent
	errors    chan error
	stopCh    chan struct{}
	mu        sync.RWMutex
	stopped   bool
	dropped   atomic.Uint64
}

// New creates a watcher for dir. The directory must exist.
func New(dir string, opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, errors.New(errors.ErrCodeFileNotFound, fmt.Sprintf("data directory %s does not exist", dir), err).
			WithSuggestion("create it or set data.data_path")
	}

	w := &Watcher{
		dir:       abs,
		opts:      opts,
		logger:    opts.Logger,
		debouncer: NewDebouncer(opts.DebounceWindow, opts.Logger),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsWatcher = fsw
		} else {
			w.logger.Warn("fsnotify unavailable, falling back to polling",
				slog.String("error", err.Error()))
		}
	}
	if w.fsWatcher == nil {
		w.poller = newPoller(abs, opts.PollInterval, w.accept, w.debouncer.Add)
	}
	return w, nil
}

// Start watches until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	go w.forward(ctx)

	w.logger.Info("watcher_started",
		slog.String("dir", w.dir),
		slog.String("mode", w.Mode()))

	if w.fsWatcher != nil {
		return w.runFsnotify(ctx)
	}
	return w.runPolling(ctx)
}

func (w *Watcher) runFsnotify(ctx context.Context) error {
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return errors.IOError(fmt.Sprintf("failed to watch %s", w.dir), err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *Watcher) runPolling(ctx context.Context) error {
	if err := w.poller.snapshot(); err != nil {
		return err
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			if err := w.poller.detect(); err != nil {
				w.emitError(err)
			}
		}
	}
}

// handle converts and filters one fsnotify event.
func (w *Watcher) handle(event fsnotify.Event) {
	if filepath.Dir(event.Name) != w.dir {
		return
	}
	name := filepath.Base(event.Name)
	if !w.accept(name) {
		return
	}

	var op Operation
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove):
		op = OpDelete
	case event.Has(fsnotify.Rename):
		op = OpRename
	default:
		// chmod
		return
	}

	if op == OpCreate || op == OpModify {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			return
		}
	}

	w.debouncer.Add(FileEvent{Path: name, Operation: op, Timestamp: time.Now()})
}

// accept reports whether name is a document to report.
func (w *Watcher) accept(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if w.opts.Filter != nil {
		return w.opts.Filter(name)
	}
	return true
}

// forward moves debounced batches to the output channel.
func (w *Watcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			if len(batch) > 0 {
				w.emit(batch)
			}
		}
	}
}

func (w *Watcher) emit(batch []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}

	select {
	case w.events <- batch:
	default:
		count := w.dropped.Add(1)
		w.logger.Warn("event buffer full, dropping batch",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", count))
	}
}

func (w *Watcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}

	select {
	case w.errors <- err:
	default:
	}
}

// Stop stops the watcher and closes its channels. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)

	w.debouncer.Stop()
	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of debounced batches.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// DroppedBatches returns the number of batches dropped on a full buffer.
func (w *Watcher) DroppedBatches() uint64 {
	return w.dropped.Load()
}

// Mode returns "fsnotify" or "polling".
func (w *Watcher) Mode() string {
	if w.fsWatcher != nil {
		return "fsnotify"
	}
	return "polling"
}

// Dir returns the absolute watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}
