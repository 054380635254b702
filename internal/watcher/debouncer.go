package watcher

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Debouncer coalesces rapid document events so one copy or save triggers
// one rebuild. Events for the same name within the window are merged:
//   - CREATE + MODIFY = CREATE (file is still new)
//   - CREATE + DELETE = nothing (file never really existed)
//   - MODIFY + DELETE = DELETE (file is gone)
//   - DELETE + CREATE = MODIFY (file was replaced)
type Debouncer struct {
	window  time.Duration
	logger  *slog.Logger
	mu      sync.Mutex
	pending map[string]FileEvent
	timer   *time.Timer
	output  chan []FileEvent
	stopped bool
}

// NewDebouncer creates a debouncer that emits after window of quiet.
func NewDebouncer(window time.Duration, logger *slog.Logger) *Debouncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Debouncer{
		window:  window,
		logger:  logger,
		pending: make(map[string]FileEvent),
		output:  make(chan []FileEvent, 10),
	}
}

// Add queues an event and restarts the quiet period.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if prev, ok := d.pending[event.Path]; ok {
		if merged, keep := merge(prev, event); keep {
			d.pending[event.Path] = merged
		} else {
			delete(d.pending, event.Path)
		}
	} else {
		d.pending[event.Path] = event
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// merge combines two events for the same name. keep is false when they cancel out.
func merge(prev, next FileEvent) (FileEvent, bool) {
	switch {
	case prev.Operation == OpCreate && next.Operation == OpModify:
		prev.Timestamp = next.Timestamp
		return prev, true
	case prev.Operation == OpCreate && next.Operation == OpDelete:
		return FileEvent{}, false
	case prev.Operation == OpDelete && next.Operation == OpCreate:
		next.Operation = OpModify
		return next, true
	default:
		return next, true
	}
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, e := range d.pending {
		batch = append(batch, e)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	d.pending = make(map[string]FileEvent)

	select {
	case d.output <- batch:
	default:
		d.logger.Warn("debouncer output full, dropping batch",
			slog.Int("batch_size", len(batch)))
	}
}

// Output returns the channel of debounced batches, sorted by name.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop stops the debouncer and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
