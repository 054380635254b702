package watcher

import (
	"context"
	"log/slog"

	"github.com/curia-rag/curia/internal/errors"
)

// HandlerFunc reacts to a batch of document events.
type HandlerFunc func(ctx context.Context, batch []FileEvent) error

// Drive calls fn for each batch read from events until the channel closes or
// ctx is done. Batches that queue up while fn runs are merged into the next
// call. Errors from fn are logged and watching continues, except fatal ones,
// which are returned.
func Drive(ctx context.Context, events <-chan []FileEvent, fn HandlerFunc, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for {
		var batch []FileEvent
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-events:
			if !ok {
				return nil
			}
			batch = b
		}

		batch, open := drain(events, batch)

		if err := fn(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.IsFatal(err) {
				return err
			}
			attrs := append([]slog.Attr{slog.Int("events", len(batch))}, errors.LogAttrs(err)...)
			logger.LogAttrs(ctx, slog.LevelError, "watch_handler_failed", attrs...)
		}

		if !open {
			return nil
		}
	}
}

// drain appends every batch already waiting on events. open is false once
// the channel has been closed.
func drain(events <-chan []FileEvent, batch []FileEvent) ([]FileEvent, bool) {
	for {
		select {
		case more, ok := <-events:
			if !ok {
				return batch, false
			}
			batch = append(batch, more...)
		default:
			return batch, true
		}
	}
}
