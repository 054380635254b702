package watcher

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curia-rag/curia/internal/errors"
	"github.com/curia-rag/curia/internal/logging"
)

func TestDrive_MergesQueuedBatches(t *testing.T) {
	// Given: three batches already queued and a closed channel
	events := make(chan []FileEvent, 3)
	events <- []FileEvent{{Path: "a.pdf", Operation: OpCreate}}
	events <- []FileEvent{{Path: "b.pdf", Operation: OpModify}}
	events <- []FileEvent{{Path: "c.pdf", Operation: OpDelete}}
	close(events)

	var calls [][]FileEvent
	fn := func(_ context.Context, batch []FileEvent) error {
		calls = append(calls, batch)
		return nil
	}

	// When: driving
	err := Drive(context.Background(), events, fn, logging.Discard())

	// Then: one call covers all three
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Len(t, calls[0], 3)
}

func TestDrive_ContinuesAfterHandlerError(t *testing.T) {
	// Given: a handler that fails on the first batch
	events := make(chan []FileEvent)
	handled := make(chan string, 2)
	fn := func(_ context.Context, batch []FileEvent) error {
		handled <- batch[0].Path
		if batch[0].Path == "a.pdf" {
			return errors.ProviderError("ollama down", nil)
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- Drive(context.Background(), events, fn, logging.Discard()) }()

	// When: two batches arrive one after another
	events <- []FileEvent{{Path: "a.pdf"}}
	assert.Equal(t, "a.pdf", <-handled)
	events <- []FileEvent{{Path: "b.pdf"}}
	assert.Equal(t, "b.pdf", <-handled)
	close(events)

	// Then: Drive ends cleanly
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Drive did not return")
	}
}

func TestDrive_FatalErrorStops(t *testing.T) {
	// Given: a handler reporting a corrupt index
	events := make(chan []FileEvent, 1)
	events <- []FileEvent{{Path: "a.pdf"}}
	fatal := errors.New(errors.ErrCodeCorruptIndex, "graph unreadable", stderrors.New("eof"))

	// When: driving
	err := Drive(context.Background(), events, func(context.Context, []FileEvent) error {
		return fatal
	}, logging.Discard())

	// Then: the fatal error is returned
	assert.ErrorIs(t, err, fatal)
}

func TestDrive_ContextCancelled(t *testing.T) {
	// Given: a cancelled context and an idle channel
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// When: driving
	err := Drive(ctx, make(chan []FileEvent), func(context.Context, []FileEvent) error {
		return nil
	}, nil)

	// Then: the context error is returned
	assert.ErrorIs(t, err, context.Canceled)
}
