package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curia-rag/curia/internal/extract"
	"github.com/curia-rag/curia/internal/index"
	"github.com/curia-rag/curia/internal/logging"
	"github.com/curia-rag/curia/internal/watcher"
)

// TestWatch_NewDocumentBecomesRetrievable drives the refresher from a polling
// watcher, the way `curia watch` does.
func TestWatch_NewDocumentBecomesRetrievable(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an indexed directory under watch
	e := newEnv(t)
	e.write(t, "tariff.txt", "Customs duties on imported steel were raised by the council regulation.")
	m := e.open(t)

	refresher := index.NewRefresher(m, index.BuildOptions{DataDir: e.dataDir})
	_, err := refresher.Refresh(context.Background())
	require.NoError(t, err)

	w, err := watcher.New(e.dataDir, watcher.Options{
		DebounceWindow: 50 * time.Millisecond,
		PollInterval:   50 * time.Millisecond,
		ForcePolling:   true,
		Filter:         extract.New().Supports,
		Logger:         logging.Discard(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	go func() { _ = w.Start(ctx) }()
	defer func() { _ = w.Stop() }()
	go func() {
		_ = watcher.Drive(ctx, w.Events(), func(ctx context.Context, _ []watcher.FileEvent) error {
			_, err := refresher.Refresh(ctx)
			return err
		}, logging.Discard())
	}()

	// Wait for the poller's first snapshot
	time.Sleep(300 * time.Millisecond)

	// When: a new document lands in the directory
	e.write(t, "rochas.txt", "Parfums Marcel Rochas sued over the perfume trademark Femme in Paris.")

	// Then: it is indexed without another explicit build
	assert.Eventually(t, func() bool {
		results, err := m.Retrieve(context.Background(), "perfume trademark Rochas")
		return err == nil && len(results) > 0 && results[0].Source == "rochas.txt"
	}, 5*time.Second, 50*time.Millisecond)
	assert.GreaterOrEqual(t, refresher.Runs(), int64(2))
}
