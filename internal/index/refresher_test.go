package index

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedBuilder blocks its first build until release is closed.
type gatedBuilder struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
	err     error
}

func newGatedBuilder() *gatedBuilder {
	return &gatedBuilder{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *gatedBuilder) Build(_ context.Context, opts BuildOptions) (*BuildResult, error) {
	b.mu.Lock()
	b.calls++
	n := b.calls
	b.mu.Unlock()

	if n == 1 {
		close(b.started)
		<-b.release
	}
	if b.err != nil {
		return nil, b.err
	}
	return &BuildResult{RunID: opts.DataDir}, nil
}

func TestRefresher_SingleRefresh(t *testing.T) {
	// Given: a builder that does not block
	b := newGatedBuilder()
	close(b.release)
	r := NewRefresher(b, BuildOptions{DataDir: "data/raw"})

	// When: refreshing once
	res, err := r.Refresh(context.Background())

	// Then: one build ran with the configured options
	require.NoError(t, err)
	assert.Equal(t, "data/raw", res.RunID)
	assert.EqualValues(t, 1, r.Runs())
	assert.False(t, r.Busy())
}

func TestRefresher_RequestDuringBuildRunsOnceMore(t *testing.T) {
	// Given: a build in progress
	b := newGatedBuilder()
	r := NewRefresher(b, BuildOptions{})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	results := make([]*BuildResult, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = r.Refresh(context.Background())
	}()
	<-b.started
	assert.True(t, r.Busy())

	// When: another change arrives before it finishes
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = r.Refresh(context.Background())
	}()
	require.Eventually(t, r.pending.Load, time.Second, 5*time.Millisecond)
	close(b.release)
	wg.Wait()

	// Then: exactly one follow-up build ran and both callers got a result
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.NotNil(t, results[0])
	assert.NotNil(t, results[1])
	assert.EqualValues(t, 2, r.Runs())
	assert.False(t, r.Busy())
}

func TestRefresher_BuildError(t *testing.T) {
	b := newGatedBuilder()
	b.err = errors.New("embedding provider unavailable")
	close(b.release)
	r := NewRefresher(b, BuildOptions{})

	_, err := r.Refresh(context.Background())

	assert.ErrorContains(t, err, "embedding provider unavailable")
	assert.False(t, r.Busy())
}
