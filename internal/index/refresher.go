package index

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Builder runs one incremental build. *Manager satisfies it.
type Builder interface {
	Build(ctx context.Context, opts BuildOptions) (*BuildResult, error)
}

// Refresher coalesces rebuild requests from the watcher: callers that arrive
// while a build runs share it, and a request that lands mid-build triggers
// one more pass so no change is missed.
type Refresher struct {
	builder Builder
	opts    BuildOptions

	group   singleflight.Group
	pending atomic.Bool
	running atomic.Bool
	runs    atomic.Int64
	last    atomic.Pointer[BuildResult]
}

// NewRefresher creates a Refresher that builds with opts.
func NewRefresher(b Builder, opts BuildOptions) *Refresher {
	return &Refresher{builder: b, opts: opts}
}

// Refresh brings the index up to date and returns the last build's result.
func (r *Refresher) Refresh(ctx context.Context) (*BuildResult, error) {
	r.pending.Store(true)
	for {
		_, err, _ := r.group.Do("build", func() (any, error) {
			r.running.Store(true)
			defer r.running.Store(false)

			for r.pending.Swap(false) {
				r.runs.Add(1)
				res, err := r.builder.Build(ctx, r.opts)
				if err != nil {
					return nil, err
				}
				r.last.Store(res)
			}
			return nil, nil
		})
		if err != nil {
			return nil, err
		}
		if !r.pending.Load() {
			return r.last.Load(), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

// Busy reports whether a build is running.
func (r *Refresher) Busy() bool {
	return r.running.Load()
}

// Runs is the number of builds started so far.
func (r *Refresher) Runs() int64 {
	return r.runs.Load()
}
