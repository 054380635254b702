package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes one line per progress step (for CI and pipes).
type PlainRenderer struct {
	mu    sync.Mutex
	out   io.Writer
	last  ProgressEvent
	warns int
	errs  int
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error {
	return nil
}

// UpdateProgress implements Renderer. Repeated identical events are dropped.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event == r.last {
		return
	}
	r.last = event

	msg := event.Message
	if msg == "" {
		msg = event.CurrentFile
	}

	switch {
	case event.Total > 0:
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d %s\n", event.Stage.Icon(), event.Current, event.Total, msg)
	case msg != "":
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
	default:
		_, _ = fmt.Fprintf(r.out, "[%s]\n", event.Stage.Icon())
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
		r.warns++
	} else {
		r.errs++
	}

	if event.File != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.File, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stats.Reused {
		_, _ = fmt.Fprintf(r.out, "Up to date: no new or modified documents (%s)\n",
			stats.Duration.Round(100*time.Millisecond))
		return
	}

	_, _ = fmt.Fprintf(r.out, "Complete: %d documents, %d chunks indexed in %s",
		stats.Files, stats.Chunks, stats.Duration.Round(100*time.Millisecond))
	if stats.Skipped > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d skipped without text)", stats.Skipped)
	}
	_, _ = fmt.Fprintln(r.out)

	if stats.EmbedModel != "" {
		_, _ = fmt.Fprintf(r.out, "Embedding model: %s\n", stats.EmbedModel)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}
