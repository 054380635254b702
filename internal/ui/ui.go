// Package ui provides terminal front-ends: build progress for `curia index`
// and the interactive `curia chat` session. Both have a bubbletea renderer
// for terminals and a plain line renderer for pipes and CI.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/curia-rag/curia/internal/index"
)

// Stage is a coarse build phase shown to the user.
type Stage int

const (
	StageScanning Stage = iota
	StageExtracting
	StageEmbedding
	StagePersisting
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageScanning:
		return "Scanning"
	case StageExtracting:
		return "Extracting"
	case StageEmbedding:
		return "Embedding"
	case StagePersisting:
		return "Persisting"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageScanning:
		return "SCAN"
	case StageExtracting:
		return "EXTRACT"
	case StageEmbedding:
		return "EMBED"
	case StagePersisting:
		return "SAVE"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// StageOf maps an index build stage to its display stage.
func StageOf(s string) Stage {
	switch s {
	case index.StageLedger, index.StageScan:
		return StageScanning
	case index.StageExtract, index.StageChunk:
		return StageExtracting
	case index.StageEmbed, index.StageStore:
		return StageEmbedding
	case index.StagePersist, index.StageLoad:
		return StagePersisting
	default:
		return StageScanning
	}
}

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentFile string
	Message     string
}

// ErrorEvent represents a problem with one document.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// CompletionStats summarizes a finished build.
type CompletionStats struct {
	Files      int
	Skipped    int
	Chunks     int
	Reused     bool
	Duration   time.Duration
	EmbedModel string
}

// StatsFromResult converts a build result for display.
func StatsFromResult(res *index.BuildResult, embedModel string) CompletionStats {
	return CompletionStats{
		Files:      len(res.Delta) - len(res.Skipped),
		Skipped:    len(res.Skipped),
		Chunks:     len(res.Chunks),
		Reused:     res.Reused,
		Duration:   res.Duration,
		EmbedModel: embedModel,
	}
}

// Renderer displays build progress.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// ProgressFunc adapts r to the index manager's progress callback.
func ProgressFunc(r Renderer) func(index.Progress) {
	return func(p index.Progress) {
		r.UpdateProgress(ProgressEvent{
			Stage:       StageOf(p.Stage),
			Current:     p.Current,
			Total:       p.Total,
			CurrentFile: p.File,
		})
	}
}

// Config configures a renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool

	// DataDir is shown in the TUI header.
	DataDir string
}

// NewRenderer returns a TUI renderer for interactive terminals and a plain
// renderer for CI, pipes, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if w is a terminal.
func IsTTY(w any) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
