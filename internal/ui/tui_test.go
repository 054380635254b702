package ui

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTUIRenderer_ErrorsForNonTTY(t *testing.T) {
	// Given: a non-TTY buffer
	r, err := NewTUIRenderer(Config{Output: &bytes.Buffer{}})

	// Then: the TUI cannot be used
	assert.Error(t, err)
	assert.Nil(t, r)
}

func newTestBuildModel() (*buildModel, *ProgressTracker) {
	tracker := NewProgressTracker()
	m := newBuildModel(tracker, "data/raw")
	m.styles = NoColorStyles()
	return m, tracker
}

func TestBuildModel_InitialView(t *testing.T) {
	m, _ := newTestBuildModel()

	view := m.View()

	assert.Contains(t, view, "Curia Indexer • data/raw")
	assert.Contains(t, view, "Scanning")
	assert.Contains(t, view, "○ Embedding")
}

func TestBuildModel_ProgressView(t *testing.T) {
	// Given: a build embedding chunks of one document
	m, tracker := newTestBuildModel()
	tracker.Apply(ProgressEvent{Stage: StageEmbedding, Current: 5, Total: 10, CurrentFile: "rochas.pdf"})
	tracker.AddError(ErrorEvent{File: "scan.pdf", IsWarn: true})

	// When: rendering
	view := m.View()

	// Then: earlier stages are done and counts are shown
	assert.Contains(t, view, "● Scanning")
	assert.Contains(t, view, "● Extracting")
	assert.Contains(t, view, " 50%")
	assert.Contains(t, view, "5 / 10 chunks")
	assert.Contains(t, view, "rochas.pdf")
	assert.Contains(t, view, "1 warnings")
}

func TestBuildModel_CompleteQuits(t *testing.T) {
	// Given: a model
	m, _ := newTestBuildModel()

	// When: the build completes
	_, cmd := m.Update(completeMsg(CompletionStats{Files: 2, Chunks: 9, Duration: 2 * time.Second}))

	// Then: the program quits and the summary is shown
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	view := m.View()
	assert.Contains(t, view, "Indexing complete")
	assert.Contains(t, view, "Documents: 2")
	assert.Contains(t, view, "2s")
}

func TestBuildModel_ReusedSummary(t *testing.T) {
	m, _ := newTestBuildModel()

	m.Update(completeMsg(CompletionStats{Reused: true}))

	assert.Contains(t, m.View(), "Index up to date")
}

func TestBuildModel_CtrlC(t *testing.T) {
	m, _ := newTestBuildModel()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.Equal(t, "Cancelled.\n", m.View())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{42 * time.Second, "42s"},
		{2 * time.Minute, "2m"},
		{2*time.Minute + 5*time.Second, "2m 5s"},
		{90 * time.Minute, "1h 30m"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.d))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short.pdf", truncate("short.pdf", 20))
	assert.Equal(t, "...ng-name.pdf", truncate("a-very-long-name.pdf", 14))
}
