package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRenderer_UpdateProgress(t *testing.T) {
	tests := []struct {
		name  string
		event ProgressEvent
		want  string
	}{
		{
			name:  "with total",
			event: ProgressEvent{Stage: StageEmbedding, Current: 3, Total: 10, CurrentFile: "rochas.pdf"},
			want:  "[EMBED] 3/10 rochas.pdf\n",
		},
		{
			name:  "message wins over file",
			event: ProgressEvent{Stage: StageScanning, CurrentFile: "data/raw", Message: "scanning"},
			want:  "[SCAN] scanning\n",
		},
		{
			name:  "bare stage",
			event: ProgressEvent{Stage: StagePersisting},
			want:  "[SAVE]\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			r := NewPlainRenderer(Config{Output: buf})

			r.UpdateProgress(tt.event)

			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPlainRenderer_DropsRepeats(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(Config{Output: buf})
	require.NoError(t, r.Start(context.Background()))

	// When: the same event is sent twice
	e := ProgressEvent{Stage: StagePersisting}
	r.UpdateProgress(e)
	r.UpdateProgress(e)

	// Then: one line is written
	assert.Equal(t, "[SAVE]\n", buf.String())
	assert.NoError(t, r.Stop())
}

func TestPlainRenderer_AddError(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(Config{Output: buf})

	r.AddError(ErrorEvent{File: "scan.pdf", Err: errors.New("no text"), IsWarn: true})
	r.AddError(ErrorEvent{Err: errors.New("ollama down")})

	assert.Equal(t, "WARN: scan.pdf: no text\nERROR: ollama down\n", buf.String())
}

func TestPlainRenderer_Complete(t *testing.T) {
	// Given: a finished build with one skipped file
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(Config{Output: buf})

	// When: completing
	r.Complete(CompletionStats{
		Files:      2,
		Skipped:    1,
		Chunks:     14,
		Duration:   1234 * time.Millisecond,
		EmbedModel: "all-minilm:l6-v2",
	})

	// Then: the summary names counts, duration and model
	out := buf.String()
	assert.Contains(t, out, "Complete: 2 documents, 14 chunks indexed in 1.2s (1 skipped without text)\n")
	assert.Contains(t, out, "Embedding model: all-minilm:l6-v2\n")
}

func TestPlainRenderer_CompleteReused(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(Config{Output: buf})

	r.Complete(CompletionStats{Reused: true, Duration: 40 * time.Millisecond})

	assert.Equal(t, "Up to date: no new or modified documents (0s)\n", buf.String())
}
