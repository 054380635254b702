package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	cerrors "github.com/curia-rag/curia/internal/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"empty query", cerrors.New(cerrors.ErrCodeQueryEmpty, "query is empty", nil), ErrCodeInvalidParams},
		{"corrupt index", cerrors.New(cerrors.ErrCodeCorruptIndex, "bad graph", nil), ErrCodeIndexNotFound},
		{"dimension mismatch", cerrors.New(cerrors.ErrCodeDimensionMismatch, "384 != 768", nil), ErrCodeIndexNotFound},
		{"missing document", cerrors.New(cerrors.ErrCodeFileNotFound, "gone", nil), ErrCodeFileNotFound},
		{"provider timeout", cerrors.New(cerrors.ErrCodeProviderTimeout, "slow", nil), ErrCodeTimeout},
		{"provider down", cerrors.New(cerrors.ErrCodeProviderUnavailable, "refused", nil), ErrCodeProviderFailed},
		{"model missing", cerrors.New(cerrors.ErrCodeModelNotFound, "pull it", nil), ErrCodeProviderFailed},
		{"no llm", cerrors.New(cerrors.ErrCodeDependencyMissing, "no llm", nil), ErrCodeInternalError},
		{"store write", cerrors.New(cerrors.ErrCodeStoreWrite, "disk full", nil), ErrCodeInternalError},
		{"wrapped", fmt.Errorf("retrieve: %w", cerrors.New(cerrors.ErrCodeQueryEmpty, "empty", nil)), ErrCodeInvalidParams},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeTimeout},
		{"resource", ErrResourceNotFound, ErrCodeMethodNotFound},
		{"unknown", errors.New("boom"), ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, MapError(tt.err).Code)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_KeepsMCPError(t *testing.T) {
	// Given: an error that is already an MCP error
	in := NewInvalidParamsError("query parameter is required")

	// Then: it passes through unchanged
	assert.Same(t, in, MapError(in))
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	err := cerrors.New(cerrors.ErrCodeModelNotFound, "model all-minilm:l6-v2 not found", nil).
		WithSuggestion("ollama pull all-minilm:l6-v2")

	got := MapError(err)

	assert.Equal(t, "model all-minilm:l6-v2 not found (ollama pull all-minilm:l6-v2)", got.Message)
}

func TestMCPError_Error(t *testing.T) {
	err := &MCPError{Code: ErrCodeInvalidParams, Message: "bad"}
	assert.Equal(t, "MCP error -32602: bad", err.Error())
	assert.Contains(t, NewResourceNotFoundError("file://x.pdf").Message, "file://x.pdf")
}
