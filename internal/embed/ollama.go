package embed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/curia-rag/curia/internal/errors"
	"github.com/curia-rag/curia/internal/ollama"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "all-minilm:l6-v2"

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama API endpoint (default: http://localhost:11434)
	Host string

	// Model is the embedding model to use (default: all-minilm:l6-v2)
	Model string

	// Dimensions pins the vector size; 0 learns it from the first response.
	Dimensions int

	// Timeout bounds each /api/embed call (default: 120s).
	Timeout time.Duration

	// SkipHealthCheck skips the model lookup at construction (for testing).
	SkipHealthCheck bool

	// HTTPClient overrides the pooled default client.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// OllamaEmbedRequest is the Ollama /api/embed request.
type OllamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// OllamaEmbedResponse is the Ollama /api/embed response.
type OllamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaEmbedder generates embeddings using Ollama's HTTP API.
// Each call is a single attempt bounded by Timeout; retry policy is left to the caller.
type OllamaEmbedder struct {
	client    *ollama.Client
	config    OllamaConfig
	modelName string
	logger    *slog.Logger

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an embedder and, unless skipped, verifies that
// the model is installed.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = ollama.DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	e := &OllamaEmbedder{
		client:    ollama.NewClient(cfg.Host, cfg.HTTPClient),
		config:    cfg,
		modelName: cfg.Model,
		dims:      cfg.Dimensions,
		logger:    cfg.Logger,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		name, err := e.client.FindModel(checkCtx, cfg.Model)
		if err != nil {
			e.client.CloseIdleConnections()
			return nil, err
		}
		e.modelName = name
	}

	return e, nil
}

// Embed generates embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends all texts in one /api/embed request.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, errors.InternalError("embedder is closed", nil)
	}

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	start := time.Now()
	var resp OllamaEmbedResponse
	err := e.client.PostJSON(reqCtx, "embed", "/api/embed", OllamaEmbedRequest{Model: e.modelName, Input: texts}, &resp)
	if err != nil {
		e.logger.Debug("embed_request_failed",
			slog.String("model", e.modelName),
			slog.Int("texts", len(texts)),
			slog.Duration("timeout", e.config.Timeout),
			slog.String("error", err.Error()))
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, errors.ProviderError(
			fmt.Sprintf("embed: expected %d vectors, got %d", len(texts), len(resp.Embeddings)), nil)
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if err := e.checkDimensions(len(emb)); err != nil {
			return nil, err
		}
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		out[i] = normalizeVector(vec)
	}

	e.logger.Debug("embed_request_done",
		slog.String("model", e.modelName),
		slog.Int("texts", len(texts)),
		slog.Duration("elapsed", time.Since(start)))
	return out, nil
}

func (e *OllamaEmbedder) checkDimensions(n int) error {
	if n == 0 {
		return errors.ProviderError("embed: empty vector returned", nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dims == 0 {
		e.dims = n
		return nil
	}
	if e.dims != n {
		return errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("embed: model %s returned %d dimensions, expected %d", e.modelName, n, e.dims), nil)
	}
	return nil
}

// Dimensions returns the embedding dimension, 0 until the first response.
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the resolved model name.
func (e *OllamaEmbedder) ModelName() string {
	return e.modelName
}

// Available checks that Ollama answers.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	return e.client.Available(ctx)
}

// Close releases pooled connections. Further calls fail.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		e.client.CloseIdleConnections()
	}
	return nil
}
