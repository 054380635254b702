// Package llm generates answers with a language model served by Ollama.
package llm

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/curia-rag/curia/internal/errors"
	"github.com/curia-rag/curia/internal/ollama"
)

// DefaultModel is the language model used when none is configured.
const DefaultModel = "initium/law_model"

// TokenFunc receives streamed text as it arrives. Returning an error stops the stream.
type TokenFunc func(token string) error

// LLM generates text from a prompt.
type LLM interface {
	// Generate returns the complete response.
	Generate(ctx context.Context, prompt string) (string, error)

	// Stream delivers the response incrementally and returns the full text.
	Stream(ctx context.Context, prompt string, onToken TokenFunc) (string, error)

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the model server answers.
	Available(ctx context.Context) bool
}

// Config configures the Ollama language model client.
type Config struct {
	Host    string
	Model   string
	Timeout time.Duration

	// SkipHealthCheck skips the model lookup at construction (for testing).
	SkipHealthCheck bool
	HTTPClient      *http.Client
	Logger          *slog.Logger
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Ollama talks to /api/generate.
type Ollama struct {
	client    *ollama.Client
	modelName string
	timeout   time.Duration
	logger    *slog.Logger
}

var _ LLM = (*Ollama)(nil)

// NewOllama creates a client and, unless skipped, checks the model is installed.
func NewOllama(ctx context.Context, cfg Config) (*Ollama, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = ollama.DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	l := &Ollama{
		client:    ollama.NewClient(cfg.Host, cfg.HTTPClient),
		modelName: cfg.Model,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, ollama.ConnectTimeout)
		defer cancel()

		name, err := l.client.FindModel(checkCtx, cfg.Model)
		if err != nil {
			return nil, err
		}
		l.modelName = name
	}
	return l, nil
}

// Generate returns the complete response for prompt.
func (l *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	start := time.Now()
	var resp generateResponse
	err := l.client.PostJSON(ctx, "generate", "/api/generate",
		generateRequest{Model: l.modelName, Prompt: prompt, Stream: false}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", errors.ProviderError("generate: "+resp.Error, nil)
	}

	l.logger.Debug("llm_generate_done",
		slog.String("model", l.modelName),
		slog.Int("prompt_chars", len(prompt)),
		slog.Duration("elapsed", time.Since(start)))
	return strings.TrimSpace(resp.Response), nil
}

// Stream reads the NDJSON response of a streaming generate call, handing
// each fragment to onToken as soon as it is decoded.
func (l *Ollama) Stream(ctx context.Context, prompt string, onToken TokenFunc) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	resp, err := l.client.Post(ctx, "generate", "/api/generate",
		generateRequest{Model: l.modelName, Prompt: prompt, Stream: true})
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var full strings.Builder
	dec := json.NewDecoder(resp.Body)
	for {
		var part generateResponse
		if err := dec.Decode(&part); err != nil {
			if stderrors.Is(err, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				return full.String(), ollama.Classify(ctx, "generate", ctx.Err())
			}
			return full.String(), errors.ProviderError("generate: malformed stream", err)
		}
		if part.Error != "" {
			return full.String(), errors.ProviderError("generate: "+part.Error, nil)
		}

		if part.Response != "" {
			full.WriteString(part.Response)
			if onToken != nil {
				if err := onToken(part.Response); err != nil {
					return full.String(), err
				}
			}
		}
		if part.Done {
			break
		}
	}

	return full.String(), nil
}

// ModelName returns the resolved model name.
func (l *Ollama) ModelName() string {
	return l.modelName
}

// Available checks that Ollama answers.
func (l *Ollama) Available(ctx context.Context) bool {
	return l.client.Available(ctx)
}
