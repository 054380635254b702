package index

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/curia-rag/curia/internal/llm"
)

const bowDims = 64

// bowEmbedder is a deterministic bag-of-words embedder for tests.
type bowEmbedder struct {
	mu         sync.Mutex
	batchCalls int
	batchSizes []int
	embedCalls int

	// failAfter makes EmbedBatch fail once it has been called this many times (0 = never).
	failAfter int
	// short drops the last vector of every batch.
	short bool
}

func (e *bowEmbedder) vector(text string) []float32 {
	v := make([]float32, bowDims)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%bowDims]++
	}
	return v
}

func (e *bowEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.embedCalls++
	e.mu.Unlock()
	return e.vector(text), nil
}

func (e *bowEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failAfter > 0 && e.batchCalls >= e.failAfter {
		return nil, errors.New("embedding provider unavailable")
	}
	e.batchCalls++
	e.batchSizes = append(e.batchSizes, len(texts))

	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, e.vector(t))
	}
	if e.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (e *bowEmbedder) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batchCalls
}

func (e *bowEmbedder) Dimensions() int                  { return bowDims }
func (e *bowEmbedder) ModelName() string                { return "bow-test" }
func (e *bowEmbedder) Available(_ context.Context) bool { return true }
func (e *bowEmbedder) Close() error                     { return nil }

// fileRunner stands in for pdftotext by returning the file's bytes.
type fileRunner struct{}

func (fileRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	return os.ReadFile(args[len(args)-2])
}

// stubLLM records the prompt and answers with fixed tokens.
type stubLLM struct {
	prompt string
	tokens []string
	err    error
}

func (l *stubLLM) Generate(_ context.Context, prompt string) (string, error) {
	l.prompt = prompt
	if l.err != nil {
		return "", l.err
	}
	return strings.Join(l.tokens, ""), nil
}

func (l *stubLLM) Stream(_ context.Context, prompt string, onToken llm.TokenFunc) (string, error) {
	l.prompt = prompt
	if l.err != nil {
		return "", l.err
	}
	for _, tok := range l.tokens {
		if err := onToken(tok); err != nil {
			return "", err
		}
	}
	return strings.Join(l.tokens, ""), nil
}

func (l *stubLLM) ModelName() string                { return "stub-llm" }
func (l *stubLLM) Available(_ context.Context) bool { return true }
