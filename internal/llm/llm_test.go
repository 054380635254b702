package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	curiaerrors "github.com/curia-rag/curia/internal/errors"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"initium/law_model:latest"}]}`))
	})
	mux.HandleFunc("/api/generate", handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestGenerate_Complete(t *testing.T) {
	// Given: a model that echoes the prompt length
	var got generateRequest
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"response":"  The court ruled in favour.  ","done":true}`))
	})

	l, err := NewOllama(context.Background(), Config{Host: server.URL})
	require.NoError(t, err)

	// When: generating
	answer, err := l.Generate(context.Background(), "question")

	// Then: the resolved model is used without streaming
	require.NoError(t, err)
	assert.Equal(t, "The court ruled in favour.", answer)
	assert.Equal(t, "initium/law_model:latest", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, "initium/law_model:latest", l.ModelName())
}

func TestStream_DeliversTokensInOrder(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.True(t, req.Stream)
		for _, tok := range []string{"The ", "court ", "agreed."} {
			_, _ = w.Write([]byte(`{"response":"` + tok + `","done":false}` + "\n"))
			w.(http.Flusher).Flush()
		}
		_, _ = w.Write([]byte(`{"response":"","done":true}` + "\n"))
	})
	l, err := NewOllama(context.Background(), Config{Host: server.URL, SkipHealthCheck: true})
	require.NoError(t, err)

	var tokens []string
	full, err := l.Stream(context.Background(), "q", func(tok string) error {
		tokens = append(tokens, tok)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"The ", "court ", "agreed."}, tokens)
	assert.Equal(t, "The court agreed.", full)
}

func TestStream_CallbackErrorStops(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"a","done":false}` + "\n" + `{"response":"b","done":false}` + "\n"))
	})
	l, _ := NewOllama(context.Background(), Config{Host: server.URL, SkipHealthCheck: true})
	stop := errors.New("stop")

	full, err := l.Stream(context.Background(), "q", func(string) error { return stop })

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, "a", full)
}

func TestStream_ErrorLine(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"model ran out of memory"}` + "\n"))
	})
	l, _ := NewOllama(context.Background(), Config{Host: server.URL, SkipHealthCheck: true})

	_, err := l.Stream(context.Background(), "q", nil)

	require.Error(t, err)
	assert.Equal(t, curiaerrors.ErrCodeProviderResponse, curiaerrors.GetCode(err))
	assert.Contains(t, err.Error(), "out of memory")
}

func TestGenerate_Timeout(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	l, _ := NewOllama(context.Background(), Config{Host: server.URL, Timeout: 50 * time.Millisecond, SkipHealthCheck: true})

	_, err := l.Generate(context.Background(), "q")

	require.Error(t, err)
	assert.True(t, curiaerrors.IsRetryable(err))
}

func TestNewOllama_ModelMissing(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := NewOllama(context.Background(), Config{Host: server.URL, Model: "llama3"})

	assert.Equal(t, curiaerrors.ErrCodeModelNotFound, curiaerrors.GetCode(err))
}
