package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curia-rag/curia/internal/errors"
)

func pullServer(t *testing.T, installed []string, stream string, pulls *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", tagsHandler(installed...))
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		pulls.Add(1)
		var req struct {
			Model  string `json:"model"`
			Stream bool   `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model == "" || !req.Stream {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(stream))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestPull_StreamsProgress(t *testing.T) {
	// Given: a model that is not installed yet
	var pulls atomic.Int32
	stream := `{"status":"pulling manifest"}
{"status":"downloading","digest":"sha256:abc","total":200,"completed":50}

not json
{"status":"downloading","digest":"sha256:abc","total":200,"completed":200}
{"status":"success"}
`
	server := pullServer(t, nil, stream, &pulls)

	// When
	var got []PullProgress
	err := NewClient(server.URL, nil).Pull(context.Background(), "all-minilm:l6-v2", func(p PullProgress) {
		got = append(got, p)
	})

	// Then: blank and malformed lines are skipped
	require.NoError(t, err)
	assert.Equal(t, int32(1), pulls.Load())
	require.Len(t, got, 4)
	assert.Equal(t, "pulling manifest", got[0].Status)
	assert.InDelta(t, 25.0, got[1].Percent(), 0.001)
	assert.InDelta(t, 100.0, got[2].Percent(), 0.001)
	assert.Equal(t, "success", got[3].Status)
	assert.Zero(t, got[0].Percent())
}

func TestPull_AlreadyInstalled(t *testing.T) {
	var pulls atomic.Int32
	server := pullServer(t, []string{"all-minilm:l6-v2"}, "", &pulls)

	err := NewClient(server.URL, nil).Pull(context.Background(), "all-minilm", nil)

	require.NoError(t, err)
	assert.Zero(t, pulls.Load())
}

func TestPull_StreamError(t *testing.T) {
	// Given: the registry rejects the name mid-stream
	var pulls atomic.Int32
	stream := `{"status":"pulling manifest"}
{"error":"pull model manifest: file does not exist"}
`
	server := pullServer(t, nil, stream, &pulls)

	// When
	err := NewClient(server.URL, nil).Pull(context.Background(), "no/such_model", nil)

	// Then
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeModelNotFound, errors.GetCode(err))
	assert.Contains(t, err.Error(), "file does not exist")
}

func TestPull_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	host := server.URL
	server.Close()

	err := NewClient(host, nil).Pull(context.Background(), "all-minilm", nil)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeProviderUnavailable, errors.GetCode(err))
}
