// Package ollama is the HTTP transport shared by the embedding and
// generation clients. It maps transport failures onto curia error codes:
// timeouts and refused connections are retryable, bad responses are not.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/curia-rag/curia/internal/errors"
	"github.com/curia-rag/curia/pkg/version"
)

const (
	// DefaultHost is the default Ollama API endpoint.
	DefaultHost = "http://localhost:11434"

	// DefaultTimeout bounds every embedding or generation request.
	DefaultTimeout = 120 * time.Second

	// ConnectTimeout bounds the health check.
	ConnectTimeout = 5 * time.Second

	poolSize = 4
)

// ModelInfo describes an installed model (GET /api/tags).
type ModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}

type modelListResponse struct {
	Models []ModelInfo `json:"models"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client talks to one Ollama host.
type Client struct {
	host string
	http *http.Client
}

// NewClient returns a client for host. A nil httpClient gets a pooled
// client without a global timeout; callers bound requests with contexts.
func NewClient(host string, httpClient *http.Client) *Client {
	if host == "" {
		host = DefaultHost
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        poolSize,
				MaxIdleConnsPerHost: poolSize,
				IdleConnTimeout:     10 * time.Second,
			},
		}
	}
	return &Client{host: strings.TrimRight(host, "/"), http: httpClient}
}

// Host returns the API endpoint.
func (c *Client) Host() string {
	return c.host
}

// Post sends body as JSON to path and returns the response once the status
// is 200. The caller closes the body.
func (c *Client) Post(ctx context.Context, op, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.InternalError(fmt.Sprintf("%s: failed to marshal request", op), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.InternalError(fmt.Sprintf("%s: failed to create request", op), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	return c.do(ctx, op, req)
}

// PostJSON is Post followed by decoding the response into out.
func (c *Client) PostJSON(ctx context.Context, op, path string, body, out any) error {
	resp, err := c.Post(ctx, op, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return Classify(ctx, op, ctx.Err())
		}
		return errors.ProviderError(fmt.Sprintf("%s: failed to decode response", op), err)
	}
	return nil
}

// ListModels returns the installed models.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return nil, errors.InternalError("list models: failed to create request", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.do(ctx, "list models", req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var result modelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.ProviderError("list models: failed to decode response", err)
	}
	return result.Models, nil
}

// FindModel resolves name against the installed models. "all-minilm" matches
// "all-minilm:latest", and a tagged name matches exactly first.
func (c *Client) FindModel(ctx context.Context, name string) (string, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return "", err
	}
	if actual, ok := MatchModel(models, name); ok {
		return actual, nil
	}
	return "", errors.New(errors.ErrCodeModelNotFound, fmt.Sprintf("model %q is not installed", name), nil).
		WithDetail("host", c.host).
		WithSuggestion(fmt.Sprintf("ollama pull %s", name))
}

// MatchModel finds name among models, ignoring case and a missing tag.
func MatchModel(models []ModelInfo, name string) (string, bool) {
	want := strings.ToLower(name)
	tagged := strings.Contains(want, ":")

	var baseMatch string
	for _, m := range models {
		got := strings.ToLower(m.Name)
		if got == want {
			return m.Name, true
		}
		gotBase, _, _ := strings.Cut(got, ":")
		if baseMatch == "" && !tagged && gotBase == want {
			baseMatch = m.Name
		}
	}
	return baseMatch, baseMatch != ""
}

// Available reports whether the host answers /api/tags within ConnectTimeout.
func (c *Client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()
	_, err := c.ListModels(ctx)
	return err == nil
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}

func (c *Client) do(ctx context.Context, op string, req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, Classify(ctx, op, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, statusError(op, resp)
	}
	return resp, nil
}

// Classify converts a transport error into a structured provider error.
func Classify(ctx context.Context, op string, err error) error {
	if stderrors.Is(err, context.Canceled) && ctx.Err() == context.Canceled {
		return err
	}

	var netErr net.Error
	switch {
	case stderrors.Is(err, context.DeadlineExceeded),
		stderrors.As(err, &netErr) && netErr.Timeout():
		return errors.TimeoutError(fmt.Sprintf("%s: request timed out", op), err)
	case stderrors.As(err, &netErr), isConnRefused(err):
		return errors.New(errors.ErrCodeProviderUnavailable, fmt.Sprintf("%s: cannot reach Ollama", op), err).
			WithSuggestion("start Ollama with `ollama serve` or set models.ollama_host")
	default:
		return errors.New(errors.ErrCodeProviderUnavailable, fmt.Sprintf("%s: request failed", op), err)
	}
}

func isConnRefused(err error) bool {
	return strings.Contains(err.Error(), "connection refused")
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	msg := strings.TrimSpace(string(body))
	var apiErr errorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}

	code := errors.ErrCodeProviderResponse
	switch {
	case resp.StatusCode == http.StatusNotFound:
		code = errors.ErrCodeModelNotFound
	case resp.StatusCode == http.StatusServiceUnavailable, resp.StatusCode == http.StatusTooManyRequests:
		code = errors.ErrCodeProviderUnavailable
	}

	return errors.New(code, fmt.Sprintf("%s: status %d: %s", op, resp.StatusCode, msg), nil).
		WithDetail("status", fmt.Sprint(resp.StatusCode))
}
