package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/curia-rag/curia/internal/errors"
)

// PullProgress is one status line of a streaming /api/pull.
type PullProgress struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Percent returns the completed share of the current layer, 0 when unknown.
func (p PullProgress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total) * 100
}

// Pull downloads model, reporting each progress line to fn (which may be nil).
// It returns nil without contacting /api/pull when the model is already installed.
// The request is bounded by ctx only; downloads can take minutes.
func (c *Client) Pull(ctx context.Context, model string, fn func(PullProgress)) error {
	if _, err := c.FindModel(ctx, model); err == nil {
		return nil
	} else if errors.GetCode(err) != errors.ErrCodeModelNotFound {
		return err
	}

	resp, err := c.Post(ctx, "pull", "/api/pull", map[string]any{"model": model, "stream": true})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var p PullProgress
		if err := json.Unmarshal(line, &p); err != nil {
			continue
		}
		if p.Error != "" {
			return errors.New(errors.ErrCodeModelNotFound, fmt.Sprintf("pull %s: %s", model, p.Error), nil).
				WithDetail("host", c.host)
		}
		if fn != nil {
			fn(p)
		}
	}
	if err := scanner.Err(); err != nil {
		return Classify(ctx, "pull", err)
	}
	return nil
}
