// Package embed turns text into vectors through an embedding provider.
package embed

import (
	"context"
	"math"
)

// Embedder maps text to vectors. Vectors from one Embedder share a
// dimension, which is unknown (0) until the first successful call.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns exactly one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	Dimensions() int
	ModelName() string

	// Available reports whether the provider answers and has the model.
	Available(ctx context.Context) bool

	Close() error
}

// normalizeVector scales v to unit length so that a dot product is the
// cosine similarity. A zero vector comes back unchanged.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
