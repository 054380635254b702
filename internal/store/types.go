// Package store persists embedding records and answers nearest-neighbour
// queries. Records live in SQLite; an HNSW graph mirrors their vectors for
// search and is persisted next to the database.
package store

import (
	"context"
	"fmt"

	"github.com/curia-rag/curia/internal/errors"
)

// SourceKey is the metadata key naming the document a record came from.
const SourceKey = "source"

// Record is one stored chunk: its vector plus the text and metadata it came from.
type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// Hit is a search result. Record.Vector is not populated.
type Hit struct {
	Record
	Distance float32 // cosine distance, 0 (identical) to 2 (opposite)
	Score    float32 // 1 - Distance/2
}

// VectorStore is the persistent vector index used by the index manager.
type VectorStore interface {
	// Upsert inserts or replaces records by ID.
	Upsert(ctx context.Context, records []Record) error

	// DeleteBySource removes every record whose SourceKey metadata is source
	// and returns how many were removed.
	DeleteBySource(ctx context.Context, source string) (int, error)

	// Search returns up to k records nearest to query, best first.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)

	// Count returns the number of stored records.
	Count() int

	// Load (re)reads the persisted index.
	Load(ctx context.Context) error

	// Persist flushes the index to disk.
	Persist(ctx context.Context) error

	Close() error
}

// GraphConfig configures the HNSW graph.
type GraphConfig struct {
	// Dimensions is the vector length. Zero means it is learned from the first insert.
	Dimensions int

	// M is the max connections per layer (default: 16)
	M int

	// EfSearch is the query-time search width (default: 20)
	EfSearch int
}

// DefaultGraphConfig returns the coder/hnsw recommended parameters.
func DefaultGraphConfig() GraphConfig {
	return GraphConfig{M: 16, EfSearch: 20}
}

// ErrDimensionMismatch indicates a vector whose length differs from the index.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

func dimensionError(expected, got int) error {
	cause := ErrDimensionMismatch{Expected: expected, Got: got}
	return errors.New(errors.ErrCodeDimensionMismatch, cause.Error(), cause).
		WithSuggestion("the embedding model changed; rebuild with `curia index --restart` into a fresh db_path")
}
