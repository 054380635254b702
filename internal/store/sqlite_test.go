package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDB_UpsertAndGet(t *testing.T) {
	// Given: an in-memory record store
	db, err := OpenRecordDB("")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	// When: two records are written, then one is overwritten
	require.NoError(t, db.Upsert(ctx, "docs", []Record{
		{ID: "a", Vector: []float32{1, 0}, Text: "alpha", Metadata: map[string]string{"source": "a.txt"}},
		{ID: "b", Vector: []float32{0, 1}, Text: "beta", Metadata: map[string]string{"source": "b.txt"}},
	}))
	require.NoError(t, db.Upsert(ctx, "docs", []Record{
		{ID: "a", Vector: []float32{0.5, 0.5}, Text: "alpha v2", Metadata: map[string]string{"source": "a.txt"}},
	}))

	// Then: the count reflects unique ids and the latest text wins
	n, err := db.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := db.Get(ctx, "docs", []string{"a", "missing"})
	require.NoError(t, err)
	require.Contains(t, got, "a")
	assert.Equal(t, "alpha v2", got["a"].Text)
	assert.Equal(t, "a.txt", got["a"].Metadata["source"])
	assert.NotContains(t, got, "missing")
}

func TestRecordDB_CollectionsAreIsolated(t *testing.T) {
	db, err := OpenRecordDB("")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	require.NoError(t, db.Upsert(ctx, "one", []Record{{ID: "x", Vector: []float32{1}, Text: "1"}}))
	require.NoError(t, db.Upsert(ctx, "two", []Record{{ID: "x", Vector: []float32{1}, Text: "2"}}))

	got, err := db.Get(ctx, "two", []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, "2", got["x"].Text)

	n, err := db.Count(ctx, "three")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecordDB_DeleteBySource(t *testing.T) {
	// Given: two documents, one with two chunks
	db, err := OpenRecordDB("")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	ctx := context.Background()
	require.NoError(t, db.Upsert(ctx, "docs", []Record{
		{ID: "a.txt_chunk_0", Vector: []float32{1, 0}, Text: "a0", Metadata: map[string]string{SourceKey: "a.txt"}},
		{ID: "a.txt_chunk_1", Vector: []float32{1, 0}, Text: "a1", Metadata: map[string]string{SourceKey: "a.txt"}},
		{ID: "b.txt_chunk_0", Vector: []float32{0, 1}, Text: "b0", Metadata: map[string]string{SourceKey: "b.txt"}},
	}))
	require.NoError(t, db.Upsert(ctx, "other", []Record{
		{ID: "a.txt_chunk_0", Vector: []float32{1, 0}, Text: "a0", Metadata: map[string]string{SourceKey: "a.txt"}},
	}))
	before, err := db.Revision(ctx, "docs")
	require.NoError(t, err)

	// When
	ids, err := db.DeleteBySource(ctx, "docs", "a.txt")

	// Then: only that document in that collection is gone
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt_chunk_0", "a.txt_chunk_1"}, ids)
	n, err := db.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = db.Count(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	after, err := db.Revision(ctx, "docs")
	require.NoError(t, err)
	assert.Greater(t, after, before)
}

func TestRecordDB_RevisionCountsWrites(t *testing.T) {
	db, err := OpenRecordDB("")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	rev, err := db.Revision(ctx, "docs")
	require.NoError(t, err)
	assert.Zero(t, rev)

	require.NoError(t, db.Upsert(ctx, "docs", []Record{{ID: "x", Vector: []float32{1}, Text: "1"}}))
	require.NoError(t, db.Upsert(ctx, "docs", []Record{{ID: "x", Vector: []float32{2}, Text: "2"}}))
	rev, err = db.Revision(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)

	// Deleting nothing is not a write.
	ids, err := db.DeleteBySource(ctx, "docs", "none.txt")
	require.NoError(t, err)
	assert.Empty(t, ids)
	rev, err = db.Revision(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)
}

func TestRecordDB_EachReturnsVectors(t *testing.T) {
	db, err := OpenRecordDB(filepath.Join(t.TempDir(), DBFileName))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	require.NoError(t, db.Upsert(ctx, "docs", []Record{
		{ID: "b", Vector: []float32{0, 1, 0.25}, Text: "beta"},
		{ID: "a", Vector: []float32{1, -2.5, 0}, Text: "alpha"},
	}))

	var seen []Record
	require.NoError(t, db.Each(ctx, "docs", func(r Record) error {
		seen = append(seen, r)
		return nil
	}))

	require.Len(t, seen, 2)
	assert.Equal(t, "a", seen[0].ID)
	assert.Equal(t, []float32{1, -2.5, 0}, seen[0].Vector)
	assert.Equal(t, []float32{0, 1, 0.25}, seen[1].Vector)

	dims, err := db.Dimensions(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 3, dims)
	assert.NoError(t, db.Checkpoint(ctx))
}

func TestRecordDB_DimensionsEmpty(t *testing.T) {
	db, err := OpenRecordDB("")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	dims, err := db.Dimensions(context.Background(), "docs")

	require.NoError(t, err)
	assert.Zero(t, dims)
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0, 1.5, -3.25, 1e-7}

	got, err := decodeVector(encodeVector(v))

	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
