package embed

import (
	"context"
	"crypto/sha256"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/curia-rag/curia/internal/errors"
)

// DefaultCacheSize bounds the vectors CachedEmbedder keeps.
const DefaultCacheSize = 1000

type cacheKey [sha256.Size]byte

// CachedEmbedder remembers vectors by model and text, so a question asked
// twice in chat costs one provider call. Concurrent misses on the same text
// share one call.
type CachedEmbedder struct {
	inner  Embedder
	cache  *lru.Cache[cacheKey, []float32]
	flight singleflight.Group
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner. A size <= 0 means DefaultCacheSize.
func NewCachedEmbedder(inner Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[cacheKey, []float32](size)
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (c *CachedEmbedder) key(text string) cacheKey {
	h := sha256.New()
	h.Write([]byte(c.inner.ModelName()))
	h.Write([]byte{0})
	h.Write([]byte(text))
	var k cacheKey
	h.Sum(k[:0])
	return k
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	k := c.key(text)
	if v, ok := c.cache.Get(k); ok {
		return v, nil
	}

	v, err, _ := c.flight.Do(string(k[:]), func() (any, error) {
		vec, err := c.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.cache.Add(k, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// EmbedBatch answers cached texts from memory and sends only the misses,
// in their original order, to the wrapped embedder. Batch results are not
// cached: a build embeds each chunk once and would evict the query vectors.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var miss []int
	for i, t := range texts {
		if v, ok := c.cache.Peek(c.key(t)); ok {
			out[i] = v
		} else {
			miss = append(miss, i)
		}
	}
	if len(miss) == 0 {
		return out, nil
	}

	pending := make([]string, len(miss))
	for j, i := range miss {
		pending[j] = texts[i]
	}
	vecs, err := c.inner.EmbedBatch(ctx, pending)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(pending) {
		return nil, errors.New(errors.ErrCodeProviderResponse,
			fmt.Sprintf("embedder returned %d vectors for %d texts", len(vecs), len(pending)), nil)
	}
	for j, i := range miss {
		out[i] = vecs[j]
	}
	return out, nil
}

// Len is the number of cached vectors.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }

func (c *CachedEmbedder) Dimensions() int                    { return c.inner.Dimensions() }
func (c *CachedEmbedder) ModelName() string                  { return c.inner.ModelName() }
func (c *CachedEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

// Close drops the cache and closes the wrapped embedder.
func (c *CachedEmbedder) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
