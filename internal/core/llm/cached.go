package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/markdave123-py/ksync/internal/core"
)

// DefaultEmbeddingCacheSize is used when a non-positive size is configured.
const DefaultEmbeddingCacheSize = 1000

// CachedEmbedder wraps a provider with an LRU keyed by text and model, so
// unchanged chunks of an edited file and repeated queries are not re-embedded.
type CachedEmbedder struct {
	inner core.EmbeddingProvider
	cache *lru.Cache[string, []float32]
}

func NewCachedEmbedder(inner core.EmbeddingProvider, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultEmbeddingCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

func (c *CachedEmbedder) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text + "\x00" + c.inner.ModelName()))
	return hex.EncodeToString(hash[:])
}

// EmbedTexts serves cached vectors and sends only the misses to the inner
// provider, in one call.
func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missIdx  []int
		missText []string
	)
	for i, t := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(t)); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missText = append(missText, t)
	}
	if len(missText) == 0 {
		return out, nil
	}

	vecs, err := c.inner.EmbedTexts(ctx, missText)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missText) {
		return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(vecs), len(missText))
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		c.cache.Add(c.cacheKey(missText[j]), vecs[j])
	}
	return out, nil
}

// Len reports the number of cached vectors.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }

var _ core.EmbeddingProvider = (*CachedEmbedder)(nil)
