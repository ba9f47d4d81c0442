package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/unicode/norm"
)

// DefaultEmbeddingCacheSize is the number of query embeddings kept in memory.
// At 1536 dimensions that is about 6MB.
const DefaultEmbeddingCacheSize = 1000

// CachedEmbedder memoizes embeddings of recently seen texts.
//
// Texts are keyed by their canonical form (NFC, lowercased, whitespace
// collapsed), so "Restorasi  Gambut" and "restorasi gambut" share one entry.
// A miss sends the caller's text unchanged; the first variant seen for a key
// is the one that gets embedded.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits   int64
	Misses int64
	Size   int
}

// NewCachedEmbedder wraps inner with an LRU of cacheSize entries.
// Non-positive sizes use DefaultEmbeddingCacheSize.
func NewCachedEmbedder(inner Embedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultEmbeddingCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{inner: inner, cache: cache}
}

// NewCachedEmbedderWithDefaults wraps inner with the default cache size.
func NewCachedEmbedderWithDefaults(inner Embedder) *CachedEmbedder {
	return NewCachedEmbedder(inner, DefaultEmbeddingCacheSize)
}

// CanonicalText is the form texts are compared in for caching.
func CanonicalText(text string) string {
	return strings.Join(strings.Fields(norm.NFC.String(strings.ToLower(text))), " ")
}

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.inner.ModelName() + "\x00" + CanonicalText(text)))
	return hex.EncodeToString(sum[:])
}

// Embed returns the cached vector for text or asks the provider.
// Failed calls are not cached.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return vec, nil
	}
	c.misses.Add(1)

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch resolves cached texts locally and sends each distinct miss to
// the provider once, in a single batch. Output order matches texts.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	pending := make(map[string][]int) // key -> positions waiting for it
	var missTexts, missKeys []string

	for i, text := range texts {
		key := c.cacheKey(text)
		keys[i] = key
		if vec, ok := c.cache.Get(key); ok {
			c.hits.Add(1)
			results[i] = vec
			continue
		}
		if _, queued := pending[key]; !queued {
			c.misses.Add(1)
			missTexts = append(missTexts, text)
			missKeys = append(missKeys, key)
		}
		pending[key] = append(pending[key], i)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	vecs, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, key := range missKeys {
		c.cache.Add(key, vecs[j])
		for _, i := range pending[key] {
			results[i] = vecs[j]
		}
	}
	return results, nil
}

// Len returns the number of cached embeddings.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

// Stats returns hit and miss counts since creation.
func (c *CachedEmbedder) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.cache.Len(),
	}
}

func (c *CachedEmbedder) Dimensions() int   { return c.inner.Dimensions() }
func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

// Close closes the wrapped embedder.
func (c *CachedEmbedder) Close() error {
	return c.inner.Close()
}

// Inner returns the wrapped embedder.
func (c *CachedEmbedder) Inner() Embedder {
	return c.inner
}
