package embed

import (
	"context"
	"time"

	"github.com/ppiankov/antibody/internal/cache"
	"github.com/ppiankov/antibody/internal/logging"
)

// CachedEmbedder memoizes vectors by model, mode and text in memory and on disk
type CachedEmbedder struct {
	next  Embedder
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedEmbedder wraps next with a layered cache rooted at dir
func NewCachedEmbedder(next Embedder, dir string, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &CachedEmbedder{
		next:  next,
		cache: cache.NewLayeredCache(time.Hour, dir, ttl),
		ttl:   ttl,
	}
}

func (c *CachedEmbedder) key(text string, mode Mode) string {
	return cache.Key("embed", c.next.Model(), string(mode), text)
}

// Embed returns a cached vector or embeds and stores it
func (c *CachedEmbedder) Embed(ctx context.Context, text string, mode Mode) ([]float32, error) {
	if v, ok := cache.GetJSON[[]float32](c.cache, c.key(text, mode)); ok {
		return v, nil
	}
	v, err := c.next.Embed(ctx, text, mode)
	if err != nil {
		return nil, err
	}
	c.store(text, mode, v)
	return v, nil
}

// EmbedBatch only sends cache misses upstream
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, t := range texts {
		if v, ok := cache.GetJSON[[]float32](c.cache, c.key(t, mode)); ok {
			out[i] = v
			continue
		}
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.next.EmbedBatch(ctx, missTexts, mode)
	if err != nil {
		return nil, err
	}
	for j, v := range vectors {
		out[missIdx[j]] = v
		c.store(missTexts[j], mode, v)
	}
	return out, nil
}

func (c *CachedEmbedder) store(text string, mode Mode, v []float32) {
	if err := cache.SetJSON(c.cache, c.key(text, mode), v, c.ttl); err != nil {
		logging.Debug("embedding cache write failed", "err", err)
	}
}

// Dimensions returns the wrapped embedder's vector size
func (c *CachedEmbedder) Dimensions() int { return c.next.Dimensions() }

// Model returns the wrapped embedder's model
func (c *CachedEmbedder) Model() string { return c.next.Model() }
