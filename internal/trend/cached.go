package trend

import (
	"context"
	"strings"
	"time"

	"github.com/ppiankov/antibody/internal/cache"
	"github.com/ppiankov/antibody/internal/model"
)

// CachedProvider memoizes signals per entity. Errors are not cached.
type CachedProvider struct {
	next  Provider
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedProvider wraps next with an in-memory TTL cache
func NewCachedProvider(next Provider, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedProvider{
		next:  next,
		cache: cache.NewMemoryCache(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// EntityVelocity returns a cached signal when one is fresh
func (c *CachedProvider) EntityVelocity(ctx context.Context, entity string) (model.TrendSignal, error) {
	key := cache.Key("trend", strings.ToLower(strings.TrimSpace(entity)))
	if signal, ok := cache.GetJSON[model.TrendSignal](c.cache, key); ok {
		return signal, nil
	}

	signal, err := c.next.EntityVelocity(ctx, entity)
	if err != nil {
		return model.TrendSignal{}, err
	}
	_ = cache.SetJSON(c.cache, key, signal, c.ttl)
	return signal, nil
}
