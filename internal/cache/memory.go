package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is an in-process cache for single-instance deployments.
type MemoryCache struct {
	items *gocache.Cache
}

func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		items: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

func (c *MemoryCache) Get(_ context.Context, code string) (string, error) {
	v, ok := c.items.Get(key(code))
	if !ok {
		return "", ErrMiss
	}
	return v.(string), nil
}

// Set stores url for ttl. A non-positive ttl is ignored rather than cached
// forever.
func (c *MemoryCache) Set(_ context.Context, code, url string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.items.Set(key(code), url, ttl)
	return nil
}
