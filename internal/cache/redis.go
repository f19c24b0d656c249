package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores code → URL strings under "link:{code}".
type RedisCache struct {
	client redis.Cmdable
}

func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, code string) (string, error) {
	url, err := c.client.Get(ctx, key(code)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", code, err)
	}
	return url, nil
}

func (c *RedisCache) Set(ctx context.Context, code, url string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key(code), url, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", code, err)
	}
	return nil
}
