package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/cache"
	"github.com/atinyakov/shortlink/internal/models"
)

// URLResolver turns short codes back into long URLs and records clicks.
type URLResolver struct {
	storage  Storage
	cache    Cache
	counter  Counter
	logger   *zap.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

func NewURLResolver(store Storage, c Cache, counter Counter, logger *zap.Logger, ttl time.Duration) *URLResolver {
	return &URLResolver{
		storage:  store,
		cache:    c,
		counter:  counter,
		logger:   logger,
		cacheTTL: ttl,
		now:      time.Now,
	}
}

// Resolve returns the long URL for code and records one pending click.
// Cache errors degrade to a durable read; counter errors are logged and do
// not fail the redirect.
func (r *URLResolver) Resolve(ctx context.Context, code string) (string, error) {
	long, err := r.cache.Get(ctx, code)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			r.logger.Warn("cache get failed", zap.String("code", code), zap.Error(err))
		}

		long, err = r.loadAndCache(ctx, code)
		if err != nil {
			return "", err
		}
	}

	if err := r.counter.Increment(ctx, code); err != nil {
		r.logger.Error("failed to record click", zap.String("code", code), zap.Error(err))
	}

	return long, nil
}

func (r *URLResolver) loadAndCache(ctx context.Context, code string) (string, error) {
	link, err := r.storage.GetByCode(ctx, code, true)
	if err != nil {
		return "", err
	}

	now := r.now()
	if link.Expired(now) {
		return "", ErrExpired
	}

	if ttl := cacheTTL(r.cacheTTL, link.ExpiresAt, now); ttl > 0 {
		if err := r.cache.Set(ctx, code, link.LongURL, ttl); err != nil {
			r.logger.Warn("cache set failed", zap.String("code", code), zap.Error(err))
		}
	}

	return link.LongURL, nil
}

// Info reports durable metadata, including inactive links. The click total
// adds the pending count without clearing it.
func (r *URLResolver) Info(ctx context.Context, code string) (*models.LinkInfo, error) {
	link, err := r.storage.GetByCode(ctx, code, false)
	if err != nil {
		return nil, err
	}

	pending, err := r.counter.Pending(ctx, code)
	if err != nil {
		r.logger.Warn("pending clicks unavailable", zap.String("code", code), zap.Error(err))
		pending = 0
	}

	return &models.LinkInfo{
		ShortCode:  link.ShortCode,
		LongURL:    link.LongURL,
		CreatedAt:  link.CreatedAt,
		ExpiresAt:  link.ExpiresAt,
		IsActive:   link.IsActive,
		ClickCount: link.ClickCount + pending,
	}, nil
}
