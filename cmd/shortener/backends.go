package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/app/service"
	"github.com/atinyakov/shortlink/internal/cache"
	"github.com/atinyakov/shortlink/internal/config"
	"github.com/atinyakov/shortlink/internal/counter"
	"github.com/atinyakov/shortlink/internal/repository"
	"github.com/atinyakov/shortlink/internal/storage"
)

// backends are the stateful dependencies chosen by configuration: Postgres
// or memory for links, Redis or process memory for cache and counter.
type backends struct {
	store   service.Storage
	cache   service.Cache
	counter counter.Counter
	closers []func() error
	logger  *zap.Logger
}

func openBackends(ctx context.Context, options *config.Options, logger *zap.Logger) (*backends, error) {
	b := &backends{logger: logger}

	if options.DatabaseDSN != "" {
		db, err := repository.InitDB(ctx, options.DatabaseDSN, logger)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		b.store = repository.CreateLinkRepository(db, logger)
		logger.Info("Database connected and schema migrated")
	} else {
		logger.Info("using in memory storage")
		b.store = storage.CreateMemoryStorage()
	}

	if options.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, options.RedisURL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, client.Close)
		b.cache = cache.NewRedisCache(client)
		b.counter = counter.NewRedisCounter(client)
		logger.Info("Redis connected")
	} else {
		logger.Info("using in process cache and click counter")
		b.cache = cache.NewMemoryCache(time.Minute)
		b.counter = counter.NewMemoryCounter()
	}

	return b, nil
}

// Close releases backends in reverse order of opening.
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			b.logger.Error("close backend", zap.Error(err))
		}
	}
	b.closers = nil
}
