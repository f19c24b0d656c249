package service

//go:generate mockgen -source=interface.go -destination=../../mocks/mock_service.go -package=mocks

import (
	"context"
	"net/url"
	"time"

	"github.com/atinyakov/shortlink/internal/models"
	"github.com/atinyakov/shortlink/internal/storage"
)

// Storage is the Link Store. Implementations must enforce short code
// uniqueness and report violations as storage.ErrAliasTaken.
type Storage interface {
	Create(context.Context, storage.Link) (*storage.Link, error)
	GetByCode(ctx context.Context, code string, activeOnly bool) (*storage.Link, error)
	GetByID(context.Context, int64) (*storage.Link, error)
	Update(context.Context, storage.Link) error
	BatchIncrementClickCounts(context.Context, map[string]int64) error
	FindOrphans(ctx context.Context, olderThan time.Time, limit int) ([]storage.Link, error)
	PingContext(context.Context) error
}

// Cache is the Resolution Cache. Get returns cache.ErrMiss when absent.
type Cache interface {
	Get(ctx context.Context, code string) (string, error)
	Set(ctx context.Context, code, url string, ttl time.Duration) error
}

// Counter records clicks that are not yet durable.
type Counter interface {
	Increment(ctx context.Context, code string) error
	Pending(ctx context.Context, code string) (int64, error)
}

// URLValidator guards outbound targets.
type URLValidator interface {
	Validate(ctx context.Context, raw string) (*url.URL, error)
}

// URLServiceIface is what the transports depend on.
type URLServiceIface interface {
	Shorten(ctx context.Context, req models.ShortenRequest) (string, error)
	Resolve(ctx context.Context, code string) (string, error)
	Info(ctx context.Context, code string) (*models.LinkInfo, error)
	PingContext(ctx context.Context) error
}
