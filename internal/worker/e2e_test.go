package worker_test

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/app/service"
	"github.com/atinyakov/shortlink/internal/cache"
	"github.com/atinyakov/shortlink/internal/counter"
	"github.com/atinyakov/shortlink/internal/models"
	"github.com/atinyakov/shortlink/internal/ssrf"
	"github.com/atinyakov/shortlink/internal/storage"
	"github.com/atinyakov/shortlink/internal/worker"
)

type exampleResolver struct{}

func (exampleResolver) LookupNetIP(context.Context, string, string) ([]netip.Addr, error) {
	return []netip.Addr{netip.MustParseAddr("93.184.215.14")}, nil
}

func TestShortenResolveAggregate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := zap.NewNop()
	store := storage.CreateMemoryStorage()
	c := cache.NewMemoryCache(time.Minute)
	clicks := counter.NewMemoryCounter()

	svc := service.NewURL(store,
		service.NewURLShortener(store, c, ssrf.NewGuard(exampleResolver{}), logger, "https://sho.rt", time.Hour),
		service.NewURLResolver(store, c, clicks, logger, time.Hour),
	)

	agg := worker.NewClickAggregator(logger, store, clicks, 10*time.Millisecond)
	go func() { _ = agg.Run(ctx) }()

	short, err := svc.Shorten(ctx, models.ShortenRequest{URL: "https://example.com/page"})
	require.NoError(t, err)
	assert.Equal(t, "https://sho.rt/1", short)

	long, err := svc.Resolve(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", long)

	require.Eventually(t, func() bool {
		l, err := store.GetByCode(ctx, "1", false)
		return err == nil && l.ClickCount == 1
	}, time.Second, 5*time.Millisecond)

	info, err := svc.Info(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.ClickCount)
}
