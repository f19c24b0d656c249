//go:build integration

package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/repository"
	"github.com/atinyakov/shortlink/internal/storage"
)

func setupPostgres(t *testing.T) *repository.LinkRepository {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("links"),
		tcpostgres.WithUsername("shortlink"),
		tcpostgres.WithPassword("shortlink"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := repository.InitDB(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// Second run must be a no-op.
	require.NoError(t, repository.Migrate(db, zap.NewNop()))

	return repository.CreateLinkRepository(db, zap.NewNop())
}

func TestLinkRepository_Postgres(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()

	pending, err := repo.Create(ctx, storage.Link{LongURL: "https://example.com/page", IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.ID)

	pending.ShortCode = "1"
	require.NoError(t, repo.Update(ctx, *pending))

	_, err = repo.Create(ctx, storage.Link{ShortCode: "1", LongURL: "https://other.com", IsActive: true})
	assert.ErrorIs(t, err, storage.ErrAliasTaken)

	require.NoError(t, repo.BatchIncrementClickCounts(ctx, map[string]int64{"1": 4, "ghost": 2}))

	l, err := repo.GetByCode(ctx, "1", true)
	require.NoError(t, err)
	assert.Equal(t, int64(4), l.ClickCount)
	assert.Equal(t, "https://example.com/page", l.LongURL)

	l.IsActive = false
	require.NoError(t, repo.Update(ctx, *l))

	_, err = repo.GetByCode(ctx, "1", true)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	inactive, err := repo.GetByCode(ctx, "1", false)
	require.NoError(t, err)
	assert.Equal(t, int64(4), inactive.ClickCount)

	orphan, err := repo.Create(ctx, storage.Link{LongURL: "https://orphan.com", IsActive: true, CreatedAt: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	orphans, err := repo.FindOrphans(ctx, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, orphan.ID, orphans[0].ID)
}

func TestLinkRepository_ConcurrentAlias(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		taken int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(ctx, storage.Link{ShortCode: "launch", LongURL: "https://example.com", IsActive: true})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case assert.ErrorIs(t, err, storage.ErrAliasTaken):
				taken++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, taken)
}
