package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/storage"
)

var linkRowColumns = []string{"id", "short_code", "long_url", "created_at", "expires_at", "is_active", "click_count"}

// Helper to set up a mock DB and repository
func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *LinkRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db, mock, CreateLinkRepository(db, zap.NewNop())
}

func TestCreate_WithoutCode(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO links`).
		WithArgs(nil, "https://example.com", sqlmock.AnyArg(), nil, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), created))

	l, err := repo.Create(context.Background(), storage.Link{LongURL: "https://example.com", IsActive: true})

	require.NoError(t, err)
	assert.Equal(t, int64(1), l.ID)
	assert.Equal(t, created, l.CreatedAt)
	assert.Empty(t, l.ShortCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_AliasTaken(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	expires := time.Now().Add(time.Hour).UTC()

	mock.ExpectQuery(`INSERT INTO links`).
		WithArgs("promo", "https://example.com", sqlmock.AnyArg(), expires, true).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	_, err := repo.Create(context.Background(), storage.Link{
		ShortCode: "promo",
		LongURL:   "https://example.com",
		ExpiresAt: &expires,
		IsActive:  true,
	})

	assert.ErrorIs(t, err, storage.ErrAliasTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_OtherError(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(`INSERT INTO links`).WillReturnError(errors.New("connection reset"))

	_, err := repo.Create(context.Background(), storage.Link{LongURL: "https://example.com", IsActive: true})

	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrAliasTaken)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestGetByCode(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	expires := created.Add(time.Hour)

	t.Run("active only", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectQuery(`SELECT id, short_code, long_url, created_at, expires_at, is_active, click_count FROM links WHERE short_code = \$1 AND is_active = TRUE;`).
			WithArgs("abc").
			WillReturnRows(sqlmock.NewRows(linkRowColumns).
				AddRow(int64(7), "abc", "https://example.com", created, expires, true, int64(12)))

		l, err := repo.GetByCode(context.Background(), "abc", true)

		require.NoError(t, err)
		assert.Equal(t, int64(7), l.ID)
		assert.Equal(t, "abc", l.ShortCode)
		require.NotNil(t, l.ExpiresAt)
		assert.Equal(t, expires, *l.ExpiresAt)
		assert.Equal(t, int64(12), l.ClickCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("any state", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectQuery(`FROM links WHERE short_code = \$1;`).
			WithArgs("abc").
			WillReturnRows(sqlmock.NewRows(linkRowColumns).
				AddRow(int64(7), "abc", "https://example.com", created, nil, false, int64(0)))

		l, err := repo.GetByCode(context.Background(), "abc", false)

		require.NoError(t, err)
		assert.False(t, l.IsActive)
		assert.Nil(t, l.ExpiresAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectQuery(`FROM links WHERE short_code`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(linkRowColumns))

		_, err := repo.GetByCode(context.Background(), "missing", true)

		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestGetByID(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(`FROM links WHERE id = \$1;`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(linkRowColumns).
			AddRow(int64(3), nil, "https://example.com", time.Now(), nil, true, int64(0)))

	l, err := repo.GetByID(context.Background(), 3)

	require.NoError(t, err)
	assert.Empty(t, l.ShortCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate(t *testing.T) {
	t.Run("assigns code", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectExec(`UPDATE links SET short_code = \$1, is_active = \$2, expires_at = \$3 WHERE id = \$4;`).
			WithArgs("1", true, nil, int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Update(context.Background(), storage.Link{ID: 1, ShortCode: "1", IsActive: true, ClickCount: 99})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate code", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectExec(`UPDATE links SET`).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		err := repo.Update(context.Background(), storage.Link{ID: 1, ShortCode: "taken", IsActive: true})

		assert.ErrorIs(t, err, storage.ErrAliasTaken)
	})

	t.Run("missing row", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectExec(`UPDATE links SET`).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Update(context.Background(), storage.Link{ID: 42, ShortCode: "x", IsActive: true})

		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestBatchIncrementClickCounts(t *testing.T) {
	t.Run("commits all deltas", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectBegin()
		prep := mock.ExpectPrepare(`UPDATE links SET click_count = click_count \+ \$1 WHERE short_code = \$2;`)
		prep.ExpectExec().WithArgs(int64(3), "a").WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().WithArgs(int64(1), "b").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := repo.BatchIncrementClickCounts(context.Background(), map[string]int64{"b": 1, "a": 3})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectBegin()
		prep := mock.ExpectPrepare(`UPDATE links SET click_count`)
		prep.ExpectExec().WithArgs(int64(3), "a").WillReturnError(errors.New("deadlock"))
		mock.ExpectRollback()

		err := repo.BatchIncrementClickCounts(context.Background(), map[string]int64{"a": 3})

		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed commit is reported as unknown", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectBegin()
		prep := mock.ExpectPrepare(`UPDATE links SET click_count`)
		prep.ExpectExec().WithArgs(int64(3), "a").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit().WillReturnError(errors.New("connection reset by peer"))

		err := repo.BatchIncrementClickCounts(context.Background(), map[string]int64{"a": 3})

		assert.ErrorIs(t, err, storage.ErrCommitUnknown)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure before commit is not unknown", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		err := repo.BatchIncrementClickCounts(context.Background(), map[string]int64{"a": 3})

		assert.Error(t, err)
		assert.NotErrorIs(t, err, storage.ErrCommitUnknown)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		assert.NoError(t, repo.BatchIncrementClickCounts(context.Background(), nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFindOrphans(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	cutoff := time.Now().Add(-time.Minute)
	created := cutoff.Add(-time.Hour)

	mock.ExpectQuery(`WHERE short_code IS NULL AND is_active = TRUE AND created_at < \$1 ORDER BY id LIMIT \$2;`).
		WithArgs(cutoff, 100).
		WillReturnRows(sqlmock.NewRows(linkRowColumns).
			AddRow(int64(4), nil, "https://a.com", created, nil, true, int64(0)).
			AddRow(int64(9), nil, "https://b.com", created, nil, true, int64(0)))

	orphans, err := repo.FindOrphans(context.Background(), cutoff, 100)

	require.NoError(t, err)
	require.Len(t, orphans, 2)
	assert.Equal(t, int64(4), orphans[0].ID)
	assert.Equal(t, int64(9), orphans[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPingContext(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	repo := CreateLinkRepository(db, zap.NewNop())
	mock.ExpectPing()

	assert.NoError(t, repo.PingContext(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
