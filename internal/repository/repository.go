// Package repository is the PostgreSQL Link Store.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/storage"
)

const linkColumns = "id, short_code, long_url, created_at, expires_at, is_active, click_count"

// InitDB opens a pgx-backed pool, checks connectivity and migrates the schema.
func InitDB(ctx context.Context, dsn string, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := Migrate(db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

type LinkRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func CreateLinkRepository(db *sql.DB, logger *zap.Logger) *LinkRepository {
	return &LinkRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts l and returns it with the assigned id and creation time. An
// empty ShortCode is stored as NULL.
func (r *LinkRepository) Create(ctx context.Context, l storage.Link) (*storage.Link, error) {
	createdAt := l.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	row := r.db.QueryRowContext(ctx,
		`INSERT INTO links (short_code, long_url, created_at, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at;`,
		nullString(l.ShortCode), l.LongURL, createdAt, nullTime(l.ExpiresAt), l.IsActive,
	)

	res := l
	res.ClickCount = 0
	if err := row.Scan(&res.ID, &res.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrAliasTaken
		}
		return nil, fmt.Errorf("insert link: %w", err)
	}

	return &res, nil
}

func (r *LinkRepository) GetByCode(ctx context.Context, code string, activeOnly bool) (*storage.Link, error) {
	query := "SELECT " + linkColumns + " FROM links WHERE short_code = $1"
	if activeOnly {
		query += " AND is_active = TRUE"
	}

	return r.scanOne(r.db.QueryRowContext(ctx, query+";", code))
}

func (r *LinkRepository) GetByID(ctx context.Context, id int64) (*storage.Link, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, "SELECT "+linkColumns+" FROM links WHERE id = $1;", id))
}

// Update writes short_code, is_active and expires_at. click_count is owned by
// BatchIncrementClickCounts and never written here.
func (r *LinkRepository) Update(ctx context.Context, l storage.Link) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE links SET short_code = $1, is_active = $2, expires_at = $3 WHERE id = $4;",
		nullString(l.ShortCode), l.IsActive, nullTime(l.ExpiresAt), l.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAliasTaken
		}
		return fmt.Errorf("update link %d: %w", l.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// BatchIncrementClickCounts applies all deltas in a single transaction, so a
// batch that fails before commit leaves every counter untouched. A failed
// commit is reported as storage.ErrCommitUnknown. Codes without a row are
// skipped.
func (r *LinkRepository) BatchIncrementClickCounts(ctx context.Context, deltas map[string]int64) error {
	if len(deltas) == 0 {
		return nil
	}

	// Fixed lock order across concurrent flushers.
	codes := make([]string, 0, len(deltas))
	for code := range deltas {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "UPDATE links SET click_count = click_count + $1 WHERE short_code = $2;")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, code := range codes {
		res, err := stmt.ExecContext(ctx, deltas[code], code)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("increment %s: %w", code, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			r.logger.Debug("dropping clicks for unknown code", zap.String("code", code), zap.Int64("delta", deltas[code]))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w: %w", storage.ErrCommitUnknown, err)
	}

	return nil
}

// FindOrphans lists active links created before olderThan whose short code
// was never assigned.
func (r *LinkRepository) FindOrphans(ctx context.Context, olderThan time.Time, limit int) ([]storage.Link, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+linkColumns+" FROM links WHERE short_code IS NULL AND is_active = TRUE AND created_at < $1 ORDER BY id LIMIT $2;",
		olderThan, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query orphans: %w", err)
	}
	defer rows.Close()

	var res []storage.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return res, nil
}

func (r *LinkRepository) PingContext(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *LinkRepository) scanOne(row *sql.Row) (*storage.Link, error) {
	l, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan link: %w", err)
	}
	return l, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLink(s scanner) (*storage.Link, error) {
	var (
		l         storage.Link
		code      sql.NullString
		expiresAt sql.NullTime
	)

	if err := s.Scan(&l.ID, &code, &l.LongURL, &l.CreatedAt, &expiresAt, &l.IsActive, &l.ClickCount); err != nil {
		return nil, err
	}

	l.ShortCode = code.String
	if expiresAt.Valid {
		t := expiresAt.Time
		l.ExpiresAt = &t
	}

	return &l, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
