// Package postgres provides the Postgres-backed bookmark repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkvault/internal/bookmark"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const bookmarkColumns = `id, url, title, description, tags, snapshot_key, favicon_key, archived, created_at, updated_at`

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	// Migrate applies embedded migrations before the store is returned.
	Migrate bool
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// BookmarkStore implements bookmark.Repository on Postgres.
type BookmarkStore struct {
	pool pgxPool
}

// NewBookmarkStore connects to Postgres using cfg.
func NewBookmarkStore(ctx context.Context, cfg Config, logger *zap.Logger) (*BookmarkStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Migrate {
		if err := Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return &BookmarkStore{pool: pool}, nil
}

// NewBookmarkStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewBookmarkStoreWithPool(pool pgxPool) (*BookmarkStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &BookmarkStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *BookmarkStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies connectivity for readiness checks.
func (s *BookmarkStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// List returns bookmarks newest first.
func (s *BookmarkStore) List(ctx context.Context, opts bookmark.ListOptions) ([]bookmark.Bookmark, error) {
	query := `
		SELECT ` + bookmarkColumns + `
		FROM bookmarks
		WHERE ($1::boolean IS NULL OR archived = $1)
		  AND ($2::text = '' OR title ILIKE $2 OR description ILIKE $2 OR tags ILIKE $2 OR url ILIKE $2)
		ORDER BY created_at DESC, id DESC;
	`
	rows, err := s.pool.Query(ctx, query, archivedArg(opts.Archived), likePattern(opts.Query))
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	out := make([]bookmark.Bookmark, 0)
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bookmark row: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookmarks: %w", err)
	}
	return out, nil
}

// Get retrieves a single bookmark by id.
func (s *BookmarkStore) Get(ctx context.Context, id int64) (bookmark.Bookmark, error) {
	query := `SELECT ` + bookmarkColumns + ` FROM bookmarks WHERE id = $1;`
	b, err := scanBookmark(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bookmark.Bookmark{}, bookmark.ErrNotFound
		}
		return bookmark.Bookmark{}, fmt.Errorf("failed to get bookmark: %w", err)
	}
	return b, nil
}

// ExistsByURL reports whether url is already bookmarked.
func (s *BookmarkStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookmarks WHERE url = $1);`, url).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check url: %w", err)
	}
	return exists, nil
}

// Insert writes a new row. The url unique constraint turns a lost race into
// bookmark.ErrConflict.
func (s *BookmarkStore) Insert(ctx context.Context, nb bookmark.NewBookmark) (bookmark.Bookmark, error) {
	query := `
		INSERT INTO bookmarks (url, title, snapshot_key, favicon_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING ` + bookmarkColumns + `;
	`
	b, err := scanBookmark(s.pool.QueryRow(ctx, query, nb.URL, nb.Title, nb.SnapshotKey, nb.FaviconKey, nb.CreatedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return bookmark.Bookmark{}, bookmark.ErrConflict
		}
		return bookmark.Bookmark{}, fmt.Errorf("failed to insert bookmark: %w", err)
	}
	return b, nil
}

// Update applies patch. updated_at always moves forward, even if the clock
// reading equals the stored value.
func (s *BookmarkStore) Update(
	ctx context.Context,
	id int64,
	patch bookmark.Patch,
	now time.Time,
) (bookmark.Bookmark, error) {
	query := `
		UPDATE bookmarks
		SET description = $2,
		    tags = $3,
		    archived = $4,
		    updated_at = GREATEST($5, updated_at + interval '1 microsecond')
		WHERE id = $1
		RETURNING ` + bookmarkColumns + `;
	`
	b, err := scanBookmark(s.pool.QueryRow(ctx, query, id, patch.Description, patch.Tags, patch.Archived, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bookmark.Bookmark{}, bookmark.ErrNotFound
		}
		return bookmark.Bookmark{}, fmt.Errorf("failed to update bookmark: %w", err)
	}
	return b, nil
}

// Delete removes the row.
func (s *BookmarkStore) Delete(ctx context.Context, id int64) error {
	res, err := s.pool.Exec(ctx, `DELETE FROM bookmarks WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	if res.RowsAffected() == 0 {
		return bookmark.ErrNotFound
	}
	return nil
}

func scanBookmark(row pgx.Row) (bookmark.Bookmark, error) {
	var b bookmark.Bookmark
	err := row.Scan(
		&b.ID,
		&b.URL,
		&b.Title,
		&b.Description,
		&b.Tags,
		&b.SnapshotKey,
		&b.FaviconKey,
		&b.Archived,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, err
}

func archivedArg(f bookmark.ArchivedFilter) *bool {
	var v bool
	switch f {
	case bookmark.ArchivedInclude:
		return nil
	case bookmark.ArchivedOnly:
		v = true
	}
	return &v
}

// likePattern builds an ILIKE pattern, escaping the LIKE wildcards.
func likePattern(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}
	q = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
	return "%" + q + "%"
}
