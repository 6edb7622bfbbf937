package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkvault/internal/bookmark"
)

var columns = []string{
	"id", "url", "title", "description", "tags", "snapshot_key", "favicon_key", "archived", "created_at", "updated_at",
}

func strPtr(s string) *string { return &s }

func newMockStore(t *testing.T) (*BookmarkStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewBookmarkStoreWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func TestNewBookmarkStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewBookmarkStore(context.Background(), Config{}, nil)
	require.Error(t, err)
	_, err = NewBookmarkStoreWithPool(nil)
	require.Error(t, err)
}

func TestListAppliesFilters(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()
	archived := false

	mock.ExpectQuery("SELECT id, url, title").
		WithArgs(&archived, "%go\\_lang%").
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow(int64(2), "https://go.dev", strPtr("Go"), strPtr(""), strPtr("go_lang"), strPtr("snapshots/a.html"), strPtr("favicons/go.dev-1.ico"), false, now, now).
			AddRow(int64(1), "https://golang.org", strPtr("Go"), strPtr("d"), strPtr("go_lang"), strPtr("snapshots/b.html"), strPtr("favicons/golang.org-1.ico"), false, now.Add(-time.Hour), now))

	items, err := store.List(context.Background(), bookmark.ListOptions{Query: " go_lang "})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(2), items[0].ID)
	assert.Equal(t, "Go", *items[0].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListIncludeArchivedPassesNull(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM bookmarks").
		WithArgs((*bool)(nil), "").
		WillReturnRows(pgxmock.NewRows(columns))

	items, err := store.List(context.Background(), bookmark.ListOptions{Archived: bookmark.ArchivedInclude})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items, "empty listings encode as []")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM bookmarks").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("conn refused"))

	_, err := store.List(context.Background(), bookmark.ListOptions{})
	require.ErrorContains(t, err, "conn refused")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExistsByURL(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("https://example.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := store.ExistsByURL(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReturnsRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()
	nb := bookmark.NewBookmark{
		URL:         "https://example.com",
		Title:       strPtr("Example"),
		SnapshotKey: strPtr("snapshots/x.html"),
		FaviconKey:  strPtr("favicons/example.com-1.png"),
		CreatedAt:   now,
	}

	mock.ExpectQuery("INSERT INTO bookmarks").
		WithArgs(nb.URL, nb.Title, nb.SnapshotKey, nb.FaviconKey, nb.CreatedAt).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow(int64(1), nb.URL, nb.Title, strPtr(""), strPtr(""), nb.SnapshotKey, nb.FaviconKey, false, now, now))

	b, err := store.Insert(context.Background(), nb)
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.ID)
	assert.Equal(t, "snapshots/x.html", *b.SnapshotKey)
	assert.Equal(t, now, b.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertUniqueViolationIsConflict(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	arg := pgxmock.AnyArg()
	mock.ExpectQuery("INSERT INTO bookmarks").
		WithArgs(arg, arg, arg, arg, arg).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "bookmarks_url_key"})

	_, err := store.Insert(context.Background(), bookmark.NewBookmark{URL: "https://example.com", CreatedAt: time.Now()})
	require.ErrorIs(t, err, bookmark.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertOtherErrorIsWrapped(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	arg := pgxmock.AnyArg()
	mock.ExpectQuery("INSERT INTO bookmarks").
		WithArgs(arg, arg, arg, arg, arg).
		WillReturnError(&pgconn.PgError{Code: "23502"})

	_, err := store.Insert(context.Background(), bookmark.NewBookmark{URL: "https://example.com", CreatedAt: time.Now()})
	require.Error(t, err)
	assert.NotErrorIs(t, err, bookmark.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	created := time.Unix(1700000000, 0).UTC()
	now := created.Add(time.Minute)
	patch := bookmark.Patch{Description: strPtr("d"), Tags: strPtr("t"), Archived: true}

	mock.ExpectQuery("UPDATE bookmarks").
		WithArgs(int64(5), patch.Description, patch.Tags, true, now).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow(int64(5), "https://example.com", strPtr("Example"), patch.Description, patch.Tags, strPtr("s"), strPtr("f"), true, created, now))

	b, err := store.Update(context.Background(), 5, patch, now)
	require.NoError(t, err)
	assert.True(t, b.Archived)
	assert.Equal(t, "d", *b.Description)
	assert.True(t, b.UpdatedAt.After(b.CreatedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	arg := pgxmock.AnyArg()
	mock.ExpectQuery("UPDATE bookmarks").
		WithArgs(int64(9), arg, arg, arg, arg).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Update(context.Background(), 9, bookmark.Patch{}, time.Now())
	require.ErrorIs(t, err, bookmark.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("WHERE id =").WithArgs(int64(3)).WillReturnError(pgx.ErrNoRows)

	_, err := store.Get(context.Background(), 3)
	require.ErrorIs(t, err, bookmark.ErrNotFound)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM bookmarks").WithArgs(int64(1)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM bookmarks").WithArgs(int64(2)).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, store.Delete(context.Background(), 1))
	require.ErrorIs(t, store.Delete(context.Background(), 2), bookmark.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("down"))
	require.NoError(t, store.Ping(context.Background()))
	require.Error(t, store.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLikePattern(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", likePattern("  "))
	assert.Equal(t, "%50\\%%", likePattern("50%"))
	assert.Equal(t, "%a\\\\b%", likePattern(`a\b`))
}

func TestMigrationsEmbedded(t *testing.T) {
	t.Parallel()

	data, err := migrationsFS.ReadFile("migrations/00001_create_bookmarks.sql")
	require.NoError(t, err)
	sql := string(data)
	assert.Contains(t, sql, "-- +goose Up")
	assert.Contains(t, sql, "UNIQUE (url)")
	assert.Contains(t, sql, "idx_bookmarks_created_at")
	assert.Contains(t, sql, "idx_bookmarks_tags")
}
