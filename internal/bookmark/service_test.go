package bookmark_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkvault/internal/bookmark"
	"github.com/JakeFAU/linkvault/internal/publisher/memory"
	memstore "github.com/JakeFAU/linkvault/internal/storage/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// fakeCapturer writes artifacts into blobs the way the real pipeline does.
type fakeCapturer struct {
	blobs    bookmark.BlobStore
	calls    int
	failPage bool
}

func (f *fakeCapturer) Capture(ctx context.Context, url string) bookmark.Capture {
	f.calls++
	if f.failPage {
		return bookmark.Capture{Title: url}
	}
	snap := "snapshots/test.html"
	icon := "favicons/example.com-1.png"
	_, _ = f.blobs.PutObject(ctx, snap, "text/html", []byte("<html><title>Example</title></html>"))
	_, _ = f.blobs.PutObject(ctx, icon, "image/png", []byte{0x89, 'P', 'N', 'G'})
	return bookmark.Capture{Title: "Example", SnapshotKey: &snap, FaviconKey: &icon}
}

type failingBlobs struct {
	*memstore.BlobStore
}

func (failingBlobs) DeleteObject(context.Context, string) error {
	return errors.New("bucket unavailable")
}

type errRepo struct {
	*memstore.BookmarkStore
	insertErr error
}

func (r errRepo) Insert(ctx context.Context, nb bookmark.NewBookmark) (bookmark.Bookmark, error) {
	if r.insertErr != nil {
		return bookmark.Bookmark{}, r.insertErr
	}
	return r.BookmarkStore.Insert(ctx, nb)
}

type harness struct {
	svc      *bookmark.Service
	repo     *memstore.BookmarkStore
	blobs    *memstore.BlobStore
	capturer *fakeCapturer
	events   *memory.Publisher
}

func newHarness(t *testing.T) harness {
	t.Helper()
	repo := memstore.NewBookmarkStore()
	blobs := memstore.NewBlobStore()
	capturer := &fakeCapturer{blobs: blobs}
	events := memory.New()
	svc, err := bookmark.NewService(bookmark.Dependencies{
		Repo:      repo,
		Blobs:     blobs,
		Capturer:  capturer,
		Clock:     &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		Publisher: events,
		Topic:     "bookmarks",
	})
	require.NoError(t, err)
	return harness{svc: svc, repo: repo, blobs: blobs, capturer: capturer, events: events}
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	t.Parallel()

	_, err := bookmark.NewService(bookmark.Dependencies{})
	require.Error(t, err)
}

func TestCreateThenList(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	created, err := h.svc.Create(ctx, "  https://example.com  ")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", created.URL)
	require.NotNil(t, created.Title)
	assert.Equal(t, "Example", *created.Title)
	require.NotNil(t, created.SnapshotKey)
	require.NotNil(t, created.FaviconKey)

	items, err := h.svc.List(ctx, bookmark.ListOptions{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, created.ID, items[0].ID)

	msgs := h.events.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "bookmarks", msgs[0].Topic)
	event, ok := msgs[0].Payload.(bookmark.Event)
	require.True(t, ok)
	assert.Equal(t, bookmark.EventCreated, event.Type)
}

func TestCreateDuplicateSkipsCapture(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Create(ctx, "https://example.com")
	require.NoError(t, err)
	_, err = h.svc.Create(ctx, "https://example.com")
	require.ErrorIs(t, err, bookmark.ErrConflict)
	assert.Equal(t, 1, h.capturer.calls, "duplicate must be rejected before any fetch")

	items, err := h.svc.List(ctx, bookmark.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCreateRejectsEmptyURL(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.svc.Create(context.Background(), "   ")
	require.ErrorIs(t, err, bookmark.ErrInvalidURL)
	assert.Zero(t, h.capturer.calls)
}

func TestCreateWithFailedCaptureFallsBackToURL(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.capturer.failPage = true

	created, err := h.svc.Create(context.Background(), "https://unreachable.invalid")
	require.NoError(t, err)
	require.NotNil(t, created.Title)
	assert.Equal(t, "https://unreachable.invalid", *created.Title)
	assert.Nil(t, created.SnapshotKey)
	assert.Nil(t, created.FaviconKey)
}

func TestCreateRaceConflictCleansUpArtifacts(t *testing.T) {
	t.Parallel()

	repo := memstore.NewBookmarkStore()
	blobs := memstore.NewBlobStore()
	svc, err := bookmark.NewService(bookmark.Dependencies{
		Repo:     errRepo{BookmarkStore: repo, insertErr: bookmark.ErrConflict},
		Blobs:    blobs,
		Capturer: &fakeCapturer{blobs: blobs},
		Clock:    &fakeClock{},
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "https://example.com")
	require.ErrorIs(t, err, bookmark.ErrConflict)
	assert.Empty(t, blobs.Keys(), "artifacts of the losing insert are removed")
}

func TestCreateStorageFailureIsWrapped(t *testing.T) {
	t.Parallel()

	repo := memstore.NewBookmarkStore()
	blobs := memstore.NewBlobStore()
	boom := errors.New("connection reset")
	svc, err := bookmark.NewService(bookmark.Dependencies{
		Repo:     errRepo{BookmarkStore: repo, insertErr: boom},
		Blobs:    blobs,
		Capturer: &fakeCapturer{blobs: blobs},
		Clock:    &fakeClock{},
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "https://example.com")
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, bookmark.ErrConflict)
}

func TestUpdateRefreshesUpdatedAt(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	created, err := h.svc.Create(ctx, "https://example.com")
	require.NoError(t, err)

	d, tags := "d", "t"
	updated, err := h.svc.Update(ctx, created.ID, bookmark.Patch{Description: &d, Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, "d", *updated.Description)
	assert.Equal(t, "t", *updated.Tags)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	_, err = h.svc.Update(ctx, 404, bookmark.Patch{})
	require.ErrorIs(t, err, bookmark.ErrNotFound)
}

func TestDeleteRemovesRowAndArtifacts(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	created, err := h.svc.Create(ctx, "https://example.com")
	require.NoError(t, err)

	snap, err := h.svc.Snapshot(ctx, created.ID)
	require.NoError(t, err)
	assert.Contains(t, string(snap.Data), "<title>Example</title>")

	require.NoError(t, h.svc.Delete(ctx, created.ID))
	assert.Empty(t, h.blobs.Keys())

	items, err := h.svc.List(ctx, bookmark.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = h.svc.Snapshot(ctx, created.ID)
	require.ErrorIs(t, err, bookmark.ErrNotFound)
	require.NoError(t, h.svc.Delete(ctx, created.ID), "deleting an unknown id is a no-op")
}

func TestDeleteToleratesBlobFailures(t *testing.T) {
	t.Parallel()

	repo := memstore.NewBookmarkStore()
	blobs := failingBlobs{BlobStore: memstore.NewBlobStore()}
	svc, err := bookmark.NewService(bookmark.Dependencies{
		Repo:     repo,
		Blobs:    blobs,
		Capturer: &fakeCapturer{blobs: blobs},
		Clock:    &fakeClock{},
	})
	require.NoError(t, err)
	ctx := context.Background()

	created, err := svc.Create(ctx, "https://example.com")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = repo.Get(ctx, created.ID)
	require.ErrorIs(t, err, bookmark.ErrNotFound)
}

func TestArtifactsMissing(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.capturer.failPage = true
	ctx := context.Background()
	created, err := h.svc.Create(ctx, "https://example.com")
	require.NoError(t, err)

	_, err = h.svc.Snapshot(ctx, created.ID)
	require.ErrorIs(t, err, bookmark.ErrNotFound)
	_, err = h.svc.Favicon(ctx, created.ID)
	require.ErrorIs(t, err, bookmark.ErrNotFound)
	_, err = h.svc.Favicon(ctx, 999)
	require.ErrorIs(t, err, bookmark.ErrNotFound)
}

func TestFaviconServedFromBlobStore(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	created, err := h.svc.Create(ctx, "https://example.com")
	require.NoError(t, err)

	icon, err := h.svc.Favicon(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/png", icon.ContentType)

	require.NoError(t, h.blobs.DeleteObject(ctx, *created.FaviconKey))
	_, err = h.svc.Favicon(ctx, created.ID)
	require.ErrorIs(t, err, bookmark.ErrNotFound)
}

func TestListOptionsMatches(t *testing.T) {
	t.Parallel()

	title := "Hello World"
	b := bookmark.Bookmark{URL: "https://example.com", Title: &title}
	assert.True(t, bookmark.ListOptions{Query: "hello"}.Matches(b))
	assert.True(t, bookmark.ListOptions{Query: "EXAMPLE"}.Matches(b))
	assert.False(t, bookmark.ListOptions{Query: "missing"}.Matches(b))
	assert.False(t, bookmark.ListOptions{Archived: bookmark.ArchivedOnly}.Matches(b))

	b.Archived = true
	assert.False(t, bookmark.ListOptions{}.Matches(b))
	assert.True(t, bookmark.ListOptions{Archived: bookmark.ArchivedInclude}.Matches(b))
}

func TestParseArchivedFilter(t *testing.T) {
	t.Parallel()

	cases := map[string]bookmark.ArchivedFilter{
		"":        bookmark.ArchivedExclude,
		"include": bookmark.ArchivedInclude,
		"ONLY":    bookmark.ArchivedOnly,
	}
	for raw, want := range cases {
		got, ok := bookmark.ParseArchivedFilter(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := bookmark.ParseArchivedFilter("sometimes")
	assert.False(t, ok)
}

type blockingCapturer struct {
	blobs bookmark.BlobStore
}

func (c blockingCapturer) Capture(ctx context.Context, _ string) bookmark.Capture {
	<-ctx.Done()
	snap := "snapshots/late.html"
	_, _ = c.blobs.PutObject(context.WithoutCancel(ctx), snap, "text/html", []byte("<html></html>"))
	return bookmark.Capture{Title: "Late", SnapshotKey: &snap}
}

func TestCreateCanceledDuringCaptureStoresNothing(t *testing.T) {
	t.Parallel()

	repo := memstore.NewBookmarkStore()
	blobs := memstore.NewBlobStore()
	events := memory.New()
	svc, err := bookmark.NewService(bookmark.Dependencies{
		Repo:      repo,
		Blobs:     blobs,
		Capturer:  blockingCapturer{blobs: blobs},
		Clock:     &fakeClock{},
		Publisher: events,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.Create(ctx, "https://slow.example")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	exists, err := repo.ExistsByURL(context.Background(), "https://slow.example")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, blobs.Keys())
	assert.Empty(t, events.Messages())
}
