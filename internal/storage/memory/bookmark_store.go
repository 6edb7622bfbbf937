package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/linkvault/internal/bookmark"
)

// BookmarkStore is a mutex-guarded bookmark repository. The URL index is
// checked and written under the same lock, so concurrent inserts of one URL
// cannot both succeed.
type BookmarkStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]bookmark.Bookmark
	byURL  map[string]int64
}

// NewBookmarkStore constructs an empty BookmarkStore.
func NewBookmarkStore() *BookmarkStore {
	return &BookmarkStore{
		rows:  make(map[int64]bookmark.Bookmark),
		byURL: make(map[string]int64),
	}
}

// List returns matching rows, newest first.
func (s *BookmarkStore) List(_ context.Context, opts bookmark.ListOptions) ([]bookmark.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]bookmark.Bookmark, 0, len(s.rows))
	for _, b := range s.rows {
		if opts.Matches(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Get fetches a row by id.
func (s *BookmarkStore) Get(_ context.Context, id int64) (bookmark.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.rows[id]
	if !ok {
		return bookmark.Bookmark{}, bookmark.ErrNotFound
	}
	return b, nil
}

// ExistsByURL reports whether url is already stored.
func (s *BookmarkStore) ExistsByURL(_ context.Context, url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byURL[url]
	return ok, nil
}

// Insert assigns the next id and stores the row.
func (s *BookmarkStore) Insert(_ context.Context, nb bookmark.NewBookmark) (bookmark.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byURL[nb.URL]; dup {
		return bookmark.Bookmark{}, bookmark.ErrConflict
	}
	s.nextID++
	b := bookmark.Bookmark{
		ID:          s.nextID,
		URL:         nb.URL,
		Title:       nb.Title,
		SnapshotKey: nb.SnapshotKey,
		FaviconKey:  nb.FaviconKey,
		CreatedAt:   nb.CreatedAt,
		UpdatedAt:   nb.CreatedAt,
	}
	s.rows[b.ID] = b
	s.byURL[b.URL] = b.ID
	return b, nil
}

// Update applies patch to an existing row.
func (s *BookmarkStore) Update(
	_ context.Context,
	id int64,
	patch bookmark.Patch,
	now time.Time,
) (bookmark.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[id]
	if !ok {
		return bookmark.Bookmark{}, bookmark.ErrNotFound
	}
	b.Description = patch.Description
	b.Tags = patch.Tags
	b.Archived = patch.Archived
	if !now.After(b.UpdatedAt) {
		now = b.UpdatedAt.Add(time.Microsecond)
	}
	b.UpdatedAt = now
	s.rows[id] = b
	return b, nil
}

// Delete removes a row. Ids are never handed out again.
func (s *BookmarkStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[id]
	if !ok {
		return bookmark.ErrNotFound
	}
	delete(s.rows, id)
	delete(s.byURL, b.URL)
	return nil
}
