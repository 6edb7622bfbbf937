package bookmark

import (
	"context"
	"time"
)

// Repository persists bookmark rows.
type Repository interface {
	// List returns bookmarks newest first, filtered by opts.
	List(ctx context.Context, opts ListOptions) ([]Bookmark, error)
	// Get returns one bookmark or ErrNotFound.
	Get(ctx context.Context, id int64) (Bookmark, error)
	// ExistsByURL reports whether a row already carries url.
	ExistsByURL(ctx context.Context, url string) (bool, error)
	// Insert stores a new row. Duplicate URLs yield ErrConflict.
	Insert(ctx context.Context, nb NewBookmark) (Bookmark, error)
	// Update applies patch and sets updated_at to now, or returns ErrNotFound.
	Update(ctx context.Context, id int64, patch Patch, now time.Time) (Bookmark, error)
	// Delete removes the row or returns ErrNotFound.
	Delete(ctx context.Context, id int64) error
}

// BlobStore persists captured artifacts.
type BlobStore interface {
	// PutObject writes data under key and returns a backend-specific URI.
	PutObject(ctx context.Context, key string, contentType string, data []byte) (string, error)
	// GetObject reads an object or returns ErrBlobNotFound.
	GetObject(ctx context.Context, key string) (Object, error)
	// DeleteObject removes an object. Missing objects are not an error.
	DeleteObject(ctx context.Context, key string) error
}

// Fetcher performs outbound HTTP requests for the capture pipeline.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Capturer runs the metadata pipeline. It never fails; degraded results are
// expressed through the Capture fields.
type Capturer interface {
	Capture(ctx context.Context, url string) Capture
}

// Publisher pushes lifecycle events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces random identifiers for blob keys.
type IDGenerator interface {
	NewID() (string, error)
}
