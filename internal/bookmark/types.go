package bookmark

import (
	"net/http"
	"strings"
	"time"
)

// Bookmark is the single persisted entity.
type Bookmark struct {
	ID          int64     `json:"id"`
	URL         string    `json:"url"`
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Tags        *string   `json:"tags"`
	SnapshotKey *string   `json:"snapshotKey"`
	FaviconKey  *string   `json:"faviconKey"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewBookmark carries the values written by a create. CreatedAt doubles as
// the initial UpdatedAt.
type NewBookmark struct {
	URL         string
	Title       *string
	SnapshotKey *string
	FaviconKey  *string
	CreatedAt   time.Time
}

// Patch is the user-editable subset of a bookmark.
type Patch struct {
	Description *string
	Tags        *string
	Archived    bool
}

// ArchivedFilter selects how archived rows take part in a listing.
type ArchivedFilter int

const (
	// ArchivedExclude hides archived bookmarks (the default).
	ArchivedExclude ArchivedFilter = iota
	// ArchivedInclude lists archived and active bookmarks together.
	ArchivedInclude
	// ArchivedOnly lists archived bookmarks only.
	ArchivedOnly
)

// ParseArchivedFilter maps the query parameter value onto a filter.
func ParseArchivedFilter(raw string) (ArchivedFilter, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "exclude", "false":
		return ArchivedExclude, true
	case "include", "all":
		return ArchivedInclude, true
	case "only", "true":
		return ArchivedOnly, true
	default:
		return ArchivedExclude, false
	}
}

// ListOptions narrows a listing.
type ListOptions struct {
	// Query is matched case-insensitively against title, description, tags and url.
	Query    string
	Archived ArchivedFilter
}

// Matches reports whether b passes the options. Repositories without a query
// language use it directly.
func (o ListOptions) Matches(b Bookmark) bool {
	switch o.Archived {
	case ArchivedExclude:
		if b.Archived {
			return false
		}
	case ArchivedOnly:
		if !b.Archived {
			return false
		}
	}
	q := strings.ToLower(strings.TrimSpace(o.Query))
	if q == "" {
		return true
	}
	for _, field := range []*string{b.Title, b.Description, b.Tags, &b.URL} {
		if field != nil && strings.Contains(strings.ToLower(*field), q) {
			return true
		}
	}
	return false
}

// Capture is the outcome of the metadata pipeline for one URL. Title always
// holds a value (the URL when extraction failed); the keys are nil when the
// corresponding artifact could not be stored.
type Capture struct {
	Title       string
	SnapshotKey *string
	FaviconKey  *string
}

// Object is a stored blob and its content type.
type Object struct {
	Data        []byte
	ContentType string
}

// FetchRequest describes a single outbound request made by the capture pipeline.
type FetchRequest struct {
	URL     string
	Method  string
	Headers http.Header
}

// FetchResponse is the result of a fetch. Non-2xx responses are returned as
// values, not errors.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// OK reports whether the response carries a 2xx status.
func (r FetchResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Event is published after a bookmark changes.
type Event struct {
	Type     string    `json:"type"`
	Bookmark Bookmark  `json:"bookmark"`
	At       time.Time `json:"at"`
}

// Event types.
const (
	EventCreated = "bookmark.created"
	EventUpdated = "bookmark.updated"
	EventDeleted = "bookmark.deleted"
)
