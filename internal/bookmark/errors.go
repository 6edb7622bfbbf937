package bookmark

import "errors"

var (
	// ErrConflict signals that a bookmark with the same URL already exists.
	ErrConflict = errors.New("url already bookmarked")
	// ErrNotFound signals that the requested bookmark (or its stored artifact) does not exist.
	ErrNotFound = errors.New("bookmark not found")
	// ErrInvalidURL is returned when a create request carries an empty URL.
	ErrInvalidURL = errors.New("url is required")
	// ErrBlobNotFound is returned by blob stores when no object exists under a key.
	ErrBlobNotFound = errors.New("blob not found")
)
