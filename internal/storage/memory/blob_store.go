// Package memory keeps bookmarks and artifacts in process memory for
// development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/linkvault/internal/bookmark"
)

// BlobStore stores artifacts in-memory and returns pseudo URIs.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string]bookmark.Object
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string]bookmark.Object)}
}

// PutObject persists a copy of data and returns a memory:// URI.
func (s *BlobStore) PutObject(_ context.Context, key string, contentType string, data []byte) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = bookmark.Object{
		Data:        append([]byte(nil), data...),
		ContentType: contentType,
	}
	return fmt.Sprintf("memory://%s", key), nil
}

// GetObject returns a copy of the stored object.
func (s *BlobStore) GetObject(_ context.Context, key string) (bookmark.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return bookmark.Object{}, bookmark.ErrBlobNotFound
	}
	obj.Data = append([]byte(nil), obj.Data...)
	return obj, nil
}

// DeleteObject drops key if present.
func (s *BlobStore) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Keys lists the stored keys.
func (s *BlobStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}
