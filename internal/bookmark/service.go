package bookmark

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkvault/internal/metrics"
)

// Dependencies bundles the collaborators of a Service.
type Dependencies struct {
	Repo      Repository
	Blobs     BlobStore
	Capturer  Capturer
	Clock     Clock
	Publisher Publisher
	// Topic receives lifecycle events when Publisher is set.
	Topic  string
	Logger *zap.Logger
}

// Service implements the bookmark operations exposed over HTTP.
type Service struct {
	repo      Repository
	blobs     BlobStore
	capturer  Capturer
	clock     Clock
	publisher Publisher
	topic     string
	logger    *zap.Logger
}

// NewService validates deps and returns a Service.
func NewService(deps Dependencies) (*Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("repository is required")
	case deps.Blobs == nil:
		return nil, fmt.Errorf("blob store is required")
	case deps.Capturer == nil:
		return nil, fmt.Errorf("capturer is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      deps.Repo,
		blobs:     deps.Blobs,
		capturer:  deps.Capturer,
		clock:     deps.Clock,
		publisher: deps.Publisher,
		topic:     deps.Topic,
		logger:    logger,
	}, nil
}

// List returns bookmarks newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Bookmark, error) {
	items, err := s.repo.List(ctx, opts)
	if err != nil {
		metrics.ObserveBookmarkOp("list", "error")
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	metrics.ObserveBookmarkOp("list", "ok")
	return items, nil
}

// Get returns a single bookmark.
func (s *Service) Get(ctx context.Context, id int64) (Bookmark, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return Bookmark{}, fmt.Errorf("get bookmark %d: %w", id, err)
	}
	return b, nil
}

// Create bookmarks rawURL. The uniqueness check runs before any capture
// fetch; the insert re-checks it so a concurrent duplicate still yields
// ErrConflict.
func (s *Service) Create(ctx context.Context, rawURL string) (Bookmark, error) {
	target := strings.TrimSpace(rawURL)
	if target == "" {
		return Bookmark{}, ErrInvalidURL
	}

	exists, err := s.repo.ExistsByURL(ctx, target)
	if err != nil {
		metrics.ObserveBookmarkOp("create", "error")
		return Bookmark{}, fmt.Errorf("check existing url: %w", err)
	}
	if exists {
		metrics.ObserveBookmarkOp("create", "conflict")
		return Bookmark{}, ErrConflict
	}

	captured := s.capturer.Capture(ctx, target)
	if err := ctx.Err(); err != nil {
		// Nothing is stored for a canceled request.
		s.removeArtifacts(context.WithoutCancel(ctx), captured.SnapshotKey, captured.FaviconKey)
		metrics.ObserveBookmarkOp("create", "canceled")
		return Bookmark{}, fmt.Errorf("capture %s: %w", metrics.SanitizeSite(target), err)
	}
	title := captured.Title
	if title == "" {
		title = target
	}

	created, err := s.repo.Insert(ctx, NewBookmark{
		URL:         target,
		Title:       &title,
		SnapshotKey: captured.SnapshotKey,
		FaviconKey:  captured.FaviconKey,
		CreatedAt:   s.clock.Now(),
	})
	if err != nil {
		// The row never landed, so the artifacts written for it are orphans.
		s.removeArtifacts(context.WithoutCancel(ctx), captured.SnapshotKey, captured.FaviconKey)
		if errors.Is(err, ErrConflict) {
			metrics.ObserveBookmarkOp("create", "conflict")
			return Bookmark{}, ErrConflict
		}
		metrics.ObserveBookmarkOp("create", "error")
		return Bookmark{}, fmt.Errorf("insert bookmark: %w", err)
	}

	metrics.ObserveBookmarkOp("create", "ok")
	s.logger.Info("bookmark created",
		zap.Int64("id", created.ID),
		zap.String("site", metrics.SanitizeSite(created.URL)),
		zap.Bool("snapshot", created.SnapshotKey != nil),
		zap.Bool("favicon", created.FaviconKey != nil),
	)
	s.publish(ctx, EventCreated, created)
	return created, nil
}

// Update applies the user-editable fields and refreshes updatedAt.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (Bookmark, error) {
	updated, err := s.repo.Update(ctx, id, patch, s.clock.Now())
	if err != nil {
		result := "error"
		if errors.Is(err, ErrNotFound) {
			result = "not_found"
		}
		metrics.ObserveBookmarkOp("update", result)
		return Bookmark{}, fmt.Errorf("update bookmark %d: %w", id, err)
	}
	metrics.ObserveBookmarkOp("update", "ok")
	s.publish(ctx, EventUpdated, updated)
	return updated, nil
}

// Delete removes the stored artifacts best-effort, then the row. Unknown ids
// are a no-op.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		metrics.ObserveBookmarkOp("delete", "not_found")
		return nil
	}
	if err != nil {
		metrics.ObserveBookmarkOp("delete", "error")
		return fmt.Errorf("load bookmark %d: %w", id, err)
	}

	s.removeArtifacts(ctx, existing.SnapshotKey, existing.FaviconKey)

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.ObserveBookmarkOp("delete", "not_found")
			return nil
		}
		metrics.ObserveBookmarkOp("delete", "error")
		return fmt.Errorf("delete bookmark %d: %w", id, err)
	}
	metrics.ObserveBookmarkOp("delete", "ok")
	s.publish(ctx, EventDeleted, existing)
	return nil
}

// Snapshot returns the archived HTML for id.
func (s *Service) Snapshot(ctx context.Context, id int64) (Object, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return Object{}, fmt.Errorf("get bookmark %d: %w", id, err)
	}
	return s.artifact(ctx, b.SnapshotKey)
}

// Favicon returns the stored icon for id.
func (s *Service) Favicon(ctx context.Context, id int64) (Object, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return Object{}, fmt.Errorf("get bookmark %d: %w", id, err)
	}
	return s.artifact(ctx, b.FaviconKey)
}

func (s *Service) artifact(ctx context.Context, key *string) (Object, error) {
	if key == nil || *key == "" {
		return Object{}, ErrNotFound
	}
	obj, err := s.blobs.GetObject(ctx, *key)
	if errors.Is(err, ErrBlobNotFound) {
		return Object{}, fmt.Errorf("object %s: %w", *key, ErrNotFound)
	}
	if err != nil {
		return Object{}, fmt.Errorf("read object %s: %w", *key, err)
	}
	return obj, nil
}

func (s *Service) removeArtifacts(ctx context.Context, keys ...*string) {
	for _, key := range keys {
		if key == nil || *key == "" {
			continue
		}
		if err := s.blobs.DeleteObject(ctx, *key); err != nil {
			s.logger.Warn("delete artifact failed", zap.String("key", *key), zap.Error(err))
		}
	}
}

func (s *Service) publish(ctx context.Context, eventType string, b Bookmark) {
	if s.publisher == nil {
		return
	}
	event := Event{Type: eventType, Bookmark: b, At: s.clock.Now()}
	if _, err := s.publisher.Publish(ctx, s.topic, event); err != nil {
		s.logger.Warn("publish event failed", zap.String("type", eventType), zap.Int64("id", b.ID), zap.Error(err))
	}
}
