package capture

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkvault/internal/bookmark"
	"github.com/JakeFAU/linkvault/internal/metrics"
)

// SnapshotContentType is the content type snapshots are stored with.
const SnapshotContentType = "text/html"

const snapshotTimeLayout = "2006-01-02T15:04:05.000Z"

// SnapshotKey names the blob for a snapshot taken at t.
func SnapshotKey(t time.Time, id string) string {
	return "snapshots/" + t.UTC().Format(snapshotTimeLayout) + "-" + id + ".html"
}

// Archiver stores the raw HTML of a page.
type Archiver struct {
	fetcher bookmark.Fetcher
	blobs   bookmark.BlobStore
	ids     bookmark.IDGenerator
	clock   bookmark.Clock
	logger  *zap.Logger
}

// NewArchiver builds an Archiver.
func NewArchiver(
	fetcher bookmark.Fetcher,
	blobs bookmark.BlobStore,
	ids bookmark.IDGenerator,
	clock bookmark.Clock,
	logger *zap.Logger,
) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{fetcher: fetcher, blobs: blobs, ids: ids, clock: clock, logger: logger}
}

// Archive fetches pageURL and writes the body to the blob store. ok is
// false when the fetch or the write failed.
func (a *Archiver) Archive(ctx context.Context, pageURL string) (string, bool) {
	key, err := a.archive(ctx, pageURL)
	if err != nil {
		a.logger.Debug("snapshot skipped",
			zap.String("site", metrics.SanitizeSite(pageURL)),
			zap.Error(err),
		)
		metrics.ObserveCapture("snapshot", metrics.OutcomeFailure)
		return "", false
	}
	metrics.ObserveCapture("snapshot", metrics.OutcomeSuccess)
	return key, true
}

func (a *Archiver) archive(ctx context.Context, pageURL string) (string, error) {
	resp, err := a.fetcher.Fetch(ctx, bookmark.FetchRequest{URL: pageURL, Method: http.MethodGet})
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	if !resp.OK() {
		return "", fmt.Errorf("fetch page: unexpected status %d", resp.StatusCode)
	}
	id, err := a.ids.NewID()
	if err != nil {
		return "", err
	}
	key := SnapshotKey(a.clock.Now(), id)
	if _, err := a.blobs.PutObject(ctx, key, SnapshotContentType, resp.Body); err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	return key, nil
}
