package capture

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/linkvault/internal/bookmark"
)

// Dependencies wires a Pipeline.
type Dependencies struct {
	// Fetcher serves title and favicon requests.
	Fetcher bookmark.Fetcher
	// SnapshotFetcher produces snapshot HTML; nil reuses Fetcher.
	SnapshotFetcher bookmark.Fetcher
	Blobs           bookmark.BlobStore
	IDs             bookmark.IDGenerator
	Clock           bookmark.Clock
	// Cache is optional.
	Cache    HostCache
	CacheTTL time.Duration
	// Timeout bounds every outbound fetch; zero leaves it to the fetcher.
	Timeout time.Duration
	// SnapshotTimeout bounds SnapshotFetcher calls; zero falls back to Timeout.
	SnapshotTimeout time.Duration
	Logger          *zap.Logger
}

// Pipeline implements bookmark.Capturer.
type Pipeline struct {
	titles   *TitleExtractor
	archiver *Archiver
	favicons *FaviconResolver
}

// New validates deps and builds a Pipeline.
func New(deps Dependencies) (*Pipeline, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("fetcher is required")
	case deps.Blobs == nil:
		return nil, fmt.Errorf("blob store is required")
	case deps.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	fetcher := withTimeout(deps.Fetcher, deps.Timeout)
	snapshots := fetcher
	if deps.SnapshotFetcher != nil {
		timeout := deps.SnapshotTimeout
		if timeout <= 0 {
			timeout = deps.Timeout
		}
		snapshots = withTimeout(deps.SnapshotFetcher, timeout)
	}

	return &Pipeline{
		titles:   NewTitleExtractor(fetcher, logger),
		archiver: NewArchiver(snapshots, deps.Blobs, deps.IDs, deps.Clock, logger),
		favicons: NewFaviconResolver(fetcher, deps.Blobs, deps.Clock, deps.Cache, deps.CacheTTL, logger),
	}, nil
}

// Capture runs the three steps concurrently and collects their results.
func (p *Pipeline) Capture(ctx context.Context, pageURL string) bookmark.Capture {
	var (
		g      errgroup.Group
		result bookmark.Capture
	)
	g.Go(func() error {
		result.Title = p.titles.TitleOrURL(ctx, pageURL)
		return nil
	})
	g.Go(func() error {
		if key, ok := p.archiver.Archive(ctx, pageURL); ok {
			result.SnapshotKey = &key
		}
		return nil
	})
	g.Go(func() error {
		if key, ok := p.favicons.Resolve(ctx, pageURL); ok {
			result.FaviconKey = &key
		}
		return nil
	})
	_ = g.Wait()
	return result
}

type timedFetcher struct {
	next    bookmark.Fetcher
	timeout time.Duration
}

func withTimeout(f bookmark.Fetcher, timeout time.Duration) bookmark.Fetcher {
	if timeout <= 0 {
		return f
	}
	return timedFetcher{next: f, timeout: timeout}
}

func (t timedFetcher) Fetch(ctx context.Context, request bookmark.FetchRequest) (bookmark.FetchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Fetch(ctx, request)
}
