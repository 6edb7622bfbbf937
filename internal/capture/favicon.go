package capture

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkvault/internal/bookmark"
	"github.com/JakeFAU/linkvault/internal/metrics"
)

// ErrNoFavicon reports that discovery found no icon candidate.
var ErrNoFavicon = errors.New("no favicon candidate")

// DefaultFaviconContentType is stored when the icon response has none.
const DefaultFaviconContentType = "image/x-icon"

var iconLinkPattern = regexp.MustCompile(
	`(?i)<link[^>]+rel=["'](?:shortcut icon|icon|apple-touch-icon)["'][^>]+href=["']([^"']+)["']`,
)

var iconExtensions = map[string]string{
	"image/x-icon":             "ico",
	"image/vnd.microsoft.icon": "ico",
	"image/png":                "png",
	"image/jpeg":               "jpg",
	"image/jpg":                "jpg",
	"image/svg+xml":            "svg",
	"image/gif":                "gif",
}

// HostCache remembers which icon URL worked for a host.
type HostCache interface {
	Get(ctx context.Context, host string) (string, bool, error)
	Set(ctx context.Context, host, iconURL string, ttl time.Duration) error
	Forget(ctx context.Context, host string) error
}

// FindIconLink returns the href of the first icon <link> in body. Only
// tags that list rel before href are recognized.
func FindIconLink(body []byte) (string, bool) {
	match := iconLinkPattern.FindSubmatch(body)
	if match == nil {
		return "", false
	}
	return string(match[1]), true
}

// NormalizeIconHref turns href into an absolute URL relative to page.
func NormalizeIconHref(page *url.URL, href string) string {
	origin := page.Scheme + "://" + page.Host
	switch {
	case strings.HasPrefix(href, "//"):
		return page.Scheme + ":" + href
	case strings.HasPrefix(href, "/"):
		return origin + href
	case strings.HasPrefix(href, "http"):
		return href
	default:
		return origin + "/" + href
	}
}

// ExtensionFor maps an icon content type to a file extension, ignoring
// parameters. Unknown or missing types map to "ico".
func ExtensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	if ext, ok := iconExtensions[strings.ToLower(mediaType)]; ok {
		return ext
	}
	return "ico"
}

// FaviconResolver locates, downloads and stores a site's icon.
type FaviconResolver struct {
	fetcher  bookmark.Fetcher
	blobs    bookmark.BlobStore
	clock    bookmark.Clock
	cache    HostCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewFaviconResolver builds a FaviconResolver. cache may be nil.
func NewFaviconResolver(
	fetcher bookmark.Fetcher,
	blobs bookmark.BlobStore,
	clock bookmark.Clock,
	cache HostCache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *FaviconResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FaviconResolver{
		fetcher:  fetcher,
		blobs:    blobs,
		clock:    clock,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Resolve stores the icon for pageURL and returns its blob key. ok is false
// when no icon could be found or stored.
func (r *FaviconResolver) Resolve(ctx context.Context, pageURL string) (string, bool) {
	key, outcome, err := r.resolve(ctx, pageURL)
	metrics.ObserveCapture("favicon", outcome)
	if err != nil {
		r.logger.Debug("favicon skipped",
			zap.String("site", metrics.SanitizeSite(pageURL)),
			zap.Error(err),
		)
		return "", false
	}
	return key, true
}

func (r *FaviconResolver) resolve(ctx context.Context, pageURL string) (string, string, error) {
	page, err := url.Parse(pageURL)
	if err != nil || page.Host == "" || page.Scheme == "" {
		return "", metrics.OutcomeFailure, fmt.Errorf("unusable page url %q", pageURL)
	}

	if key, ok := r.fromCache(ctx, page); ok {
		return key, metrics.OutcomeSuccess, nil
	}

	iconURL, err := r.discover(ctx, page)
	if err != nil {
		return "", metrics.OutcomeFailure, err
	}
	key, err := r.store(ctx, page, iconURL)
	if err != nil {
		return "", metrics.OutcomeFailure, err
	}
	if r.cache != nil {
		if err := r.cache.Set(ctx, page.Host, iconURL, r.cacheTTL); err != nil {
			r.logger.Warn("favicon cache write failed", zap.String("host", page.Host), zap.Error(err))
		}
	}
	return key, metrics.OutcomeSuccess, nil
}

// fromCache tries the icon URL remembered for the host. A stale entry is
// dropped so discovery can replace it.
func (r *FaviconResolver) fromCache(ctx context.Context, page *url.URL) (string, bool) {
	if r.cache == nil {
		return "", false
	}
	iconURL, hit, err := r.cache.Get(ctx, page.Host)
	if err != nil {
		r.logger.Warn("favicon cache read failed", zap.String("host", page.Host), zap.Error(err))
		return "", false
	}
	if !hit {
		return "", false
	}
	key, err := r.store(ctx, page, iconURL)
	if err != nil {
		r.logger.Debug("cached favicon failed", zap.String("icon", iconURL), zap.Error(err))
		if err := r.cache.Forget(ctx, page.Host); err != nil {
			r.logger.Warn("favicon cache invalidation failed", zap.String("host", page.Host), zap.Error(err))
		}
		return "", false
	}
	return key, true
}

// discover probes /favicon.ico, then scans the page for an icon link.
func (r *FaviconResolver) discover(ctx context.Context, page *url.URL) (string, error) {
	probe := page.Scheme + "://" + page.Host + "/favicon.ico"
	resp, err := r.fetcher.Fetch(ctx, bookmark.FetchRequest{URL: probe, Method: http.MethodHead})
	if err == nil && resp.OK() {
		return probe, nil
	}

	resp, err = r.fetcher.Fetch(ctx, bookmark.FetchRequest{URL: page.String(), Method: http.MethodGet})
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	if !resp.OK() {
		return "", fmt.Errorf("%w: page status %d", ErrNoFavicon, resp.StatusCode)
	}
	href, ok := FindIconLink(resp.Body)
	if !ok {
		return "", ErrNoFavicon
	}
	return NormalizeIconHref(page, href), nil
}

func (r *FaviconResolver) store(ctx context.Context, page *url.URL, iconURL string) (string, error) {
	resp, err := r.fetcher.Fetch(ctx, bookmark.FetchRequest{URL: iconURL, Method: http.MethodGet})
	if err != nil {
		return "", fmt.Errorf("fetch icon: %w", err)
	}
	if !resp.OK() {
		return "", fmt.Errorf("fetch icon: unexpected status %d", resp.StatusCode)
	}
	if len(resp.Body) == 0 {
		return "", fmt.Errorf("fetch icon: empty body")
	}

	contentType := resp.Headers.Get("Content-Type")
	key := fmt.Sprintf("favicons/%s-%d.%s", page.Hostname(), r.clock.Now().UnixMilli(), ExtensionFor(contentType))
	if contentType == "" {
		contentType = DefaultFaviconContentType
	}
	if _, err := r.blobs.PutObject(ctx, key, contentType, resp.Body); err != nil {
		return "", fmt.Errorf("store icon: %w", err)
	}
	return key, nil
}
