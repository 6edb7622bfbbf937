package capture

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkvault/internal/bookmark"
	"github.com/JakeFAU/linkvault/internal/metrics"
)

// ErrNoTitle reports a page without a usable <title>.
var ErrNoTitle = errors.New("page has no title")

var titlePattern = regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)

// ParseTitle returns the trimmed text of the first <title> element.
// Entities are decoded; a title that trims to empty does not count.
func ParseTitle(body []byte) (string, bool) {
	match := titlePattern.FindSubmatch(body)
	if match == nil {
		return "", false
	}
	title := strings.TrimSpace(html.UnescapeString(string(match[1])))
	return title, title != ""
}

// TitleExtractor fetches a page and reads its title.
type TitleExtractor struct {
	fetcher bookmark.Fetcher
	logger  *zap.Logger
}

// NewTitleExtractor builds a TitleExtractor.
func NewTitleExtractor(fetcher bookmark.Fetcher, logger *zap.Logger) *TitleExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TitleExtractor{fetcher: fetcher, logger: logger}
}

// Extract returns the page title. Transport failures, non-2xx responses
// and pages without a title are returned as errors.
func (e *TitleExtractor) Extract(ctx context.Context, pageURL string) (string, error) {
	resp, err := e.fetcher.Fetch(ctx, bookmark.FetchRequest{URL: pageURL, Method: http.MethodGet})
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	if !resp.OK() {
		return "", fmt.Errorf("fetch page: unexpected status %d", resp.StatusCode)
	}
	title, ok := ParseTitle(resp.Body)
	if !ok {
		return "", ErrNoTitle
	}
	return title, nil
}

// TitleOrURL returns the extracted title, or pageURL when extraction fails.
func (e *TitleExtractor) TitleOrURL(ctx context.Context, pageURL string) string {
	title, err := e.Extract(ctx, pageURL)
	if err != nil {
		e.logger.Debug("title extraction fell back to url",
			zap.String("site", metrics.SanitizeSite(pageURL)),
			zap.Error(err),
		)
		metrics.ObserveCapture("title", metrics.OutcomeFallback)
		return pageURL
	}
	metrics.ObserveCapture("title", metrics.OutcomeSuccess)
	return title
}
