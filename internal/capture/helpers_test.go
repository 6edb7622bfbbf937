package capture

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/JakeFAU/linkvault/internal/bookmark"
)

type stubResponse struct {
	status      int
	body        string
	contentType string
	err         error
}

// stubFetcher answers by "METHOD url"; unknown requests fail like a dead host.
type stubFetcher struct {
	mu        sync.Mutex
	responses map[string]stubResponse
	calls     []string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{responses: map[string]stubResponse{}}
}

func (f *stubFetcher) on(method, url string, resp stubResponse) *stubFetcher {
	f.responses[method+" "+url] = resp
	return f
}

func (f *stubFetcher) Fetch(_ context.Context, req bookmark.FetchRequest) (bookmark.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := req.Method + " " + req.URL
	f.calls = append(f.calls, key)
	resp, ok := f.responses[key]
	if !ok {
		return bookmark.FetchResponse{}, errors.New("dial tcp: no such host")
	}
	if resp.err != nil {
		return bookmark.FetchResponse{}, resp.err
	}
	headers := http.Header{}
	if resp.contentType != "" {
		headers.Set("Content-Type", resp.contentType)
	}
	return bookmark.FetchResponse{URL: req.URL, StatusCode: resp.status, Headers: headers, Body: []byte(resp.body)}, nil
}

func (f *stubFetcher) called(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == key {
			return true
		}
	}
	return false
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fixedIDs struct{ id string }

func (g fixedIDs) NewID() (string, error) { return g.id, nil }

type mapCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMapCache() *mapCache { return &mapCache{entries: map[string]string{}} }

func (c *mapCache) Get(_ context.Context, host string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[host]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, host, iconURL string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[host] = iconURL
	return nil
}

func (c *mapCache) Forget(_ context.Context, host string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, host)
	return nil
}
