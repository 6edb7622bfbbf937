// Package redis caches resolved favicon URLs per host in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefixFavicon is the prefix for cached favicon locations.
const KeyPrefixFavicon = "linkvault:favicon:"

// DefaultTTL applies when Set is called without a TTL.
const DefaultTTL = 24 * time.Hour

// FaviconKey returns the Redis key for a host.
func FaviconKey(host string) string {
	return KeyPrefixFavicon + strings.ToLower(host)
}

// FaviconCache maps a host onto the icon URL that last resolved for it.
type FaviconCache struct {
	client redis.Cmdable
}

// NewFaviconCache wraps client.
func NewFaviconCache(client redis.Cmdable) *FaviconCache {
	return &FaviconCache{client: client}
}

// Get returns the cached icon URL for host. A miss is ("", false, nil).
func (c *FaviconCache) Get(ctx context.Context, host string) (string, bool, error) {
	iconURL, err := c.client.Get(ctx, FaviconKey(host)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get cached favicon: %w", err)
	}
	return iconURL, true, nil
}

// Set stores iconURL for host.
func (c *FaviconCache) Set(ctx context.Context, host, iconURL string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := c.client.Set(ctx, FaviconKey(host), iconURL, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache favicon: %w", err)
	}
	return nil
}

// Forget drops the entry for host.
func (c *FaviconCache) Forget(ctx context.Context, host string) error {
	if err := c.client.Del(ctx, FaviconKey(host)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate favicon: %w", err)
	}
	return nil
}
