package cache

import (
	"context"
	"time"
)

// NoopSummaryCache always misses. It is used when Redis is not configured.
type NoopSummaryCache struct{}

func (NoopSummaryCache) Get(ctx context.Context, key string) (string, error) {
	return "", ErrCacheMiss
}

func (NoopSummaryCache) Set(ctx context.Context, key, summary string, ttl time.Duration) error {
	return nil
}

func (NoopSummaryCache) BuildKey(authorization string) string {
	return authorization
}

func (NoopSummaryCache) Close() error {
	return nil
}
