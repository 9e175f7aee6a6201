package cache

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// SummaryCache stores rendered job summaries per caller.
type SummaryCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, summary string, ttl time.Duration) error
	BuildKey(authorization string) string
	Close() error
}
