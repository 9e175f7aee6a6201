package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/Hajira-org/hajira-chat/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type RedisSummaryCache struct {
	client *redis.Client
	prefix string
}

func NewRedisSummaryCache(cfg RedisConfig, prefix string) (*RedisSummaryCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisSummaryCacheFromClient(client, prefix), nil
}

func NewRedisSummaryCacheFromClient(client *redis.Client, prefix string) *RedisSummaryCache {
	return &RedisSummaryCache{client: client, prefix: prefix}
}

// BuildKey hashes the authorization header so tokens never land in Redis.
func (c *RedisSummaryCache) BuildKey(authorization string) string {
	sum := sha256.Sum256([]byte(authorization))
	return fmt.Sprintf("%s:%s", c.prefix, hex.EncodeToString(sum[:]))
}

func (c *RedisSummaryCache) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	summary, err := c.client.Get(ctx, key).Result()
	metrics.RedisLatency.WithLabelValues("get").Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("failed to get from redis: %w", err)
	}
	return summary, nil
}

func (c *RedisSummaryCache) Set(ctx context.Context, key, summary string, ttl time.Duration) error {
	start := time.Now()
	err := c.client.Set(ctx, key, summary, ttl).Err()
	metrics.RedisLatency.WithLabelValues("set").Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisSummaryCache) Close() error {
	return c.client.Close()
}
