package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Hajira-org/hajira-chat/pkg/metrics"
	"github.com/Hajira-org/hajira-chat/pkg/wire"
	"github.com/redis/go-redis/v9"
)

// RedisConfig for RedisStore.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	Limit    int
	TTL      time.Duration
}

// RedisStore keeps each room's log in a capped Redis list shared by every
// relay instance.
type RedisStore struct {
	client     *redis.Client
	ownsClient bool
	prefix     string
	limit      int
	ttl        time.Duration
}

func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := NewRedisStoreFromClient(client, cfg)
	s.ownsClient = true
	return s, nil
}

// NewRedisStoreFromClient uses an existing client, which the caller keeps
// ownership of.
func NewRedisStoreFromClient(client *redis.Client, cfg RedisConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = "relay:history"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	return &RedisStore{
		client: client,
		prefix: cfg.Prefix,
		limit:  cfg.Limit,
		ttl:    cfg.TTL,
	}
}

func (s *RedisStore) key(roomKey string) string {
	return fmt.Sprintf("%s:%s", s.prefix, roomKey)
}

func (s *RedisStore) Append(ctx context.Context, roomKey string, msg wire.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	start := time.Now()
	key := s.key(roomKey)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, int64(-s.limit), -1)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	metrics.RedisLatency.WithLabelValues("history_append").Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("failed to append to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Recent(ctx context.Context, roomKey string) ([]wire.Message, error) {
	start := time.Now()
	items, err := s.client.LRange(ctx, s.key(roomKey), 0, -1).Result()
	metrics.RedisLatency.WithLabelValues("history_recent").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to read from redis: %w", err)
	}

	msgs := make([]wire.Message, 0, len(items))
	for _, item := range items {
		var msg wire.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (s *RedisStore) Close() error {
	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}
