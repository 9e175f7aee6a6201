package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisPubSub implements PubSub using Redis PUBLISH/PSUBSCRIBE.
type RedisPubSub struct {
	client        *redis.Client
	ownsClient    bool
	buffer        int
	logger        zerolog.Logger
	subscriptions map[string]*redis.PubSub
	mu            sync.RWMutex
}

// NewRedisPubSub connects to Redis and creates a bus on it.
func NewRedisPubSub(cfg RedisConfig, buffer int, logger zerolog.Logger) (*RedisPubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	r := NewRedisPubSubFromClient(client, buffer, logger)
	r.ownsClient = true
	return r, nil
}

// NewRedisPubSubFromClient builds a bus on an existing client, which the
// caller keeps ownership of.
func NewRedisPubSubFromClient(client *redis.Client, buffer int, logger zerolog.Logger) *RedisPubSub {
	if buffer <= 0 {
		buffer = DefaultConfig().Buffer
	}
	return &RedisPubSub{
		client:        client,
		buffer:        buffer,
		logger:        logger,
		subscriptions: make(map[string]*redis.PubSub),
	}
}

// Publish publishes an event to the specified channel.
func (r *RedisPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe subscribes to a specific channel.
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return r.subscribe(ctx, channel, r.client.Subscribe(ctx, channel))
}

// SubscribePattern subscribes to channels matching a glob pattern.
func (r *RedisPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	return r.subscribe(ctx, pattern, r.client.PSubscribe(ctx, pattern))
}

// subscribe waits for Redis to confirm the subscription so nothing
// published after it returns is missed.
func (r *RedisPubSub) subscribe(ctx context.Context, key string, ps *redis.PubSub) (<-chan *Event, error) {
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", key, err)
	}

	r.mu.Lock()
	if existing, ok := r.subscriptions[key]; ok {
		existing.Close()
	}
	r.subscriptions[key] = ps
	r.mu.Unlock()

	eventCh := make(chan *Event, r.buffer)
	go r.processMessages(ctx, key, ps, eventCh)

	return eventCh, nil
}

// Unsubscribe ends the subscription for a channel or pattern.
func (r *RedisPubSub) Unsubscribe(ctx context.Context, channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ps, ok := r.subscriptions[channel]; ok {
		delete(r.subscriptions, channel)
		if err := ps.Close(); err != nil {
			return err
		}
	}

	return nil
}

// Close closes all subscriptions, and the client if this bus created it.
func (r *RedisPubSub) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ps := range r.subscriptions {
		ps.Close()
	}
	r.subscriptions = make(map[string]*redis.PubSub)

	if r.ownsClient {
		return r.client.Close()
	}
	return nil
}

// processMessages forwards Redis messages to eventCh until the
// subscription or ctx ends.
func (r *RedisPubSub) processMessages(ctx context.Context, key string, ps *redis.PubSub, eventCh chan<- *Event) {
	defer close(eventCh)

	ch := ps.Channel()

	for {
		select {
		case <-ctx.Done():
			ps.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed event")
				continue
			}

			select {
			case eventCh <- &event:
			case <-ctx.Done():
				ps.Close()
				return
			default:
				r.logger.Warn().Str("subscription", key).Msg("subscriber buffer full, dropping event")
			}
		}
	}
}

// Client returns the underlying Redis client.
func (r *RedisPubSub) Client() *redis.Client {
	return r.client
}
