package pubsub

import (
	"context"
	"path"
	"sync"

	"github.com/rs/zerolog"
)

type memorySubscription struct {
	pattern bool
	ch      chan *Event
	cancel  context.CancelFunc
	done    chan struct{}
}

// MemoryPubSub is an in-process bus for a single relay instance. In a
// pattern, a room key of "*" matches any room key, including keys with '/'
// or ':'. Other patterns use path.Match syntax.
type MemoryPubSub struct {
	buffer int
	logger zerolog.Logger

	mu            sync.RWMutex
	subscriptions map[string]*memorySubscription
	closed        bool
}

func NewMemoryPubSub(buffer int, logger zerolog.Logger) *MemoryPubSub {
	if buffer <= 0 {
		buffer = DefaultConfig().Buffer
	}
	return &MemoryPubSub{
		buffer:        buffer,
		logger:        logger,
		subscriptions: make(map[string]*memorySubscription),
	}
}

// Publish delivers event to every matching subscription. A subscriber whose
// buffer is full misses the event.
func (m *MemoryPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for key, sub := range m.subscriptions {
		if !matches(key, sub.pattern, channel) {
			continue
		}
		select {
		case sub.ch <- event:
		case <-sub.done:
		default:
			m.logger.Warn().Str("subscription", key).Msg("subscriber buffer full, dropping event")
		}
	}
	return nil
}

func (m *MemoryPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return m.subscribe(ctx, channel, false)
}

func (m *MemoryPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}
	return m.subscribe(ctx, pattern, true)
}

func (m *MemoryPubSub) subscribe(ctx context.Context, key string, pattern bool) (<-chan *Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, context.Canceled
	}
	if existing, ok := m.subscriptions[key]; ok {
		m.endLocked(key, existing)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &memorySubscription{
		pattern: pattern,
		ch:      make(chan *Event, m.buffer),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	m.subscriptions[key] = sub

	go func() {
		<-subCtx.Done()
		m.mu.Lock()
		if m.subscriptions[key] == sub {
			m.endLocked(key, sub)
		}
		m.mu.Unlock()
	}()

	return sub.ch, nil
}

func (m *MemoryPubSub) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub, ok := m.subscriptions[channel]; ok {
		m.endLocked(channel, sub)
	}
	return nil
}

func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, sub := range m.subscriptions {
		m.endLocked(key, sub)
	}
	m.closed = true
	return nil
}

// endLocked closes sub. Publish holds the read lock while sending, so
// closing under the write lock never races a send.
func (m *MemoryPubSub) endLocked(key string, sub *memorySubscription) {
	delete(m.subscriptions, key)
	sub.cancel()
	close(sub.done)
	close(sub.ch)
}

func matches(key string, pattern bool, channel string) bool {
	if !pattern {
		return key == channel
	}
	pPrefix, pRoom, pSuffix, perr := parseChannel(key)
	cPrefix, _, cSuffix, cerr := parseChannel(channel)
	if perr == nil && cerr == nil && pRoom == "*" {
		return pPrefix == cPrefix && pSuffix == cSuffix
	}
	ok, _ := path.Match(key, channel)
	return ok
}
