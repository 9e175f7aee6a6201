package history

import (
	"context"
	"sync"

	"github.com/Hajira-org/hajira-chat/pkg/wire"
)

// MemoryStore keeps room logs in process. Logs are lost on restart.
type MemoryStore struct {
	limit int
	mu    sync.RWMutex
	rooms map[string][]wire.Message
}

func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = 100
	}
	return &MemoryStore{
		limit: limit,
		rooms: make(map[string][]wire.Message),
	}
}

func (s *MemoryStore) Append(ctx context.Context, roomKey string, msg wire.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := append(s.rooms[roomKey], msg)
	if len(log) > s.limit {
		trimmed := make([]wire.Message, s.limit)
		copy(trimmed, log[len(log)-s.limit:])
		log = trimmed
	}
	s.rooms[roomKey] = log
	return nil
}

func (s *MemoryStore) Recent(ctx context.Context, roomKey string) ([]wire.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return wire.Tail(s.rooms[roomKey], s.limit), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
