package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Hajira-org/hajira-chat/pkg/wire"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	msgs, err := s.Recent(ctx, "room_a_b")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, "room_a_b", wire.Message{
			ID:     fmt.Sprintf("id%d", i),
			Sender: "a",
			Body:   fmt.Sprintf("m%d", i),
		}))
	}
	require.NoError(t, s.Append(ctx, "room_a_c", wire.Message{Sender: "c", Body: "other"}))

	msgs, err = s.Recent(ctx, "room_a_b")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m2", msgs[0].Body)
	assert.Equal(t, "m4", msgs[2].Body)
	assert.Equal(t, "id4", msgs[2].ID)

	msgs, err = s.Recent(ctx, "room_a_c")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "other", msgs[0].Body)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore(3))
}

func TestMemoryStoreRecentIsACopy(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "r", wire.Message{Body: "a"}))

	msgs, err := s.Recent(ctx, "r")
	require.NoError(t, err)
	msgs[0].Body = "changed"

	msgs, err = s.Recent(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "a", msgs[0].Body)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStoreFromClient(client, RedisConfig{Prefix: "test:history", Limit: 3, TTL: time.Hour})
	testStore(t, s)

	assert.True(t, mr.Exists("test:history:room_a_b"))
	assert.Equal(t, time.Hour, mr.TTL("test:history:room_a_b"))

	mr.FastForward(2 * time.Hour)
	msgs, err := s.Recent(context.Background(), "room_a_b")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestNewStore(t *testing.T) {
	s, err := New(Config{Driver: "memory", Limit: 10})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = New(Config{Driver: "cassandra"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
