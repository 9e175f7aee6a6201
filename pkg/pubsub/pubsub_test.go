package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func assertQuiet(t *testing.T, ch <-chan *Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRelayChannels(t *testing.T) {
	assert.Equal(t, "relay:room:room_u1_u2:to_members", RelayToMembersChannel("room_u1_u2"))
	assert.Equal(t, "relay:room:*:to_members", RelayToMembersPattern())
}

func TestChannelToTopicAndKey(t *testing.T) {
	tests := []struct {
		channel string
		topic   string
		key     string
		wantErr bool
	}{
		{channel: "relay:room:room_u1_u2:to_members", topic: "relay-to-members", key: "room_u1_u2"},
		{channel: "relay:room:room_a:b_c:to_members", topic: "relay-to-members", key: "room_a:b_c"},
		{channel: "relay:room:to_members", wantErr: true},
		{channel: "relay:rooms:x:to_members", wantErr: true},
		{channel: "nonsense", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			topic, key, err := channelToTopicAndKey(tt.channel)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.topic, topic)
			assert.Equal(t, tt.key, key)
		})
	}

	topic, err := patternToTopic(RelayToMembersPattern())
	require.NoError(t, err)
	assert.Equal(t, "relay-to-members", topic)

	_, err = patternToTopic("relay:room:room_?:to_members")
	assert.Error(t, err)
}

func TestNewPubSubDrivers(t *testing.T) {
	ps, err := NewPubSub(Config{Driver: DriverMemory}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryPubSub{}, ps)
	require.NoError(t, ps.Close())

	_, err = NewPubSub(Config{Driver: "carrier-pigeon"}, zerolog.Nop())
	assert.Error(t, err)
}

func testBus(t *testing.T, ps PubSub) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	all, err := ps.SubscribePattern(ctx, RelayToMembersPattern())
	require.NoError(t, err)
	one, err := ps.Subscribe(ctx, RelayToMembersChannel("room_u1_u2"))
	require.NoError(t, err)

	ev, err := NewEvent(EventRoomMessage, "room_u1_u2", RoomMessagePayload{
		RoomKey: "room_u1_u2",
		Message: []byte(`{"sender":"u1","message":"hi"}`),
	})
	require.NoError(t, err)
	require.NoError(t, ps.Publish(ctx, RelayToMembersChannel("room_u1_u2"), ev))

	got := receive(t, all)
	assert.Equal(t, EventRoomMessage, got.Type)
	assert.Equal(t, "room_u1_u2", got.RoomKey)
	var payload RoomMessagePayload
	require.NoError(t, got.UnmarshalPayload(&payload))
	assert.JSONEq(t, `{"sender":"u1","message":"hi"}`, string(payload.Message))

	assert.Equal(t, "room_u1_u2", receive(t, one).RoomKey)

	other, err := NewEvent(EventRoomMessage, "room_u1_u3", RoomMessagePayload{RoomKey: "room_u1_u3"})
	require.NoError(t, err)
	require.NoError(t, ps.Publish(ctx, RelayToMembersChannel("room_u1_u3"), other))

	assert.Equal(t, "room_u1_u3", receive(t, all).RoomKey)
	assertQuiet(t, one)

	require.NoError(t, ps.Unsubscribe(ctx, RelayToMembersChannel("room_u1_u2")))
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-one:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMemoryPubSub(t *testing.T) {
	ps := NewMemoryPubSub(16, zerolog.Nop())
	defer ps.Close()
	testBus(t, ps)
}

func TestMemoryPubSubContextEndsSubscription(t *testing.T) {
	ps := NewMemoryPubSub(16, zerolog.Nop())
	defer ps.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := ps.SubscribePattern(ctx, RelayToMembersPattern())
	require.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	ev, err := NewEvent(EventRoomMessage, "room_a_b", nil)
	require.NoError(t, err)
	assert.NoError(t, ps.Publish(context.Background(), RelayToMembersChannel("room_a_b"), ev))
}

func TestMemoryPubSubPatternMatchesSlashedRoomKey(t *testing.T) {
	ps := NewMemoryPubSub(4, zerolog.Nop())
	defer ps.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	all, err := ps.SubscribePattern(ctx, RelayToMembersPattern())
	require.NoError(t, err)

	for _, roomKey := range []string{"room_org/u1_u2", "room_a:b_c"} {
		ev, err := NewEvent(EventRoomMessage, roomKey, RoomMessagePayload{RoomKey: roomKey})
		require.NoError(t, err)
		require.NoError(t, ps.Publish(ctx, RelayToMembersChannel(roomKey), ev))
		assert.Equal(t, roomKey, receive(t, all).RoomKey)
	}

	ev, err := NewEvent(EventRoomMessage, "room_a_b", nil)
	require.NoError(t, err)
	require.NoError(t, ps.Publish(ctx, "relay:room:room_a_b:to_admins", ev))
	assertQuiet(t, all)
}

func TestMemoryPubSubRejectsBadPattern(t *testing.T) {
	ps := NewMemoryPubSub(1, zerolog.Nop())
	defer ps.Close()
	_, err := ps.SubscribePattern(context.Background(), "relay:room:[:to_members")
	assert.Error(t, err)
}

func TestRedisPubSub(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ps := NewRedisPubSubFromClient(client, 16, zerolog.Nop())
	defer ps.Close()
	testBus(t, ps)
}

func TestNewRedisPubSubUnreachable(t *testing.T) {
	_, err := NewRedisPubSub(RedisConfig{Address: "127.0.0.1:1"}, 1, zerolog.Nop())
	assert.Error(t, err)
}

func TestConsumerGroup(t *testing.T) {
	assert.Equal(t, "relay-i1", consumerGroup("relay-i1", RelayToMembersPattern(), false))
	assert.Equal(t, "relay", consumerGroup("", RelayToMembersPattern(), false))
	assert.Equal(t, "relay-i1-relay-room-room_u1_u2-to_members",
		consumerGroup("relay-i1", RelayToMembersChannel("room_u1_u2"), true))
}
