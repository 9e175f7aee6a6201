package hub

import (
	"context"
	"testing"
	"time"

	"github.com/Hajira-org/hajira-chat/relay-service/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(h *Hub, id string) *Client {
	return NewClient(id, h, nil, config.DefaultWebSocketConfig(), zerolog.Nop())
}

func runHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data := <-c.send:
		return data
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.ID)
		return nil
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	h := runHub(t)
	a, b, c := newTestClient(h, "a"), newTestClient(h, "b"), newTestClient(h, "c")
	for _, cl := range []*Client{a, b, c} {
		h.Register(cl)
	}
	h.JoinRoom(a, "room_u1_u2")
	h.JoinRoom(b, "room_u1_u2")
	h.JoinRoom(c, "room_u1_u3")

	h.BroadcastToRoom("room_u1_u2", []byte("hello"), a.ID)

	assert.Equal(t, "hello", string(recv(t, b)))
	assert.Empty(t, a.send)
	assert.Empty(t, c.send)
}

func TestJoinLeavesPreviousRoom(t *testing.T) {
	h := runHub(t)
	a := newTestClient(h, "a")
	h.Register(a)

	h.JoinRoom(a, "room_a_b")
	assert.Equal(t, 1, h.RoomMemberCount("room_a_b"))

	h.JoinRoom(a, "room_a_c")
	assert.Equal(t, 0, h.RoomMemberCount("room_a_b"))
	assert.Equal(t, 1, h.RoomMemberCount("room_a_c"))
	assert.Equal(t, "room_a_c", a.Room())

	assert.Equal(t, "room_a_c", h.LeaveRoom(a))
	assert.Equal(t, "", a.Room())
	assert.Equal(t, "", h.LeaveRoom(a))
}

func TestUnregisterClosesClient(t *testing.T) {
	h := runHub(t)
	a := newTestClient(h, "a")
	h.Register(a)
	h.JoinRoom(a, "room_a_b")
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	h.Unregister(a)

	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, h.RoomMemberCount("room_a_b"))
	_, ok := <-a.send
	assert.False(t, ok)
	assert.NoError(t, a.SendMessage(map[string]string{"type": "pong"}))
}

func TestFullBufferDropsClient(t *testing.T) {
	h := runHub(t)
	cfg := config.DefaultWebSocketConfig()
	cfg.SendBuffer = 1
	slow := NewClient("slow", h, nil, cfg, zerolog.Nop())
	h.Register(slow)
	h.JoinRoom(slow, "room_a_b")

	h.BroadcastToRoom("room_a_b", []byte("1"), "")
	h.BroadcastToRoom("room_a_b", []byte("2"), "")

	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}
