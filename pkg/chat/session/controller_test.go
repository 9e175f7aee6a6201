package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Hajira-org/hajira-chat/pkg/chat/relay"
	"github.com/Hajira-org/hajira-chat/pkg/wire"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	roomKey string
	msg     wire.Message
}

type fakeRelay struct {
	mu       sync.Mutex
	joined   []string
	left     []string
	sent     []sent
	closed   int
	listener relay.Listener
	joinErr  error
	sendErr  error
}

func (f *fakeRelay) Join(roomKey string, l relay.Listener) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinErr != nil {
		return f.joinErr
	}
	f.joined = append(f.joined, roomKey)
	f.listener = l
	return nil
}

func (f *fakeRelay) Leave(roomKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = append(f.left, roomKey)
	return nil
}

func (f *fakeRelay) Send(roomKey string, msg wire.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sent{roomKey: roomKey, msg: msg})
	return nil
}

func (f *fakeRelay) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeRelay) sends() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

var epoch = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestController(t *testing.T, r Relay) *Controller {
	t.Helper()
	return NewController(r,
		WithClock(clockwork.NewFakeClockAt(epoch)),
		WithLogger(zerolog.Nop()),
	)
}

func openJoined(t *testing.T, f *fakeRelay) *Controller {
	t.Helper()
	c := newTestController(t, f)
	require.NoError(t, c.Open("u1", "u2"))
	c.OnHistory("room_u1_u2", nil)
	require.Equal(t, StateJoined, c.State())
	return c
}

func bodies(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Body
	}
	return out
}

func TestOpenJoinsCanonicalRoom(t *testing.T) {
	tests := []struct {
		sender, receiver string
	}{
		{"u1", "u2"},
		{"u2", "u1"},
	}
	for _, tt := range tests {
		f := &fakeRelay{}
		c := newTestController(t, f)
		require.NoError(t, c.Open(tt.sender, tt.receiver))

		assert.Equal(t, StateJoining, c.State())
		assert.Equal(t, "room_u1_u2", c.RoomKey())
		assert.Equal(t, []string{"room_u1_u2"}, f.joined)
		assert.Same(t, c, f.listener)
	}
}

func TestOpenValidation(t *testing.T) {
	c := newTestController(t, &fakeRelay{})
	assert.ErrorIs(t, c.Open("", "u2"), ErrInvalidParticipants)
	assert.ErrorIs(t, c.Open("u1", ""), ErrInvalidParticipants)

	require.NoError(t, c.Open("u1", "u2"))
	assert.ErrorIs(t, c.Open("u1", "u2"), ErrAlreadyOpen)
}

func TestSendRejectsBlankInput(t *testing.T) {
	f := &fakeRelay{}
	c := openJoined(t, f)

	for _, body := range []string{"", "   ", "\t\n"} {
		_, err := c.Send(body)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}
	assert.Empty(t, c.Messages())
	assert.Zero(t, f.sends())
}

func TestSendAppendsOptimistically(t *testing.T) {
	f := &fakeRelay{}
	c := openJoined(t, f)

	msg, err := c.Send("hello")
	require.NoError(t, err)

	log := c.Messages()
	require.Len(t, log, 1)
	last := log[len(log)-1]
	assert.Equal(t, "hello", last.Body)
	assert.Equal(t, "u1", last.Sender)
	assert.Equal(t, "u2", last.Receiver)
	assert.Equal(t, "2026-03-01T09:30:00.000Z", last.Time)
	assert.Equal(t, StatusPending, last.Status)
	assert.NotEmpty(t, last.ClientID)

	require.Len(t, f.sent, 1)
	assert.Equal(t, "room_u1_u2", f.sent[0].roomKey)
	assert.Equal(t, msg, f.sent[0].msg)
}

func TestSendWhileJoiningIsAllowed(t *testing.T) {
	f := &fakeRelay{}
	c := newTestController(t, f)
	require.NoError(t, c.Open("u1", "u2"))

	_, err := c.Send("early")
	require.NoError(t, err)
	assert.Equal(t, 1, f.sends())
}

func TestHistoryReplacesLog(t *testing.T) {
	f := &fakeRelay{}
	c := newTestController(t, f)
	require.NoError(t, c.Open("u1", "u2"))

	c.OnMessage("room_u1_u2", wire.Message{Sender: "u2", Body: "m1"})
	require.Equal(t, []string{"m1"}, bodies(c.Messages()))

	c.OnHistory("room_u1_u2", []wire.Message{
		{Sender: "u1", Body: "m2"},
		{Sender: "u2", Body: "m3"},
	})

	assert.Equal(t, []string{"m2", "m3"}, bodies(c.Messages()))
	assert.Equal(t, StateJoined, c.State())
}

func TestHistoryDropsPendingEntries(t *testing.T) {
	f := &fakeRelay{}
	c := openJoined(t, f)

	_, err := c.Send("pending")
	require.NoError(t, err)

	c.OnHistory("room_u1_u2", []wire.Message{{Sender: "u2", Body: "snapshot"}})
	assert.Equal(t, []string{"snapshot"}, bodies(c.Messages()))
}

func TestMessagesAppendInDeliveryOrder(t *testing.T) {
	c := openJoined(t, &fakeRelay{})

	c.OnMessage("room_u1_u2", wire.Message{Sender: "u2", Body: "b", Time: "2026-03-01T09:31:00.000Z"})
	c.OnMessage("room_u1_u2", wire.Message{Sender: "u2", Body: "a", Time: "2026-03-01T09:30:00.000Z"})
	c.OnMessage("room_u1_u2", wire.Message{Sender: "u2", Body: "a", Time: "2026-03-01T09:30:00.000Z"})

	assert.Equal(t, []string{"b", "a", "a"}, bodies(c.Messages()))
}

func TestLiveCopyOfSnapshotMessageIsSkipped(t *testing.T) {
	c := openJoined(t, &fakeRelay{})

	c.OnHistory("room_u1_u2", []wire.Message{
		{ID: "01J0A", Sender: "u2", Body: "raced"},
	})
	c.OnMessage("room_u1_u2", wire.Message{ID: "01J0A", Sender: "u2", Body: "raced"})
	c.OnMessage("room_u1_u2", wire.Message{ID: "01J0B", Sender: "u2", Body: "next"})

	assert.Equal(t, []string{"raced", "next"}, bodies(c.Messages()))
}

func TestPushesForOtherRoomsAreIgnored(t *testing.T) {
	c := openJoined(t, &fakeRelay{})

	c.OnMessage("room_u1_u3", wire.Message{Sender: "u3", Body: "stray"})
	c.OnHistory("room_u1_u3", []wire.Message{{Body: "stray"}})

	assert.Empty(t, c.Messages())
}

func TestAckConfirmsEntry(t *testing.T) {
	c := openJoined(t, &fakeRelay{})

	msg, err := c.Send("hello")
	require.NoError(t, err)

	c.OnAck("room_u1_u2", msg.ClientID, "01HZY")

	log := c.Messages()
	require.Len(t, log, 1)
	assert.Equal(t, StatusConfirmed, log[0].Status)
	assert.Equal(t, "01HZY", log[0].ID)
}

func TestRelayErrorFailsEntry(t *testing.T) {
	c := openJoined(t, &fakeRelay{})

	msg, err := c.Send("hello")
	require.NoError(t, err)

	c.OnError("room_u1_u2", wire.ErrorMessage{Code: wire.ErrCodeNotInRoom, ClientID: msg.ClientID})
	assert.Equal(t, StatusFailed, c.Messages()[0].Status)
}

func TestTransportRefusalFailsEntry(t *testing.T) {
	f := &fakeRelay{sendErr: relay.ErrSendBufferFull}
	c := openJoined(t, f)

	_, err := c.Send("hello")
	require.NoError(t, err)

	log := c.Messages()
	require.Len(t, log, 1)
	assert.Equal(t, StatusFailed, log[0].Status)
}

func TestNilRelayIsDisconnected(t *testing.T) {
	c := newTestController(t, nil)
	require.NoError(t, c.Open("u1", "u2"))
	assert.Equal(t, StateDisconnected, c.State())

	_, err := c.Send("hello")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, c.Messages())
	assert.NoError(t, c.Close())
}

func TestJoinFailureIsDisconnected(t *testing.T) {
	f := &fakeRelay{joinErr: relay.ErrClosed}
	c := newTestController(t, f)
	require.NoError(t, c.Open("u1", "u2"))
	assert.Equal(t, StateDisconnected, c.State())
}

func TestDisconnectMakesSendNoop(t *testing.T) {
	f := &fakeRelay{}
	c := openJoined(t, f)

	c.OnDisconnect(errors.New("eof"))
	assert.Equal(t, StateDisconnected, c.State())

	_, err := c.Send("hello")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Zero(t, f.sends())
}

func TestSendBeforeOpen(t *testing.T) {
	c := newTestController(t, &fakeRelay{})
	_, err := c.Send("hello")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestCloseReleasesRelay(t *testing.T) {
	f := &fakeRelay{}
	c := openJoined(t, f)
	c.OnMessage("room_u1_u2", wire.Message{Sender: "u2", Body: "hi"})

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Equal(t, StateClosed, c.State())
	assert.Empty(t, c.Messages())
	assert.Equal(t, []string{"room_u1_u2"}, f.left)
	assert.Equal(t, 1, f.closed)

	assert.ErrorIs(t, c.Open("u1", "u2"), ErrReleased)
	_, err := c.Send("hello")
	assert.ErrorIs(t, err, ErrReleased)

	c.OnMessage("room_u1_u2", wire.Message{Sender: "u2", Body: "late"})
	assert.Empty(t, c.Messages())
}

func TestOnChangeFires(t *testing.T) {
	var mu sync.Mutex
	changes := 0
	c := NewController(&fakeRelay{},
		WithLogger(zerolog.Nop()),
		WithOnChange(func() {
			mu.Lock()
			changes++
			mu.Unlock()
		}),
	)

	require.NoError(t, c.Open("u1", "u2"))
	c.OnHistory("room_u1_u2", nil)
	_, err := c.Send("x")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, changes)
}

func TestRecent(t *testing.T) {
	c := openJoined(t, &fakeRelay{})
	for _, b := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		c.OnMessage("room_u1_u2", wire.Message{Sender: "u2", Body: b})
	}

	recent := c.Recent(5)
	require.Len(t, recent, 5)
	assert.Equal(t, "3", recent[0].Body)
	assert.Equal(t, "7", recent[4].Body)
}
