package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pkglog "github.com/Hajira-org/hajira-chat/pkg/log"
	"github.com/Hajira-org/hajira-chat/pkg/metrics"
	"github.com/Hajira-org/hajira-chat/pkg/pubsub"
	"github.com/Hajira-org/hajira-chat/pkg/wire"
	"github.com/Hajira-org/hajira-chat/relay-service/internal/audit"
	"github.com/Hajira-org/hajira-chat/relay-service/internal/history"
	"github.com/Hajira-org/hajira-chat/relay-service/internal/hub"
)

type relayService struct {
	hub        *hub.Hub
	history    history.Store
	bus        pubsub.PubSub
	ids        IDGenerator
	instanceID string
	now        func() time.Time
}

func NewRelayService(h *hub.Hub, store history.Store, bus pubsub.PubSub, ids IDGenerator, instanceID string) RelayService {
	return &relayService{
		hub:        h,
		history:    store,
		bus:        bus,
		ids:        ids,
		instanceID: instanceID,
		now:        time.Now,
	}
}

func (s *relayService) HandleJoinRoom(ctx context.Context, c *hub.Client, roomKey string) error {
	if roomKey == "" {
		return c.SendMessage(wire.NewErrorMessage(wire.ErrCodeBadRequest, "room_id is required"))
	}

	if prev := c.Room(); prev != "" && prev != roomKey {
		audit.LogWithDetail(ctx, audit.ActionLeaveRoom, c.ID, prev, "left room to join another")
	}

	// Join before reading history so nothing published in between is lost.
	s.hub.JoinRoom(c, roomKey)

	ctx = pkglog.WithRoom(ctx, roomKey)
	msgs, err := s.history.Recent(ctx, roomKey)
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Msg("failed to load room history")
		msgs = []wire.Message{}
	}

	audit.LogWithDetail(ctx, audit.ActionJoinRoom, c.ID, fmt.Sprintf("history=%d", len(msgs)), "joined room")

	return c.SendMessage(&wire.MessageHistoryMessage{
		Type:     wire.MsgTypeMessageHistory,
		RoomID:   roomKey,
		Messages: msgs,
	})
}

func (s *relayService) HandleSendMessage(ctx context.Context, c *hub.Client, roomKey string, msg wire.Message) error {
	if roomKey == "" {
		roomKey = c.Room()
	}
	ctx = pkglog.WithRoom(ctx, roomKey)

	if current := c.Room(); current == "" || current != roomKey {
		return s.reject(ctx, c, roomKey, msg.ClientID, wire.ErrCodeNotInRoom, "Not in this room")
	}
	if wire.Blank(msg.Body) {
		return s.reject(ctx, c, roomKey, msg.ClientID, wire.ErrCodeBadRequest, "Message body is empty")
	}
	if msg.Sender == "" {
		return s.reject(ctx, c, roomKey, msg.ClientID, wire.ErrCodeBadRequest, "Sender is required")
	}

	id, err := s.ids.Generate()
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Msg("failed to generate message id")
		return s.reject(ctx, c, roomKey, msg.ClientID, wire.ErrCodeInternalError, "Failed to generate message ID")
	}
	msg.ID = id
	if msg.Time == "" {
		msg.Time = wire.Timestamp(s.now())
	}

	if err := s.history.Append(ctx, roomKey, msg); err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Msg("failed to store message")
		return s.reject(ctx, c, roomKey, msg.ClientID, wire.ErrCodeInternalError, "Failed to store message")
	}

	if err := s.publish(ctx, c, roomKey, msg); err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Msg("failed to publish message")
		return s.reject(ctx, c, roomKey, msg.ClientID, wire.ErrCodeInternalError, "Failed to send message")
	}

	metrics.RelayMessages.WithLabelValues("accepted").Inc()
	audit.LogWithDetail(ctx, audit.ActionSendMessage, c.ID, msg.ID, "message accepted")

	return c.SendMessage(&wire.MessageAckMessage{
		Type:     wire.MsgTypeMessageAck,
		RoomID:   roomKey,
		ClientID: msg.ClientID,
		ID:       msg.ID,
	})
}

func (s *relayService) HandleLeaveRoom(ctx context.Context, c *hub.Client, roomKey string) error {
	current := c.Room()
	if current == "" || (roomKey != "" && roomKey != current) {
		return nil
	}
	s.hub.LeaveRoom(c)
	audit.Log(pkglog.WithRoom(ctx, current), audit.ActionLeaveRoom, c.ID, "left room")
	return nil
}

func (s *relayService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	if room := c.Room(); room != "" {
		ctx = pkglog.WithRoom(ctx, room)
		s.hub.LeaveRoom(c)
	}
	audit.Log(ctx, audit.ActionDisconnect, c.ID, "client disconnected")
	return nil
}

func (s *relayService) Start(ctx context.Context) error {
	events, err := s.bus.SubscribePattern(ctx, pubsub.RelayToMembersPattern())
	if err != nil {
		return fmt.Errorf("failed to subscribe to room traffic: %w", err)
	}

	go func() {
		for event := range events {
			s.deliver(ctx, event)
		}
		l := pkglog.Ctx(ctx)
		l.Info().Msg("room traffic subscription ended")
	}()
	return nil
}

func (s *relayService) publish(ctx context.Context, c *hub.Client, roomKey string, msg wire.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	event, err := pubsub.NewEvent(pubsub.EventRoomMessage, roomKey, pubsub.RoomMessagePayload{
		RoomKey: roomKey,
		Message: data,
		ConnID:  c.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	event.Origin = s.instanceID

	return s.bus.Publish(ctx, pubsub.RelayToMembersChannel(roomKey), event)
}

// deliver fans a bus event out to local members of its room. The sending
// connection, wherever it lives, is skipped: it already has the message.
func (s *relayService) deliver(ctx context.Context, event *pubsub.Event) {
	if event.Type != pubsub.EventRoomMessage {
		return
	}

	var payload pubsub.RoomMessagePayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Msg("dropping malformed room event")
		return
	}

	var msg wire.Message
	if err := json.Unmarshal(payload.Message, &msg); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Msg("dropping malformed room message")
		return
	}

	data, err := json.Marshal(&wire.ReceiveMessageMessage{
		Type:    wire.MsgTypeReceiveMessage,
		RoomID:  payload.RoomKey,
		Message: msg,
	})
	if err != nil {
		return
	}
	s.hub.BroadcastToRoom(payload.RoomKey, data, payload.ConnID)
}

func (s *relayService) reject(ctx context.Context, c *hub.Client, roomKey, clientID, code, reason string) error {
	metrics.RelayMessages.WithLabelValues("rejected").Inc()
	audit.LogWithDetail(ctx, audit.ActionRejected, c.ID, code, reason)

	e := wire.NewErrorMessage(code, reason)
	e.RoomID = roomKey
	e.ClientID = clientID
	return c.SendMessage(e)
}
