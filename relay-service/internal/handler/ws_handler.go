package handler

import (
	"context"
	"encoding/json"
	"net/http"

	pkglog "github.com/Hajira-org/hajira-chat/pkg/log"
	"github.com/Hajira-org/hajira-chat/pkg/wire"
	"github.com/Hajira-org/hajira-chat/relay-service/internal/audit"
	"github.com/Hajira-org/hajira-chat/relay-service/internal/config"
	"github.com/Hajira-org/hajira-chat/relay-service/internal/hub"
	"github.com/Hajira-org/hajira-chat/relay-service/internal/service"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub     *hub.Hub
	service service.RelayService
	wsCfg   config.WebSocketConfig
	logger  zerolog.Logger
}

func NewWSHandler(h *hub.Hub, svc service.RelayService, wsCfg config.WebSocketConfig, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
		logger:  logger,
	}
}

func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	id := uuid.New().String()
	logger := h.logger.With().Str(pkglog.FieldConnID, id).Logger()
	client := hub.NewClient(id, h.hub, conn, h.wsCfg, logger)

	h.hub.Register(client)
	audit.Log(pkglog.WithLogger(context.Background(), logger), audit.ActionConnect, id, "client connected")

	go client.WritePump()
	go client.ReadPump(h.handleMessage, h.handleClose)
}

func (h *WSHandler) context(client *hub.Client) context.Context {
	return pkglog.WithLogger(context.Background(), h.logger.With().Str(pkglog.FieldConnID, client.ID).Logger())
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	var base wire.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(wire.NewErrorMessage(wire.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	ctx := h.context(client)
	l := pkglog.Ctx(ctx)

	switch base.Type {
	case wire.MsgTypeJoinRoom:
		var msg wire.JoinRoomMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(wire.NewErrorMessage(wire.ErrCodeBadRequest, "Invalid join_room message"))
			return
		}
		if err := h.service.HandleJoinRoom(ctx, client, msg.RoomID); err != nil {
			l.Warn().Err(err).Msg("join room failed")
		}

	case wire.MsgTypeSendMessage:
		var msg wire.SendMessageMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(wire.NewErrorMessage(wire.ErrCodeBadRequest, "Invalid send_message message"))
			return
		}
		if err := h.service.HandleSendMessage(ctx, client, msg.RoomID, msg.Message); err != nil {
			l.Warn().Err(err).Msg("send message failed")
		}

	case wire.MsgTypeLeaveRoom:
		var msg wire.LeaveRoomMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(wire.NewErrorMessage(wire.ErrCodeBadRequest, "Invalid leave_room message"))
			return
		}
		if err := h.service.HandleLeaveRoom(ctx, client, msg.RoomID); err != nil {
			l.Warn().Err(err).Msg("leave room failed")
		}

	case wire.MsgTypePing:
		client.SendMessage(&wire.BaseMessage{Type: wire.MsgTypePong})

	default:
		client.SendMessage(wire.NewErrorMessage(wire.ErrCodeBadRequest, "Unknown message type"))
	}
}

func (h *WSHandler) handleClose(client *hub.Client) {
	h.service.HandleDisconnect(h.context(client), client)
}

func (h *WSHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", h.HandleWebSocket)
}
