package service

import (
	"context"

	"github.com/Hajira-org/hajira-chat/pkg/wire"
	"github.com/Hajira-org/hajira-chat/relay-service/internal/hub"
)

type RelayService interface {
	HandleJoinRoom(ctx context.Context, client *hub.Client, roomKey string) error
	HandleSendMessage(ctx context.Context, client *hub.Client, roomKey string, msg wire.Message) error
	HandleLeaveRoom(ctx context.Context, client *hub.Client, roomKey string) error
	HandleDisconnect(ctx context.Context, client *hub.Client) error
	// Start subscribes to room traffic from every relay instance and
	// delivers it to local members until ctx ends.
	Start(ctx context.Context) error
}
