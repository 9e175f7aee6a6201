// Package history keeps the recent messages of each room so a joining
// client can be sent the conversation so far.
package history

import (
	"context"
	"errors"

	"github.com/Hajira-org/hajira-chat/pkg/wire"
)

var ErrUnknownDriver = errors.New("history: unknown driver")

// Store is a bounded per-room message log.
type Store interface {
	// Append adds msg to the end of the room's log, evicting the oldest
	// entries beyond the limit.
	Append(ctx context.Context, roomKey string, msg wire.Message) error
	// Recent returns the room's log, oldest first. An unknown room has an
	// empty log.
	Recent(ctx context.Context, roomKey string) ([]wire.Message, error)
	Close() error
}
