package pubsub

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Relay channel naming.
const (
	// Relay -> members of a room, on every relay instance.
	ChannelRelayToMembers = "relay:room:%s:to_members"
)

// Event types carried on relay channels.
const (
	EventRoomMessage = "room_message"
)

// RelayToMembersChannel returns the channel for messages in roomKey.
func RelayToMembersChannel(roomKey string) string {
	return fmt.Sprintf(ChannelRelayToMembers, roomKey)
}

// RelayToMembersPattern matches RelayToMembersChannel for every room.
func RelayToMembersPattern() string {
	return fmt.Sprintf(ChannelRelayToMembers, "*")
}

// RoomMessagePayload is the payload of EventRoomMessage. Message holds the
// wire encoding of the chat message so the bus stays independent of it.
type RoomMessagePayload struct {
	RoomKey string          `json:"room_key"`
	Message json.RawMessage `json:"message"`
	ConnID  string          `json:"conn_id,omitempty"`
}

// parseChannel splits "{prefix}:room:{roomKey}:{suffix}". The room key may
// itself contain ':'.
func parseChannel(channel string) (prefix, roomKey, suffix string, err error) {
	parts := strings.Split(channel, ":")
	if len(parts) < 4 || parts[1] != "room" {
		return "", "", "", fmt.Errorf("invalid channel format: %s", channel)
	}
	prefix = parts[0]
	suffix = parts[len(parts)-1]
	roomKey = strings.Join(parts[2:len(parts)-1], ":")
	if prefix == "" || suffix == "" || roomKey == "" {
		return "", "", "", fmt.Errorf("invalid channel format: %s", channel)
	}
	return prefix, roomKey, suffix, nil
}
