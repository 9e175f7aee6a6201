// Package wire holds the contract shared by chat clients, the relay and the
// assist service: room key derivation, the chat message shape, relay frames
// and completion request/response bodies.
package wire

import "strings"

// RoomKeyPrefix starts every room key.
const RoomKeyPrefix = "room_"

// RoomKey derives the room shared by two participants. The smaller id (byte
// order) always comes first so both sides compute the same key no matter
// who opened the conversation. Other clients depend on this exact format.
func RoomKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	var sb strings.Builder
	sb.Grow(len(RoomKeyPrefix) + len(a) + 1 + len(b))
	sb.WriteString(RoomKeyPrefix)
	sb.WriteString(a)
	sb.WriteByte('_')
	sb.WriteString(b)
	return sb.String()
}
