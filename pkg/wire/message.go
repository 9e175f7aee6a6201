package wire

import (
	"strings"
	"time"
)

// TimeLayout matches JavaScript's Date.prototype.toISOString, which is what
// the web client writes into Message.Time.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Message is one chat line. It is never edited after creation.
type Message struct {
	// ID is assigned by the relay when it accepts the message.
	ID string `json:"id,omitempty"`
	// ClientID is assigned by the sender to correlate relay acks.
	ClientID string `json:"client_id,omitempty"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver,omitempty"`
	Body     string `json:"message"`
	// Time is set by the sending client, not by the relay.
	Time string `json:"time,omitempty"`
}

// Timestamp formats t the way clients stamp outgoing messages.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Blank reports whether a body has no visible content.
func Blank(body string) bool {
	return strings.TrimSpace(body) == ""
}

// Tail returns a copy of the last n messages.
func Tail(msgs []Message, n int) []Message {
	if n <= 0 {
		return []Message{}
	}
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
