// Package pubsub is the event bus relay instances use to fan room traffic
// out to each other. Channels are named "{prefix}:room:{roomKey}:{suffix}";
// patterns replace the room key with "*".
package pubsub

import (
	"context"
	"encoding/json"
	"time"
)

// Event is one message on the bus.
type Event struct {
	Type      string          `json:"type"`
	RoomKey   string          `json:"room_key"`
	Origin    string          `json:"origin,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType, roomKey string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		RoomKey:   roomKey,
		Payload:   data,
		Timestamp: time.Now(),
	}, nil
}

// UnmarshalPayload unmarshals the event payload into v.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Publisher publishes events to the bus.
type Publisher interface {
	Publish(ctx context.Context, channel string, event *Event) error
}

// Subscriber subscribes to events from the bus. The returned channel is
// closed when the subscription ends.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan *Event, error)
	SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error)
	Unsubscribe(ctx context.Context, channel string) error
}

// PubSub combines Publisher and Subscriber.
type PubSub interface {
	Publisher
	Subscriber
	Close() error
}
