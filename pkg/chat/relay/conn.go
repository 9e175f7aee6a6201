// Package relay is the client side of the realtime relay: one websocket
// connection, owned by whoever dialed it, carrying room joins, outgoing
// messages and the relay's pushes back to per-room listeners.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Hajira-org/hajira-chat/pkg/wire"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	ErrClosed         = errors.New("relay: connection closed")
	ErrSendBufferFull = errors.New("relay: send buffer full")
)

// Listener receives the relay pushes for one room. Calls are made from the
// connection's read goroutine, one at a time, in delivery order.
type Listener interface {
	OnHistory(roomKey string, msgs []wire.Message)
	OnMessage(roomKey string, msg wire.Message)
	OnAck(roomKey, clientID, id string)
	OnError(roomKey string, e wire.ErrorMessage)
	// OnDisconnect is called once if the connection drops without Close.
	OnDisconnect(err error)
}

// Config tunes the websocket transport.
type Config struct {
	URL            string        `mapstructure:"url"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	Header         http.Header   `mapstructure:"-"`
}

// DefaultConfig returns the transport defaults for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:            url,
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 1 << 20,
		SendBuffer:     256,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig(c.URL)
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PongWait <= c.PingInterval {
		c.PongWait = 2 * c.PingInterval
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	return c
}

// Conn is a single relay connection.
type Conn struct {
	ws     *websocket.Conn
	cfg    Config
	send   chan []byte
	logger zerolog.Logger

	mu        sync.RWMutex
	closed    bool
	closing   bool
	listeners map[string]Listener

	closeOnce sync.Once
	done      chan struct{}
}

// Dial opens a relay connection and starts its read and write pumps.
func Dial(ctx context.Context, cfg Config, logger zerolog.Logger) (*Conn, error) {
	cfg = cfg.withDefaults()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay %s: %w", cfg.URL, err)
	}

	c := &Conn{
		ws:        ws,
		cfg:       cfg,
		send:      make(chan []byte, cfg.SendBuffer),
		logger:    logger.With().Str("component", "relay").Logger(),
		listeners: make(map[string]Listener),
		done:      make(chan struct{}),
	}

	go c.writePump()
	go c.readPump()

	c.logger.Debug().Str("url", cfg.URL).Msg("relay connected")
	return c, nil
}

// Join subscribes l to roomKey and asks the relay to join it. The relay
// answers with the room history, delivered through l.OnHistory.
func (c *Conn) Join(roomKey string, l Listener) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.listeners[roomKey] = l
	c.mu.Unlock()

	if err := c.enqueue(&wire.JoinRoomMessage{Type: wire.MsgTypeJoinRoom, RoomID: roomKey}); err != nil {
		c.mu.Lock()
		delete(c.listeners, roomKey)
		c.mu.Unlock()
		return err
	}
	return nil
}

// Leave drops the subscription for roomKey and tells the relay.
func (c *Conn) Leave(roomKey string) error {
	c.mu.Lock()
	delete(c.listeners, roomKey)
	c.mu.Unlock()

	return c.enqueue(&wire.LeaveRoomMessage{Type: wire.MsgTypeLeaveRoom, RoomID: roomKey})
}

// Send hands msg to the write pump. It does not wait for the relay.
func (c *Conn) Send(roomKey string, msg wire.Message) error {
	return c.enqueue(&wire.SendMessageMessage{
		Type:    wire.MsgTypeSendMessage,
		RoomID:  roomKey,
		Message: msg,
	})
}

// Close shuts the connection down without notifying listeners.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.closing = true
	c.listeners = make(map[string]Listener)
	c.mu.Unlock()

	c.shutdown()

	select {
	case <-c.done:
	case <-time.After(c.cfg.WriteWait):
		c.ws.Close()
		<-c.done
	}
	return nil
}

// Done is closed once the read pump has exited.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) enqueue(frame interface{}) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal relay frame: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// shutdown stops the write pump, which closes the socket and in turn ends
// the read pump.
func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
}

func (c *Conn) readPump() {
	var readErr error
	defer func() {
		c.shutdown()
		c.ws.Close()

		c.mu.Lock()
		deliberate := c.closing
		listeners := make([]Listener, 0, len(c.listeners))
		for _, l := range c.listeners {
			listeners = append(listeners, l)
		}
		c.listeners = make(map[string]Listener)
		c.mu.Unlock()

		if !deliberate {
			c.logger.Warn().Err(readErr).Msg("relay connection lost")
			for _, l := range listeners {
				l.OnDisconnect(readErr)
			}
		}
		close(c.done)
	}()

	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			readErr = err
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		c.dispatch(data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug().Err(err).Msg("relay write failed")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) listener(roomKey string) Listener {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listeners[roomKey]
}

func (c *Conn) dispatch(data []byte) {
	var base wire.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		c.logger.Debug().Err(err).Msg("ignoring malformed relay frame")
		return
	}

	switch base.Type {
	case wire.MsgTypeMessageHistory:
		var msg wire.MessageHistoryMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug().Err(err).Msg("ignoring malformed history frame")
			return
		}
		if l := c.listener(msg.RoomID); l != nil {
			if msg.Messages == nil {
				msg.Messages = []wire.Message{}
			}
			l.OnHistory(msg.RoomID, msg.Messages)
		}

	case wire.MsgTypeReceiveMessage:
		var msg wire.ReceiveMessageMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug().Err(err).Msg("ignoring malformed message frame")
			return
		}
		if l := c.listener(msg.RoomID); l != nil {
			l.OnMessage(msg.RoomID, msg.Message)
		}

	case wire.MsgTypeMessageAck:
		var msg wire.MessageAckMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		if l := c.listener(msg.RoomID); l != nil {
			l.OnAck(msg.RoomID, msg.ClientID, msg.ID)
		}

	case wire.MsgTypeError:
		var msg wire.ErrorMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		c.logger.Debug().Str("code", msg.Code).Str("reason", msg.Message).Msg("relay reported error")
		if msg.RoomID != "" {
			if l := c.listener(msg.RoomID); l != nil {
				l.OnError(msg.RoomID, msg)
			}
			return
		}
		c.mu.RLock()
		listeners := make(map[string]Listener, len(c.listeners))
		for k, l := range c.listeners {
			listeners[k] = l
		}
		c.mu.RUnlock()
		for roomKey, l := range listeners {
			l.OnError(roomKey, msg)
		}

	case wire.MsgTypePong:

	default:
		c.logger.Debug().Str("type", base.Type).Msg("ignoring unknown relay frame")
	}
}
