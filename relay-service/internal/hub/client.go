package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Hajira-org/hajira-chat/relay-service/internal/config"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Client is one websocket connection. It is a member of at most one room.
type Client struct {
	ID     string
	Hub    *Hub
	Conn   *websocket.Conn
	config config.WebSocketConfig
	logger zerolog.Logger

	send chan []byte

	mu      sync.Mutex
	room    string
	closed  bool
	lastAct time.Time
}

func NewClient(id string, hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig, logger zerolog.Logger) *Client {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		ID:      id,
		Hub:     hub,
		Conn:    conn,
		config:  cfg,
		logger:  logger,
		send:    make(chan []byte, buffer),
		lastAct: time.Now(),
	}
}

// Room returns the room the client is in, or "".
func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Client) setRoom(roomKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = roomKey
}

// LastActive returns when the client last sent a frame.
func (c *Client) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAct
}

// ReadPump reads frames until the connection fails, handing each to
// handler. onClose runs once the client has been unregistered.
func (c *Client) ReadPump(handler func(*Client, []byte), onClose func(*Client)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
		if onClose != nil {
			onClose(c)
		}
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("websocket read error")
			}
			break
		}

		c.mu.Lock()
		c.lastAct = time.Now()
		c.mu.Unlock()

		handler(c, message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage marshals message and queues it. A full buffer drops the
// frame.
func (c *Client) SendMessage(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	if !c.enqueue(data) {
		c.logger.Warn().Msg("send buffer full, dropping frame")
	}
	return nil
}

func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close stops the write pump. Called by the hub only.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
