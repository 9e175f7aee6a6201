// Package session owns one peer conversation: the relay subscription for
// the room shared by two users and the ordered message log of that room.
package session

import (
	"errors"
	"sync"

	"github.com/Hajira-org/hajira-chat/pkg/chat/relay"
	pkglog "github.com/Hajira-org/hajira-chat/pkg/log"
	"github.com/Hajira-org/hajira-chat/pkg/wire"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

var (
	ErrEmptyMessage        = errors.New("session: message body is empty")
	ErrNotConnected        = errors.New("session: not connected to relay")
	ErrInvalidParticipants = errors.New("session: sender and receiver are required")
	ErrAlreadyOpen         = errors.New("session: already open")
	ErrReleased            = errors.New("session: controller has been closed")
)

// Relay is the transport a controller owns for its lifetime.
// *relay.Conn satisfies it.
type Relay interface {
	Join(roomKey string, l relay.Listener) error
	Leave(roomKey string) error
	Send(roomKey string, msg wire.Message) error
	Close() error
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used to stamp outgoing messages.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithLogger sets the controller's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithOnChange registers fn to be called after every change to the log or
// state. fn runs without the controller lock held.
func WithOnChange(fn func()) Option {
	return func(c *Controller) { c.onChange = fn }
}

// Controller is the chat session for one (sender, receiver) pair.
type Controller struct {
	relay    Relay
	clock    clockwork.Clock
	logger   zerolog.Logger
	onChange func()

	mu       sync.Mutex
	state    State
	released bool
	sender   string
	receiver string
	roomKey  string
	log      []Entry
}

// NewController creates a controller that owns r. A nil r is a relay that
// could not be reached: the controller opens straight into Disconnected.
func NewController(r Relay, opts ...Option) *Controller {
	c := &Controller{
		relay:  r,
		clock:  clockwork.NewRealClock(),
		logger: pkglog.L(),
		state:  StateClosed,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open derives the room for sender and receiver and joins it.
func (c *Controller) Open(sender, receiver string) error {
	if sender == "" || receiver == "" {
		return ErrInvalidParticipants
	}

	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return ErrReleased
	}
	if c.state != StateClosed {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.sender = sender
	c.receiver = receiver
	c.roomKey = wire.RoomKey(sender, receiver)
	c.logger = c.logger.With().Str(pkglog.FieldRoomKey, c.roomKey).Str(pkglog.FieldSender, sender).Logger()

	if c.relay == nil {
		c.state = StateDisconnected
		c.mu.Unlock()
		c.logger.Warn().Msg("no relay connection, messages will not be sent")
		c.notify()
		return nil
	}
	c.state = StateJoining
	roomKey := c.roomKey
	c.mu.Unlock()

	if err := c.relay.Join(roomKey, c); err != nil {
		c.logger.Warn().Err(err).Msg("failed to join room")
		c.setState(StateJoining, StateDisconnected)
	}
	c.notify()
	return nil
}

// Send appends body to the log as the caller's own message and hands it to
// the relay. The entry stays Pending until the relay acknowledges it.
func (c *Controller) Send(body string) (wire.Message, error) {
	if wire.Blank(body) {
		return wire.Message{}, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return wire.Message{}, ErrReleased
	}
	if c.relay == nil || (c.state != StateJoining && c.state != StateJoined) {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug().Str(pkglog.FieldState, state.String()).Msg("dropping message, not connected")
		return wire.Message{}, ErrNotConnected
	}

	msg := wire.Message{
		ClientID: uuid.NewString(),
		Sender:   c.sender,
		Receiver: c.receiver,
		Body:     body,
		Time:     wire.Timestamp(c.clock.Now()),
	}
	c.log = append(c.log, Entry{Message: msg, Status: StatusPending})
	roomKey := c.roomKey
	c.mu.Unlock()

	if err := c.relay.Send(roomKey, msg); err != nil {
		c.logger.Warn().Err(err).Str(pkglog.FieldClientID, msg.ClientID).Msg("relay refused message")
		c.mark(msg.ClientID, "", StatusFailed)
	}
	c.notify()
	return msg, nil
}

// Close leaves the room, closes the owned relay and discards the log. A
// closed controller cannot be opened again.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return nil
	}
	c.released = true
	joined := c.state == StateJoining || c.state == StateJoined
	if c.state != StateClosed {
		c.state = StateClosing
	}
	roomKey := c.roomKey
	c.mu.Unlock()

	var err error
	if c.relay != nil {
		if joined {
			if leaveErr := c.relay.Leave(roomKey); leaveErr != nil {
				c.logger.Debug().Err(leaveErr).Msg("failed to leave room")
			}
		}
		err = c.relay.Close()
	}

	c.mu.Lock()
	c.state = StateClosed
	c.log = nil
	c.mu.Unlock()

	c.logger.Debug().Msg("session closed")
	c.notify()
	return err
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RoomKey returns the room joined by Open, or "" before Open.
func (c *Controller) RoomKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomKey
}

// Sender returns the local user's id.
func (c *Controller) Sender() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sender
}

// Messages returns a copy of the log in display order.
func (c *Controller) Messages() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.log))
	copy(out, c.log)
	return out
}

// Recent returns the last n messages of the log.
func (c *Controller) Recent(n int) []wire.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := make([]wire.Message, len(c.log))
	for i, e := range c.log {
		msgs[i] = e.Message
	}
	return wire.Tail(msgs, n)
}

// OnHistory replaces the log with the relay's snapshot, pending entries
// included.
func (c *Controller) OnHistory(roomKey string, msgs []wire.Message) {
	c.mu.Lock()
	if !c.accepting(roomKey) {
		c.mu.Unlock()
		return
	}
	log := make([]Entry, len(msgs))
	for i, m := range msgs {
		log[i] = Entry{Message: m, Status: StatusConfirmed}
	}
	c.log = log
	c.state = StateJoined
	c.mu.Unlock()

	c.logger.Debug().Int("count", len(msgs)).Msg("history received")
	c.notify()
}

// OnMessage appends a relayed message in delivery order. A message whose ID
// is already in the log arrived with the history snapshot and is skipped.
func (c *Controller) OnMessage(roomKey string, msg wire.Message) {
	c.mu.Lock()
	if !c.accepting(roomKey) || c.hasID(msg.ID) {
		c.mu.Unlock()
		return
	}
	c.log = append(c.log, Entry{Message: msg, Status: StatusConfirmed})
	c.mu.Unlock()

	c.notify()
}

// OnAck confirms the pending entry carrying clientID.
func (c *Controller) OnAck(roomKey, clientID, id string) {
	c.mu.Lock()
	ok := c.accepting(roomKey)
	c.mu.Unlock()
	if !ok {
		return
	}
	if c.mark(clientID, id, StatusConfirmed) {
		c.notify()
	}
}

// OnError marks the entry the relay rejected as Failed. Errors not tied to
// a message are only logged.
func (c *Controller) OnError(roomKey string, e wire.ErrorMessage) {
	c.logger.Warn().Str("code", e.Code).Str(pkglog.FieldClientID, e.ClientID).Msg(e.Message)
	if e.ClientID == "" {
		return
	}
	if c.mark(e.ClientID, "", StatusFailed) {
		c.notify()
	}
}

// OnDisconnect moves a live session to Disconnected. There is no
// reconnect.
func (c *Controller) OnDisconnect(err error) {
	c.mu.Lock()
	changed := false
	if c.state == StateJoining || c.state == StateJoined {
		c.state = StateDisconnected
		changed = true
	}
	c.mu.Unlock()

	if changed {
		c.logger.Warn().Err(err).Msg("relay disconnected")
		c.notify()
	}
}

// accepting reports whether relay pushes for roomKey still apply. Callers
// hold c.mu.
func (c *Controller) accepting(roomKey string) bool {
	if roomKey != c.roomKey {
		return false
	}
	return c.state == StateJoining || c.state == StateJoined
}

func (c *Controller) hasID(id string) bool {
	if id == "" {
		return false
	}
	for i := len(c.log) - 1; i >= 0; i-- {
		if c.log[i].ID == id {
			return true
		}
	}
	return false
}

func (c *Controller) mark(clientID, id string, status Status) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.log) - 1; i >= 0; i-- {
		e := &c.log[i]
		if e.ClientID != clientID || e.Status != StatusPending {
			continue
		}
		e.Status = status
		if id != "" {
			e.ID = id
		}
		return true
	}
	return false
}

func (c *Controller) setState(from, to State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == from {
		c.state = to
	}
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}
