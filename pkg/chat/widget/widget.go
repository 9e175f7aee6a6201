// Package widget ties a peer chat session, its typing suggestions and the
// AI assistant into the two-tab chat widget.
package widget

import (
	"context"
	"errors"
	"sync"

	"github.com/Hajira-org/hajira-chat/pkg/chat/assistant"
	"github.com/Hajira-org/hajira-chat/pkg/chat/session"
	"github.com/Hajira-org/hajira-chat/pkg/chat/suggest"
	pkglog "github.com/Hajira-org/hajira-chat/pkg/log"
	"github.com/Hajira-org/hajira-chat/pkg/wire"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

var (
	ErrNotOpen     = errors.New("widget: not open")
	ErrAlreadyOpen = errors.New("widget: already open")
)

// Tab is the visible pane.
type Tab int

const (
	TabChat Tab = iota
	TabAI
)

func (t Tab) String() string {
	if t == TabAI {
		return "ai"
	}
	return "chat"
}

// Dialer opens the relay connection for a new session. The widget hands
// the connection to the session, which closes it.
type Dialer interface {
	Dial(ctx context.Context) (session.Relay, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (session.Relay, error)

func (f DialerFunc) Dial(ctx context.Context) (session.Relay, error) {
	return f(ctx)
}

// Completer serves both completion endpoints.
// *completion.Client satisfies it.
type Completer interface {
	suggest.Completer
	assistant.Completer
}

// Config for the widget's components.
type Config struct {
	Suggest   suggest.Config   `mapstructure:"suggest"`
	Assistant assistant.Config `mapstructure:"assistant"`
}

func DefaultConfig() Config {
	return Config{
		Suggest:   suggest.DefaultConfig(),
		Assistant: assistant.DefaultConfig(),
	}
}

type Option func(*Widget)

func WithClock(clock clockwork.Clock) Option {
	return func(w *Widget) { w.clock = clock }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(w *Widget) { w.logger = logger }
}

// WithOnChange registers fn to be called whenever anything visible
// changes. It may be called from any goroutine.
func WithOnChange(fn func()) Option {
	return func(w *Widget) { w.onChange = fn }
}

// Widget is the chat widget for the local user. Each Open starts a fresh
// session; Close discards it.
type Widget struct {
	dialer    Dialer
	completer Completer
	cfg       Config
	clock     clockwork.Clock
	logger    zerolog.Logger
	onChange  func()

	mu        sync.Mutex
	open      bool
	tab       Tab
	draft     string
	session   *session.Controller
	suggester *suggest.Suggester
	assistant *assistant.Channel
}

func New(dialer Dialer, completer Completer, cfg Config, opts ...Option) *Widget {
	w := &Widget{
		dialer:    dialer,
		completer: completer,
		cfg:       cfg,
		clock:     clockwork.NewRealClock(),
		logger:    pkglog.L(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Open starts a session between sender and receiver on the chat tab. A
// failed dial is logged and leaves the session disconnected.
func (w *Widget) Open(ctx context.Context, sender, receiver string) error {
	if sender == "" || receiver == "" {
		return session.ErrInvalidParticipants
	}

	w.mu.Lock()
	if w.open {
		w.mu.Unlock()
		return ErrAlreadyOpen
	}
	w.mu.Unlock()

	var r session.Relay
	if w.dialer != nil {
		conn, err := w.dialer.Dial(ctx)
		if err != nil {
			w.logger.Warn().Err(err).Msg("failed to connect to relay")
		} else {
			r = conn
		}
	}

	ctrl := session.NewController(r,
		session.WithClock(w.clock),
		session.WithLogger(w.logger),
		session.WithOnChange(w.notify),
	)
	sugg := suggest.New(w.completer, ctrl, w.cfg.Suggest,
		suggest.WithClock(w.clock),
		suggest.WithLogger(w.logger),
		suggest.WithOnChange(w.notify),
	)
	ai := assistant.New(w.completer, w.cfg.Assistant,
		assistant.WithClock(w.clock),
		assistant.WithLogger(w.logger),
		assistant.WithOnChange(w.notify),
	)

	w.mu.Lock()
	if w.open {
		w.mu.Unlock()
		sugg.Close()
		ai.Close()
		ctrl.Close()
		return ErrAlreadyOpen
	}
	w.open = true
	w.tab = TabChat
	w.draft = ""
	w.session = ctrl
	w.suggester = sugg
	w.assistant = ai
	w.mu.Unlock()

	if err := ctrl.Open(sender, receiver); err != nil {
		w.Close()
		return err
	}
	w.logger.Info().Str(pkglog.FieldRoomKey, ctrl.RoomKey()).Str(pkglog.FieldState, ctrl.State().String()).Msg("chat opened")
	return nil
}

// Close tears down the session and discards both logs.
func (w *Widget) Close() error {
	w.mu.Lock()
	if !w.open {
		w.mu.Unlock()
		return nil
	}
	ctrl, sugg, ai := w.session, w.suggester, w.assistant
	w.open = false
	w.draft = ""
	w.session, w.suggester, w.assistant = nil, nil, nil
	w.mu.Unlock()

	sugg.Close()
	ai.Close()
	err := ctrl.Close()
	w.notify()
	return err
}

// SwitchTab changes the visible pane. Nothing in flight is cancelled.
func (w *Widget) SwitchTab(tab Tab) {
	w.mu.Lock()
	changed := w.tab != tab
	w.tab = tab
	w.mu.Unlock()
	if changed {
		w.notify()
	}
}

// SetDraft records the chat input and feeds it to the suggester.
func (w *Widget) SetDraft(text string) error {
	w.mu.Lock()
	if !w.open {
		w.mu.Unlock()
		return ErrNotOpen
	}
	w.draft = text
	sugg := w.suggester
	w.mu.Unlock()

	sugg.Update(text)
	return nil
}

// AcceptSuggestion appends the current suggestion to the draft. It reports
// false when there was nothing to accept.
func (w *Widget) AcceptSuggestion() bool {
	w.mu.Lock()
	if !w.open {
		w.mu.Unlock()
		return false
	}
	draft, sugg := w.draft, w.suggester
	w.mu.Unlock()

	if sugg.Suggestion() == "" {
		return false
	}
	next := sugg.Accept(draft)
	return w.SetDraft(next) == nil
}

// Send sends the current draft and clears it on success.
func (w *Widget) Send() (wire.Message, error) {
	w.mu.Lock()
	if !w.open {
		w.mu.Unlock()
		return wire.Message{}, ErrNotOpen
	}
	draft, ctrl := w.draft, w.session
	w.mu.Unlock()

	msg, err := ctrl.Send(draft)
	if err != nil {
		return wire.Message{}, err
	}
	w.SetDraft("")
	return msg, nil
}

// Ask sends a question to the assistant.
func (w *Widget) Ask(text string) error {
	w.mu.Lock()
	if !w.open {
		w.mu.Unlock()
		return ErrNotOpen
	}
	ai := w.assistant
	w.mu.Unlock()

	return ai.Ask(text)
}

// Snapshot returns everything a renderer needs.
func (w *Widget) Snapshot() View {
	w.mu.Lock()
	v := View{Open: w.open, Tab: w.tab, Draft: w.draft}
	ctrl, sugg, ai := w.session, w.suggester, w.assistant
	w.mu.Unlock()

	if !v.Open {
		v.Session = session.StateClosed
		return v
	}

	v.Session = ctrl.State()
	v.RoomKey = ctrl.RoomKey()
	v.Messages = ctrl.Messages()
	v.Suggestion = sugg.Suggestion()
	v.Turns = ai.Turns()
	if sugg.Pending() {
		v.Chat = ChatAwaitingSuggestion
	}
	if ai.Pending() {
		v.AI = AIAwaitingReply
	}
	return v
}

// Wait blocks until outstanding assistant questions have settled.
func (w *Widget) Wait() {
	w.mu.Lock()
	ai := w.assistant
	w.mu.Unlock()
	if ai != nil {
		ai.Wait()
	}
}

func (w *Widget) notify() {
	if w.onChange != nil {
		w.onChange()
	}
}
