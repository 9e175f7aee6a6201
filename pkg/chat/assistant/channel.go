// Package assistant is the AI side conversation of the chat widget. It has
// its own turn log and never touches the relay.
package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"

	pkglog "github.com/Hajira-org/hajira-chat/pkg/log"
	"github.com/Hajira-org/hajira-chat/pkg/wire"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Replies substituted when the assistant gives nothing usable.
const (
	FallbackEmpty = "Sorry, I couldn't process that."
	FallbackError = "Sorry, I'm having trouble connecting right now."
)

var (
	ErrEmptyQuestion = errors.New("assistant: question is empty")
	ErrClosed        = errors.New("assistant: channel closed")
)

// Completer answers one question given recent turns.
// *completion.Client satisfies it.
type Completer interface {
	Chat(ctx context.Context, req wire.ChatRequest) (string, error)
}

// Config for a Channel.
type Config struct {
	HistorySize int `mapstructure:"history_size"`
}

func DefaultConfig() Config {
	return Config{HistorySize: 10}
}

type Option func(*Channel)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Channel) { c.clock = clock }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Channel) { c.logger = logger }
}

// WithOnChange registers fn to be called after every change to the turn
// log or the pending count. fn runs without the channel lock held.
func WithOnChange(fn func()) Option {
	return func(c *Channel) { c.onChange = fn }
}

// Channel holds one AI conversation.
type Channel struct {
	completer Completer
	cfg       Config
	clock     clockwork.Clock
	logger    zerolog.Logger
	onChange  func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	turns   []wire.Turn
	pending int
	closed  bool
}

func New(completer Completer, cfg Config, opts ...Option) *Channel {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultConfig().HistorySize
	}
	c := &Channel{
		completer: completer,
		cfg:       cfg,
		clock:     clockwork.NewRealClock(),
		logger:    pkglog.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "assistant").Logger()
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Ask appends text as a user turn and sends it in the background. Exactly
// one assistant turn follows once the request settles, unless the channel
// is closed first.
func (c *Channel) Ask(text string) error {
	req, err := c.begin(text)
	if err != nil {
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.finish(c.complete(req))
	}()
	return nil
}

// Submit is Ask without the goroutine: it returns once the assistant turn
// has been appended.
func (c *Channel) Submit(ctx context.Context, text string) error {
	req, err := c.begin(text)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	c.finish(c.completeCtx(ctx, req))
	return nil
}

// Turns returns a copy of the conversation.
func (c *Channel) Turns() []wire.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]wire.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Pending reports whether any question is awaiting its reply.
func (c *Channel) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending > 0
}

// Wait blocks until every background Ask has settled.
func (c *Channel) Wait() {
	c.wg.Wait()
}

// Close discards the conversation and cancels outstanding requests. Replies
// arriving afterwards are dropped.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.turns = nil
	c.pending = 0
	c.mu.Unlock()

	c.cancel()
}

func (c *Channel) begin(text string) (wire.ChatRequest, error) {
	if wire.Blank(text) {
		return wire.ChatRequest{}, ErrEmptyQuestion
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return wire.ChatRequest{}, ErrClosed
	}
	history := c.recentLocked(c.cfg.HistorySize)
	c.turns = append(c.turns, wire.Turn{
		Role:    wire.RoleUser,
		Content: text,
		Time:    wire.Timestamp(c.clock.Now()),
	})
	c.pending++
	c.mu.Unlock()

	c.notify()
	return wire.ChatRequest{Message: text, History: history}, nil
}

func (c *Channel) complete(req wire.ChatRequest) string {
	return c.completeCtx(c.ctx, req)
}

func (c *Channel) completeCtx(ctx context.Context, req wire.ChatRequest) string {
	start := c.clock.Now()
	reply, err := c.completer.Chat(ctx, req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("assistant request failed")
		return FallbackError
	}
	c.logger.Debug().Dur("took", c.clock.Since(start)).Msg("assistant replied")
	if strings.TrimSpace(reply) == "" {
		return FallbackEmpty
	}
	return reply
}

func (c *Channel) finish(reply string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.turns = append(c.turns, wire.Turn{
		Role:    wire.RoleAssistant,
		Content: reply,
		Time:    wire.Timestamp(c.clock.Now()),
	})
	if c.pending > 0 {
		c.pending--
	}
	c.mu.Unlock()

	c.notify()
}

func (c *Channel) recentLocked(n int) []wire.Turn {
	turns := c.turns
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]wire.Turn, len(turns))
	copy(out, turns)
	return out
}

func (c *Channel) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}
