// Package suggest produces inline "next words" suggestions for a draft
// message, debounced so the completion service sees at most one request
// per pause in typing.
package suggest

import (
	"context"
	"strings"
	"sync"
	"time"

	pkglog "github.com/Hajira-org/hajira-chat/pkg/log"
	"github.com/Hajira-org/hajira-chat/pkg/wire"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Completer fetches a continuation for a draft.
// *completion.Client satisfies it.
type Completer interface {
	Suggest(ctx context.Context, req wire.SuggestRequest) (string, error)
}

// History supplies recent room messages as context.
type History interface {
	Recent(n int) []wire.Message
}

// Config tunes the debounce.
type Config struct {
	Delay       time.Duration `mapstructure:"delay"`
	MinLength   int           `mapstructure:"min_length"`
	HistorySize int           `mapstructure:"history_size"`
}

// DefaultConfig returns a 600ms debounce, 3 character minimum and 5
// messages of history.
func DefaultConfig() Config {
	return Config{
		Delay:       600 * time.Millisecond,
		MinLength:   3,
		HistorySize: 5,
	}
}

// Option configures a Suggester.
type Option func(*Suggester)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Suggester) { s.clock = clock }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Suggester) { s.logger = logger }
}

// WithOnChange registers fn to be called whenever the suggestion or the
// pending flag changes. fn runs without the suggester lock held.
func WithOnChange(fn func()) Option {
	return func(s *Suggester) { s.onChange = fn }
}

// Suggester holds the current suggestion for one draft input.
type Suggester struct {
	completer Completer
	history   History
	cfg       Config
	clock     clockwork.Clock
	logger    zerolog.Logger
	onChange  func()

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	rev        uint64
	timer      clockwork.Timer
	reqCancel  context.CancelFunc
	inFlight   bool
	suggestion string
	closed     bool
}

// New creates a Suggester. history may be nil.
func New(completer Completer, history History, cfg Config, opts ...Option) *Suggester {
	d := DefaultConfig()
	if cfg.Delay <= 0 {
		cfg.Delay = d.Delay
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = d.MinLength
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = d.HistorySize
	}

	s := &Suggester{
		completer: completer,
		history:   history,
		cfg:       cfg,
		clock:     clockwork.NewRealClock(),
		logger:    pkglog.L(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "suggest").Logger()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Update reacts to a new draft. Every call supersedes the previous one: its
// timer is stopped and its request, if any, is cancelled and its result
// will be ignored.
func (s *Suggester) Update(draft string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.rev++
	s.stopLocked()

	if len([]rune(strings.TrimSpace(draft))) < s.cfg.MinLength {
		s.suggestion = ""
		s.mu.Unlock()
		s.notify()
		return
	}

	rev := s.rev
	s.timer = s.clock.AfterFunc(s.cfg.Delay, func() {
		s.fire(rev, draft)
	})
	s.mu.Unlock()
	s.notify()
}

// Suggestion returns the current suggestion, or "".
func (s *Suggester) Suggestion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suggestion
}

// Pending reports whether a debounce timer is armed or a request is in
// flight.
func (s *Suggester) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil || s.inFlight
}

// Accept appends the suggestion to draft, separated by a space, and clears
// it. With no suggestion draft is returned unchanged.
func (s *Suggester) Accept(draft string) string {
	s.mu.Lock()
	if s.suggestion == "" {
		s.mu.Unlock()
		return draft
	}
	next := draft + " " + s.suggestion
	s.suggestion = ""
	s.mu.Unlock()

	s.notify()
	return next
}

// Close stops the timer, cancels any request and clears the suggestion.
func (s *Suggester) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.rev++
	s.stopLocked()
	s.suggestion = ""
	s.mu.Unlock()

	s.cancel()
}

func (s *Suggester) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.reqCancel != nil {
		s.reqCancel()
		s.reqCancel = nil
	}
	s.inFlight = false
}

func (s *Suggester) fire(rev uint64, draft string) {
	s.mu.Lock()
	if rev != s.rev || s.closed {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.timer = nil
	s.reqCancel = cancel
	s.inFlight = true
	s.mu.Unlock()
	defer cancel()

	req := wire.SuggestRequest{Text: draft, History: []wire.Message{}}
	if s.history != nil {
		req.History = s.history.Recent(s.cfg.HistorySize)
	}

	result, err := s.completer.Suggest(ctx, req)

	s.mu.Lock()
	if rev != s.rev || s.closed {
		s.mu.Unlock()
		s.logger.Debug().Uint64("rev", rev).Msg("discarding stale suggestion")
		return
	}
	s.reqCancel = nil
	s.inFlight = false
	if err != nil {
		s.logger.Debug().Err(err).Msg("suggestion request failed")
		s.suggestion = ""
	} else {
		s.suggestion = strings.TrimSpace(result)
	}
	s.mu.Unlock()

	s.notify()
}

func (s *Suggester) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}
