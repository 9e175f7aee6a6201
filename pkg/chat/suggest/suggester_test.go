package suggest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Hajira-org/hajira-chat/pkg/wire"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	req   wire.SuggestRequest
	ctx   context.Context
	reply chan result
}

type result struct {
	text string
	err  error
}

// scriptedCompleter blocks every call until the test answers it.
type scriptedCompleter struct {
	mu    sync.Mutex
	calls []*call
}

func (c *scriptedCompleter) Suggest(ctx context.Context, req wire.SuggestRequest) (string, error) {
	cl := &call{req: req, ctx: ctx, reply: make(chan result, 1)}
	c.mu.Lock()
	c.calls = append(c.calls, cl)
	c.mu.Unlock()

	r := <-cl.reply
	return r.text, r.err
}

func (c *scriptedCompleter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *scriptedCompleter) call(i int) *call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[i]
}

type staticHistory []wire.Message

func (h staticHistory) Recent(n int) []wire.Message { return wire.Tail(h, n) }

const settle = 50 * time.Millisecond

func newTestSuggester(comp Completer, hist History) (*Suggester, clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	s := New(comp, hist, DefaultConfig(), WithClock(clock), WithLogger(zerolog.Nop()))
	return s, clock
}

func TestDebounceFiresOnceAfterLastKeystroke(t *testing.T) {
	comp := &scriptedCompleter{}
	s, clock := newTestSuggester(comp, nil)
	defer s.Close()

	s.Update("hel")
	clock.Advance(100 * time.Millisecond)
	s.Update("hell")
	clock.Advance(100 * time.Millisecond)
	s.Update("hello")
	clock.Advance(100 * time.Millisecond)
	s.Update("hello t")

	clock.Advance(599 * time.Millisecond)
	assert.Never(t, func() bool { return comp.count() > 0 }, settle, 5*time.Millisecond)

	clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return comp.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "hello t", comp.call(0).req.Text)

	comp.call(0).reply <- result{text: " there "}
	require.Eventually(t, func() bool { return s.Suggestion() == "there" }, time.Second, 5*time.Millisecond)

	clock.Advance(time.Second)
	assert.Never(t, func() bool { return comp.count() > 1 }, settle, 5*time.Millisecond)
}

func TestShortDraftNeverQueries(t *testing.T) {
	comp := &scriptedCompleter{}
	s, clock := newTestSuggester(comp, nil)
	defer s.Close()

	for _, draft := range []string{"", "a", "ab", "  ab  ", "é日"} {
		s.Update(draft)
		clock.Advance(time.Second)
	}
	assert.Never(t, func() bool { return comp.count() > 0 }, settle, 5*time.Millisecond)
	assert.False(t, s.Pending())
}

func TestShortDraftClearsSuggestion(t *testing.T) {
	comp := &scriptedCompleter{}
	s, clock := newTestSuggester(comp, nil)
	defer s.Close()

	s.Update("hey")
	clock.Advance(600 * time.Millisecond)
	require.Eventually(t, func() bool { return comp.count() == 1 }, time.Second, 5*time.Millisecond)
	comp.call(0).reply <- result{text: "there"}
	require.Eventually(t, func() bool { return s.Suggestion() == "there" }, time.Second, 5*time.Millisecond)

	s.Update("he")
	assert.Empty(t, s.Suggestion())
}

func TestShortDraftCancelsInFlight(t *testing.T) {
	comp := &scriptedCompleter{}
	s, clock := newTestSuggester(comp, nil)
	defer s.Close()

	s.Update("hey")
	clock.Advance(600 * time.Millisecond)
	require.Eventually(t, func() bool { return comp.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, s.Pending())

	s.Update("")
	assert.Error(t, comp.call(0).ctx.Err())
	assert.False(t, s.Pending())

	comp.call(0).reply <- result{text: "late"}
	assert.Never(t, func() bool { return s.Suggestion() != "" }, settle, 5*time.Millisecond)
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	comp := &scriptedCompleter{}
	s, clock := newTestSuggester(comp, nil)
	defer s.Close()

	s.Update("abc")
	clock.Advance(600 * time.Millisecond)
	require.Eventually(t, func() bool { return comp.count() == 1 }, time.Second, 5*time.Millisecond)

	s.Update("abcd")
	clock.Advance(600 * time.Millisecond)
	require.Eventually(t, func() bool { return comp.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Error(t, comp.call(0).ctx.Err())

	comp.call(1).reply <- result{text: "second"}
	require.Eventually(t, func() bool { return s.Suggestion() == "second" }, time.Second, 5*time.Millisecond)

	comp.call(0).reply <- result{text: "first"}
	assert.Never(t, func() bool { return s.Suggestion() != "second" }, settle, 5*time.Millisecond)
}

func TestFailureClearsSuggestion(t *testing.T) {
	comp := &scriptedCompleter{}
	s, clock := newTestSuggester(comp, nil)
	defer s.Close()

	s.Update("hey")
	clock.Advance(600 * time.Millisecond)
	require.Eventually(t, func() bool { return comp.count() == 1 }, time.Second, 5*time.Millisecond)
	comp.call(0).reply <- result{text: "there"}
	require.Eventually(t, func() bool { return s.Suggestion() == "there" }, time.Second, 5*time.Millisecond)

	s.Update("hey you")
	clock.Advance(600 * time.Millisecond)
	require.Eventually(t, func() bool { return comp.count() == 2 }, time.Second, 5*time.Millisecond)
	comp.call(1).reply <- result{err: errors.New("boom")}
	require.Eventually(t, func() bool { return s.Suggestion() == "" && !s.Pending() }, time.Second, 5*time.Millisecond)
}

func TestRequestCarriesRecentHistory(t *testing.T) {
	hist := staticHistory{
		{Body: "1"}, {Body: "2"}, {Body: "3"}, {Body: "4"}, {Body: "5"}, {Body: "6"},
	}
	comp := &scriptedCompleter{}
	s, clock := newTestSuggester(comp, hist)
	defer s.Close()

	s.Update("hey")
	clock.Advance(600 * time.Millisecond)
	require.Eventually(t, func() bool { return comp.count() == 1 }, time.Second, 5*time.Millisecond)

	got := comp.call(0).req.History
	require.Len(t, got, 5)
	assert.Equal(t, "2", got[0].Body)
	assert.Equal(t, "6", got[4].Body)
	comp.call(0).reply <- result{}
}

func TestAccept(t *testing.T) {
	comp := &scriptedCompleter{}
	s, clock := newTestSuggester(comp, nil)
	defer s.Close()

	assert.Equal(t, "hey", s.Accept("hey"))

	s.Update("hey")
	clock.Advance(600 * time.Millisecond)
	require.Eventually(t, func() bool { return comp.count() == 1 }, time.Second, 5*time.Millisecond)
	comp.call(0).reply <- result{text: "there"}
	require.Eventually(t, func() bool { return s.Suggestion() == "there" }, time.Second, 5*time.Millisecond)

	assert.Equal(t, "hey there", s.Accept("hey"))
	assert.Empty(t, s.Suggestion())
}

func TestCloseStopsEverything(t *testing.T) {
	comp := &scriptedCompleter{}
	s, clock := newTestSuggester(comp, nil)

	s.Update("hey")
	s.Close()
	clock.Advance(time.Second)
	assert.Never(t, func() bool { return comp.count() > 0 }, settle, 5*time.Millisecond)

	s.Update("hello")
	clock.Advance(time.Second)
	assert.Never(t, func() bool { return comp.count() > 0 }, settle, 5*time.Millisecond)
}
