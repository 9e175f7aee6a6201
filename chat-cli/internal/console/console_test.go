package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/Hajira-org/hajira-chat/pkg/chat/session"
	"github.com/Hajira-org/hajira-chat/pkg/chat/widget"
	"github.com/Hajira-org/hajira-chat/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWidget struct {
	tab        widget.Tab
	draft      string
	suggestion string
	sent       []string
	asked      []string
	sendErr    error
	closed     bool
}

func (f *fakeWidget) SwitchTab(tab widget.Tab) { f.tab = tab }

func (f *fakeWidget) SetDraft(text string) error {
	f.draft = text
	return nil
}

func (f *fakeWidget) AcceptSuggestion() bool {
	if f.suggestion == "" {
		return false
	}
	f.draft = f.draft + " " + f.suggestion
	f.suggestion = ""
	return true
}

func (f *fakeWidget) Send() (wire.Message, error) {
	if f.sendErr != nil {
		return wire.Message{}, f.sendErr
	}
	if wire.Blank(f.draft) {
		return wire.Message{}, session.ErrEmptyMessage
	}
	f.sent = append(f.sent, f.draft)
	f.draft = ""
	return wire.Message{Body: f.sent[len(f.sent)-1]}, nil
}

func (f *fakeWidget) Ask(text string) error {
	f.asked = append(f.asked, text)
	return nil
}

func (f *fakeWidget) Snapshot() widget.View {
	return widget.View{Open: !f.closed, Tab: f.tab, Draft: f.draft, Suggestion: f.suggestion}
}

func (f *fakeWidget) Close() error {
	f.closed = true
	return nil
}

func TestPlainLineSendsOnChatTab(t *testing.T) {
	w := &fakeWidget{}
	c := New(w, &bytes.Buffer{})

	assert.False(t, c.Handle("hello there"))
	assert.Equal(t, []string{"hello there"}, w.sent)
	assert.Empty(t, w.asked)
}

func TestPlainLineAsksOnAITab(t *testing.T) {
	w := &fakeWidget{}
	c := New(w, &bytes.Buffer{})

	c.Handle("/ai")
	c.Handle("any jobs nearby?")
	assert.Equal(t, []string{"any jobs nearby?"}, w.asked)
	assert.Empty(t, w.sent)

	c.Handle("/chat")
	assert.Equal(t, widget.TabChat, w.tab)
}

func TestDraftAcceptAndSend(t *testing.T) {
	w := &fakeWidget{}
	out := &bytes.Buffer{}
	c := New(w, out)

	c.Handle("/draft see you")
	assert.Equal(t, "see you", w.draft)

	w.suggestion = "tomorrow"
	c.Handle("\t")
	assert.Equal(t, "see you tomorrow", w.draft)
	assert.Contains(t, out.String(), "draft: see you tomorrow")

	c.Handle("/tab")
	assert.Contains(t, out.String(), "no suggestion to accept")

	c.Handle("/send")
	assert.Equal(t, []string{"see you tomorrow"}, w.sent)
}

func TestErrorsAreReported(t *testing.T) {
	w := &fakeWidget{}
	out := &bytes.Buffer{}
	c := New(w, out)

	c.Handle("/send")
	assert.Contains(t, out.String(), "nothing to send")

	w.sendErr = session.ErrNotConnected
	c.Handle("hi")
	assert.Contains(t, out.String(), "not connected")

	c.Handle("/nope")
	assert.Contains(t, out.String(), "unknown command /nope")
}

func TestRunStopsOnQuit(t *testing.T) {
	w := &fakeWidget{}
	c := New(w, &bytes.Buffer{})

	err := c.Run(context.Background(), strings.NewReader("first\n/quit\nnever sent\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, w.sent)
	assert.True(t, w.closed)
}

func TestRunStopsAtEOF(t *testing.T) {
	w := &fakeWidget{}
	c := New(w, &bytes.Buffer{})

	require.NoError(t, c.Run(context.Background(), strings.NewReader("one\ntwo")))
	assert.Equal(t, []string{"one", "two"}, w.sent)
	assert.True(t, w.closed)
}
