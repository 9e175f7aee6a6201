package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/Hajira-org/hajira-chat/pkg/chat/session"
	"github.com/Hajira-org/hajira-chat/pkg/chat/widget"
	"github.com/Hajira-org/hajira-chat/pkg/wire"
)

// Renderer prints what changed between successive widget views. It is
// safe to call from the widget's change callback on any goroutine.
type Renderer struct {
	mu  sync.Mutex
	out io.Writer

	started    bool
	open       bool
	tab        widget.Tab
	state      session.State
	seen       map[string]session.Status
	turns      int
	suggestion string
	thinking   bool
}

func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out, seen: make(map[string]session.Status)}
}

func (r *Renderer) Render(v widget.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !v.Open {
		if r.open {
			fmt.Fprintln(r.out, "* chat closed")
		}
		r.reset()
		return
	}
	if !r.open {
		r.reset()
		r.open = true
	}

	if !r.started || v.Session != r.state {
		r.renderState(v)
	}
	if r.started && v.Tab != r.tab {
		fmt.Fprintf(r.out, "* switched to %s tab\n", v.Tab)
	}
	r.started = true
	r.tab = v.Tab
	r.state = v.Session

	occurrences := make(map[string]int)
	for _, e := range v.Messages {
		key := entryKey(e.Message)
		n := occurrences[key]
		occurrences[key]++
		if n > 0 {
			key = fmt.Sprintf("%s#%d", key, n)
		}
		r.renderEntry(key, e)
	}

	for _, t := range v.Turns[min(r.turns, len(v.Turns)):] {
		fmt.Fprintf(r.out, "[ai] %s: %s\n", turnLabel(t.Role), t.Content)
	}
	r.turns = len(v.Turns)

	thinking := v.AI == widget.AIAwaitingReply
	if thinking && !r.thinking {
		fmt.Fprintln(r.out, "[ai] thinking...")
	}
	r.thinking = thinking

	if v.Suggestion != r.suggestion && v.Suggestion != "" {
		fmt.Fprintf(r.out, "  suggestion: %s (/tab to accept)\n", v.Suggestion)
	}
	r.suggestion = v.Suggestion
}

func (r *Renderer) reset() {
	r.open = false
	r.started = false
	r.seen = make(map[string]session.Status)
	r.turns = 0
	r.suggestion = ""
	r.thinking = false
}

func (r *Renderer) renderState(v widget.View) {
	switch v.Session {
	case session.StateJoining:
		fmt.Fprintf(r.out, "* joining %s\n", v.RoomKey)
	case session.StateJoined:
		fmt.Fprintf(r.out, "* connected to %s\n", v.RoomKey)
	case session.StateDisconnected:
		fmt.Fprintln(r.out, "* disconnected from relay, messages will not be sent")
	}
}

func (r *Renderer) renderEntry(key string, e session.Entry) {
	prev, ok := r.seen[key]
	r.seen[key] = e.Status

	switch {
	case !ok:
		fmt.Fprintf(r.out, "%s %s: %s%s\n", clock(e.Time), e.Sender, e.Body, statusMark(e.Status))
	case prev != e.Status && e.Status == session.StatusFailed:
		fmt.Fprintf(r.out, "! not delivered: %s\n", e.Body)
	}
}

// entryKey identifies a message across views. Messages without ids are
// keyed by content; repeats within one view are told apart by position.
func entryKey(m wire.Message) string {
	switch {
	case m.ClientID != "":
		return m.ClientID
	case m.ID != "":
		return m.ID
	}
	return m.Sender + "|" + m.Time + "|" + m.Body
}

func statusMark(s session.Status) string {
	switch s {
	case session.StatusPending:
		return " (sending)"
	case session.StatusFailed:
		return " (failed)"
	default:
		return ""
	}
}

func turnLabel(role string) string {
	if role == wire.RoleAssistant {
		return "assistant"
	}
	return "you"
}

// clock shows the HH:MM:SS part of a message timestamp.
func clock(ts string) string {
	if len(ts) >= 19 {
		return "[" + ts[11:19] + "]"
	}
	return "[--:--:--]"
}
