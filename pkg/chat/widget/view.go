package widget

import (
	"github.com/Hajira-org/hajira-chat/pkg/chat/session"
	"github.com/Hajira-org/hajira-chat/pkg/wire"
)

// ChatMode is the sub-state of the chat tab.
type ChatMode int

const (
	ChatIdle ChatMode = iota
	ChatAwaitingSuggestion
)

// AIMode is the sub-state of the AI tab.
type AIMode int

const (
	AIIdle AIMode = iota
	AIAwaitingReply
)

// View is a point-in-time copy of the widget. Both tab sub-states are
// tracked whichever tab is visible.
type View struct {
	Open       bool
	Tab        Tab
	Chat       ChatMode
	AI         AIMode
	Session    session.State
	RoomKey    string
	Draft      string
	Suggestion string
	Messages   []session.Entry
	Turns      []wire.Turn
}
