package session

import "github.com/Hajira-org/hajira-chat/pkg/wire"

// State is the lifecycle of a controller's room subscription.
type State int

const (
	StateClosed State = iota
	StateJoining
	StateJoined
	StateClosing
	// StateDisconnected is entered when the relay could not be reached or
	// dropped the connection. Sends are refused until the controller is
	// closed.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateClosing:
		return "closing"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Status tracks the relay's view of a log entry.
type Status int

const (
	StatusPending Status = iota
	StatusConfirmed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Entry is one line of the log.
type Entry struct {
	wire.Message
	Status Status
}
