package wire

// Relay frame types sent by clients.
const (
	MsgTypeJoinRoom    = "join_room"
	MsgTypeSendMessage = "send_message"
	MsgTypeLeaveRoom   = "leave_room"
	MsgTypePing        = "ping"
)

// Relay frame types sent by the relay.
const (
	MsgTypeMessageHistory = "message_history"
	MsgTypeReceiveMessage = "receive_message"
	MsgTypeMessageAck     = "message_ack"
	MsgTypeError          = "error"
	MsgTypePong           = "pong"
)

// Error codes carried by error frames.
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeNotInRoom     = "NOT_IN_ROOM"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// BaseMessage is decoded first to dispatch on Type.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> relay

type JoinRoomMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type SendMessageMessage struct {
	Type    string  `json:"type"`
	RoomID  string  `json:"room_id"`
	Message Message `json:"message"`
}

type LeaveRoomMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// Relay -> client

// MessageHistoryMessage is sent exactly once after each join. It is the
// authoritative room log at join time.
type MessageHistoryMessage struct {
	Type     string    `json:"type"`
	RoomID   string    `json:"room_id"`
	Messages []Message `json:"messages"`
}

type ReceiveMessageMessage struct {
	Type    string  `json:"type"`
	RoomID  string  `json:"room_id"`
	Message Message `json:"message"`
}

type MessageAckMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"room_id"`
	ClientID string `json:"client_id"`
	ID       string `json:"id"`
}

type ErrorMessage struct {
	Type     string `json:"type"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	RoomID   string `json:"room_id,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
