package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Service
	FieldService    = "service"
	FieldInstanceID = "instance_id"

	// Chat
	FieldRoomKey   = "room_key"
	FieldSender    = "sender"
	FieldReceiver  = "receiver"
	FieldClientID  = "client_id"
	FieldMessageID = "message_id"
	FieldConnID    = "conn_id"
	FieldState     = "state"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
