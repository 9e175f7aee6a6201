package audit

import (
	"context"

	"github.com/Hajira-org/hajira-chat/pkg/log"
)

// Audit actions for relay-service.
const (
	ActionConnect     = "relay.connect"
	ActionJoinRoom    = "relay.join_room"
	ActionLeaveRoom   = "relay.leave_room"
	ActionSendMessage = "relay.send_message"
	ActionRejected    = "relay.rejected"
	ActionDisconnect  = "relay.disconnect"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, connID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldConnID, connID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, connID string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldConnID, connID).
		Str(FieldDetail, detail).
		Msg(msg)
}
