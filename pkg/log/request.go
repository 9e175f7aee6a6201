package log

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const headerRequestID = "X-Request-ID"

// requestID keeps a caller-supplied id so traces line up across services.
func requestID(header string) string {
	if header != "" {
		return header
	}
	return uuid.NewString()
}

func requestLogger(base zerolog.Logger, reqID, method, path, ip string) zerolog.Logger {
	return base.With().
		Str(FieldRequestID, reqID).
		Str(FieldMethod, method).
		Str(FieldPath, path).
		Str(FieldClientIP, ip).
		Logger()
}

// logCompleted writes the per-request summary line. Server errors log at
// error level; upgraded connections at debug.
func logCompleted(l zerolog.Logger, status int, start time.Time, upgraded bool, errs string) {
	evt := l.Info()
	switch {
	case upgraded:
		evt = l.Debug().Bool("upgraded", true)
	case status >= 500:
		evt = l.Error()
	}
	if errs != "" {
		evt = evt.Str("errors", errs)
	}
	evt.Int(FieldStatus, status).
		Float64(FieldLatency, float64(time.Since(start).Milliseconds())).
		Msg("request completed")
}
