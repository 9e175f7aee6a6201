package log

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// GinMiddleware tags every request with an X-Request-ID and stores a child
// logger in the request context.
func GinMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := requestID(c.GetHeader(headerRequestID))
		child := requestLogger(logger, reqID, c.Request.Method, c.FullPath(), c.ClientIP())

		c.Header(headerRequestID, reqID)
		c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), child))

		c.Next()

		var errs string
		if len(c.Errors) > 0 {
			errs = c.Errors.String()
		}
		logCompleted(child, c.Writer.Status(), start, false, errs)
	}
}
