package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
	"github.com/livsafe/livsafe-api/pkg/httputil"
)

const internalMessage = "internal server error"

// ErrorHandler renders the last error attached to the context as the error
// envelope. Underlying error text is only exposed in development.
func ErrorHandler(development bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		lastErr := c.Errors.Last().Err
		status := http.StatusInternalServerError
		message := internalMessage
		switch appErr, ok := apperrors.As(lastErr); {
		case ok:
			status = appErr.StatusCode()
			if status != http.StatusInternalServerError {
				message = appErr.Message
			}
		case errors.Is(lastErr, context.DeadlineExceeded):
			status = http.StatusServiceUnavailable
			message = "request timed out"
		}

		event := log.Debug()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.Err(lastErr).
			Str("request_id", c.GetString(ContextRequestID)).
			Str("path", c.Request.URL.Path).
			Str("method", c.Request.Method).
			Int("status", status).
			Msg("Request error")

		if c.Writer.Written() {
			return
		}

		resp := httputil.Response{Success: false, Message: message}
		if development {
			resp.Error = lastErr.Error()
		}
		c.JSON(status, resp)
	}
}
