package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/livsafe/livsafe-api/internal/service/audit"
)

const (
	HeaderXRequestID = "X-Request-ID"
	ContextRequestID = "request_id"

	maxRequestIDLen = 128
)

// RequestID tags each request with an id, reusing a sane inbound one, and
// hands caller details to the audit trail.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderXRequestID)
		if rid == "" || len(rid) > maxRequestIDLen {
			rid = uuid.New().String()
		}

		c.Set(ContextRequestID, rid)
		c.Header(HeaderXRequestID, rid)
		c.Request = c.Request.WithContext(audit.WithClient(c.Request.Context(), audit.ClientInfo{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			RequestID: rid,
		}))
		c.Next()
	}
}
