package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultRequestTimeout bounds store and outbound calls made for one request.
const DefaultRequestTimeout = 30 * time.Second

// Timeout puts a deadline on the request context. Handlers keep running on
// the request goroutine; calls that honour the context fail once it expires
// and ErrorHandler reports them as 503.
func Timeout(d time.Duration) gin.HandlerFunc {
	if d <= 0 {
		d = DefaultRequestTimeout
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
