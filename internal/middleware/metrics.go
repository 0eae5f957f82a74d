package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/livsafe/livsafe-api/pkg/metrics"
)

// Metrics observes every request by route template, never by raw path.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		m.RequestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
