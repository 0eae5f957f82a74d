package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
	"github.com/livsafe/livsafe-api/pkg/httputil"
)

// DefaultBodyLimit matches the JSON body limit of the API.
const DefaultBodyLimit = 10 << 20

// BodyLimit rejects bodies over maxBytes. Requests whose path starts with one
// of skip are left to a route-specific limit.
func BodyLimit(maxBytes int64, skip ...string) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultBodyLimit
	}
	return func(c *gin.Context) {
		for _, prefix := range skip {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}
		limitBody(c, maxBytes)
	}
}

func limitBody(c *gin.Context, maxBytes int64) {
	if c.Request.ContentLength > maxBytes {
		httputil.Fail(c, apperrors.TooLarge(fmt.Sprintf("request body exceeds %d bytes", maxBytes)))
		return
	}
	if c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	}
	c.Next()
}

// UploadLimit is BodyLimit for a single multipart route.
func UploadLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limitBody(c, maxBytes)
	}
}
