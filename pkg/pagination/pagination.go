package pagination

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/livsafe/livsafe-api/pkg/httputil"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps (page-1)*limit inside int64 on every platform.
	MaxPage = math.MaxInt32
)

// Params holds page-based pagination input.
type Params struct {
	Page  int
	Limit int
}

// Skip returns the number of documents before the requested page.
func (p Params) Skip() int64 {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	return int64(p.Page-1) * int64(p.Limit)
}

// FromContext parses page and limit query parameters, clamping to sane bounds.
func FromContext(c *gin.Context) Params {
	return Normalize(atoi(c.Query("page")), atoi(c.Query("limit")), DefaultLimit)
}

// FromContextWithDefault is FromContext with a route-specific default limit.
func FromContextWithDefault(c *gin.Context, defaultLimit int) Params {
	return Normalize(atoi(c.Query("page")), atoi(c.Query("limit")), defaultLimit)
}

// Normalize applies defaults and the max limit.
func Normalize(page, limit, defaultLimit int) Params {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit}
}

// Build computes the pagination block for a total count.
func Build(p Params, total int64) httputil.Pagination {
	totalPages := 0
	if p.Limit > 0 {
		totalPages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return httputil.Pagination{
		CurrentPage:  p.Page,
		TotalPages:   totalPages,
		TotalRecords: total,
		HasNextPage:  p.Page < totalPages,
		HasPrevPage:  p.Page > 1,
	}
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
