package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Pagination is the page metadata returned next to a page of results.
type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalRecords int64 `json:"totalRecords"`
	HasNextPage  bool  `json:"hasNextPage"`
	HasPrevPage  bool  `json:"hasPrevPage"`
}

// PaginatedResponse wraps paginated data
type PaginatedResponse struct {
	Items      interface{} `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

// RespondWithSuccess sends a 200 success envelope.
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// RespondWithStatus sends a success envelope with an explicit status and message.
func RespondWithStatus(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// RespondWithMessage sends a success envelope that only carries a message.
func RespondWithMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message})
}

// RespondWithPagination sends a page of items with its pagination block.
func RespondWithPagination(c *gin.Context, items interface{}, p Pagination) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: PaginatedResponse{
			Items:      items,
			Pagination: p,
		},
	})
}

// Fail hands err to the error middleware and stops the handler chain.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
