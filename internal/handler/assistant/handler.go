package assistant

import (
	"github.com/gin-gonic/gin"

	"github.com/livsafe/livsafe-api/internal/handler"
	"github.com/livsafe/livsafe-api/internal/middleware"
	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/service/assistant"
	"github.com/livsafe/livsafe-api/pkg/httputil"
)

type Handler struct {
	service *assistant.Service
}

func NewHandler(service *assistant.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/assistant/chat", middleware.Doctor(h.Chat))
}

func (h *Handler) Chat(c *gin.Context, d *model.Doctor) {
	var req model.ChatRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	resp, err := h.service.Chat(c.Request.Context(), d, req)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, resp)
}
