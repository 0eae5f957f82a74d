package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
	"github.com/livsafe/livsafe-api/pkg/httputil"
)

const pingTimeout = 2 * time.Second

type Status struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
}

type Handler struct {
	pinger      repository.Pinger
	environment string
	now         model.Clock
}

func NewHandler(pinger repository.Pinger, environment string, now model.Clock) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{pinger: pinger, environment: environment, now: now}
}

// RegisterRoutes mounts liveness at /health and /api/health and readiness at
// /api/health/ready.
func (h *Handler) RegisterRoutes(root *gin.Engine, api *gin.RouterGroup) {
	root.GET("/health", h.LivenessCheck)
	api.GET("/health", h.LivenessCheck)
	api.GET("/health/ready", h.ReadinessCheck)
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Status{
		Success:     true,
		Message:     "LivSafe API is running",
		Timestamp:   h.now().UTC(),
		Environment: h.environment,
	})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	if err := h.pinger.Ping(ctx); err != nil {
		httputil.Fail(c, apperrors.Unavailable("document store unavailable", err))
		return
	}
	c.JSON(http.StatusOK, Status{
		Success:     true,
		Message:     "ready",
		Timestamp:   h.now().UTC(),
		Environment: h.environment,
	})
}
