package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/livsafe/livsafe-api/internal/handler"
	"github.com/livsafe/livsafe-api/internal/middleware"
	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/service/auth"
	"github.com/livsafe/livsafe-api/pkg/httputil"
)

type Handler struct {
	service *auth.Service
}

func NewHandler(service *auth.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts signup and login on public and the session routes on
// protected.
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	open := public.Group("/auth")
	{
		open.POST("/signup/doctor", h.SignupDoctor)
		open.POST("/signup/organization", h.SignupOrganization)
		open.POST("/login", h.Login)
	}

	session := protected.Group("/auth")
	{
		session.GET("/me", middleware.Any(h.Me))
		session.POST("/logout", middleware.Any(h.Logout))
		session.PUT("/password", middleware.Any(h.ChangePassword))
	}
}

func (h *Handler) SignupDoctor(c *gin.Context) {
	var req model.SignupDoctorRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.SignupDoctor(c.Request.Context(), req)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, "Doctor registered successfully", resp)
}

func (h *Handler) SignupOrganization(c *gin.Context) {
	var req model.SignupOrganizationRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.SignupOrganization(c.Request.Context(), req)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, "Organization registered successfully", resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusOK, "Login successful", resp)
}

func (h *Handler) Me(c *gin.Context, p model.Principal) {
	httputil.RespondWithSuccess(c, p.Profile())
}

func (h *Handler) Logout(c *gin.Context, p model.Principal) {
	h.service.Logout(c.Request.Context(), p)
	httputil.RespondWithMessage(c, "Logged out successfully")
}

func (h *Handler) ChangePassword(c *gin.Context, p model.Principal) {
	var req model.ChangePasswordRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), p, req); err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithMessage(c, "Password updated successfully")
}
