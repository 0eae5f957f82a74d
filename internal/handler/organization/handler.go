package organization

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/livsafe/livsafe-api/internal/handler"
	"github.com/livsafe/livsafe-api/internal/middleware"
	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/service/organization"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
	"github.com/livsafe/livsafe-api/pkg/httputil"
	"github.com/livsafe/livsafe-api/pkg/pagination"
)

type Handler struct {
	service *organization.Service
}

func NewHandler(service *organization.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the organization routes. The acting organization is
// always the caller; no route takes an organization id for writes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	orgs := r.Group("/organization")
	{
		orgs.GET("/dashboard", middleware.Organization(h.Dashboard))
		orgs.GET("/analytics", middleware.Organization(h.Analytics))
		orgs.GET("/patients", middleware.Organization(h.Patients))

		orgs.GET("/doctors", middleware.Organization(h.ListDoctors))
		orgs.POST("/doctors", middleware.Organization(h.AddDoctor))
		orgs.DELETE("/doctors/:doctorId", middleware.Organization(h.RemoveDoctor))

		orgs.GET("/profile", middleware.Organization(h.GetProfile))
		orgs.PUT("/profile", middleware.Organization(h.UpdateProfile))
		orgs.DELETE("/profile", middleware.Organization(h.Delete))

		orgs.GET("/all", middleware.Any(h.Directory))
		orgs.GET("/:id", middleware.Any(h.Get))
	}
}

func (h *Handler) Dashboard(c *gin.Context, org *model.Organization) {
	dashboard, err := h.service.Dashboard(c.Request.Context(), org)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, dashboard)
}

func (h *Handler) Analytics(c *gin.Context, org *model.Organization) {
	days := organization.DefaultWindowDays
	if raw := strings.TrimSpace(c.Query("days")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			httputil.Fail(c, apperrors.Validation("days must be a number", err))
			return
		}
		days = v
	}

	analytics, err := h.service.Analytics(c.Request.Context(), org, days)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, analytics)
}

func (h *Handler) Patients(c *gin.Context, org *model.Organization) {
	params := pagination.FromContext(c)
	patients, total, err := h.service.Patients(c.Request.Context(), org, c.Query("search"), params)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithPagination(c, patients, pagination.Build(params, total))
}

func (h *Handler) ListDoctors(c *gin.Context, org *model.Organization) {
	doctors, err := h.service.Doctors(c.Request.Context(), org)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doctors)
}

func (h *Handler) AddDoctor(c *gin.Context, org *model.Organization) {
	var req model.CreateDoctorRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	doctor, err := h.service.AddDoctor(c.Request.Context(), org, req)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, "Doctor added successfully", doctor)
}

func (h *Handler) RemoveDoctor(c *gin.Context, org *model.Organization) {
	id, ok := handler.ParamID(c, "doctorId", "doctor")
	if !ok {
		return
	}
	if err := h.service.RemoveDoctor(c.Request.Context(), org, id); err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithMessage(c, "Doctor removed from organization")
}

func (h *Handler) GetProfile(c *gin.Context, org *model.Organization) {
	profile, err := h.service.Profile(c.Request.Context(), org)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, profile)
}

func (h *Handler) UpdateProfile(c *gin.Context, org *model.Organization) {
	var req model.UpdateOrganizationRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	updated, err := h.service.UpdateProfile(c.Request.Context(), org, req)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusOK, "Profile updated successfully", updated)
}

func (h *Handler) Delete(c *gin.Context, org *model.Organization) {
	if err := h.service.Delete(c.Request.Context(), org); err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithMessage(c, "Organization deleted successfully")
}

func (h *Handler) Directory(c *gin.Context, _ model.Principal) {
	orgs, err := h.service.Directory(c.Request.Context())
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, orgs)
}

func (h *Handler) Get(c *gin.Context, _ model.Principal) {
	id, ok := handler.ParamID(c, "id", "organization")
	if !ok {
		return
	}
	org, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, org)
}
