package doctor

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/livsafe/livsafe-api/internal/handler"
	"github.com/livsafe/livsafe-api/internal/middleware"
	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/service/doctor"
	"github.com/livsafe/livsafe-api/pkg/httputil"
	"github.com/livsafe/livsafe-api/pkg/pagination"
)

type Handler struct {
	service *doctor.Service
}

func NewHandler(service *doctor.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctor")
	{
		doctors.GET("/dashboard", middleware.Doctor(h.Dashboard))
		doctors.GET("/records", middleware.Doctor(h.ListRecords))
		doctors.GET("/records/:id", middleware.Doctor(h.GetRecord))
		doctors.DELETE("/records/:id", middleware.Doctor(h.DeleteRecord))
		doctors.GET("/all", middleware.Any(h.Directory))
		doctors.GET("/profile/:id", middleware.Any(h.GetProfile))
		doctors.PUT("/profile", middleware.Doctor(h.UpdateProfile))
		doctors.PUT("/assign-patient", middleware.Any(h.AssignPatient))
	}
}

func (h *Handler) Dashboard(c *gin.Context, d *model.Doctor) {
	dashboard, err := h.service.Dashboard(c.Request.Context(), d)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, dashboard)
}

func (h *Handler) ListRecords(c *gin.Context, d *model.Doctor) {
	params := pagination.FromContext(c)
	records, total, err := h.service.Records(c.Request.Context(), d, params)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithPagination(c, records, pagination.Build(params, total))
}

func (h *Handler) GetRecord(c *gin.Context, d *model.Doctor) {
	id, ok := handler.ParamID(c, "id", "record")
	if !ok {
		return
	}
	record, err := h.service.GetRecord(c.Request.Context(), d, id)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, record)
}

func (h *Handler) DeleteRecord(c *gin.Context, d *model.Doctor) {
	id, ok := handler.ParamID(c, "id", "record")
	if !ok {
		return
	}
	if err := h.service.DeleteRecord(c.Request.Context(), d, id); err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithMessage(c, "Record deleted successfully")
}

func (h *Handler) Directory(c *gin.Context, _ model.Principal) {
	doctors, err := h.service.Directory(c.Request.Context())
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doctors)
}

func (h *Handler) GetProfile(c *gin.Context, p model.Principal) {
	id, ok := handler.ParamID(c, "id", "doctor")
	if !ok {
		return
	}
	profile, err := h.service.Profile(c.Request.Context(), p, id)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, profile)
}

func (h *Handler) UpdateProfile(c *gin.Context, d *model.Doctor) {
	var req model.UpdateDoctorRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	updated, err := h.service.UpdateProfile(c.Request.Context(), d, req)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusOK, "Profile updated successfully", updated)
}

func (h *Handler) AssignPatient(c *gin.Context, p model.Principal) {
	var req model.AssignPatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	if err := h.service.AssignPatient(c.Request.Context(), p, req); err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithMessage(c, "Patient assigned successfully")
}
