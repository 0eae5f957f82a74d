package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/livsafe/livsafe-api/internal/handler"
	"github.com/livsafe/livsafe-api/internal/middleware"
	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/service/patient"
	"github.com/livsafe/livsafe-api/pkg/httputil"
	"github.com/livsafe/livsafe-api/pkg/pagination"
)

type Handler struct {
	service *patient.Service
}

func NewHandler(service *patient.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the patient routes. Both principal kinds may use them.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.GET("", middleware.Any(h.ListPatients))
		patients.GET("/search", middleware.Any(h.SearchPatients))
		patients.GET("/doctor/:doctorId", middleware.Any(h.ListByDoctor))
		patients.GET("/:id", middleware.Any(h.GetPatient))
		patients.POST("", middleware.Any(h.CreatePatient))
		patients.PUT("/:id", middleware.Any(h.UpdatePatient))
		patients.DELETE("/:id", middleware.Any(h.DeletePatient))
	}
}

func query(c *gin.Context, searchParam string) (patient.Query, bool) {
	age, ok := handler.QueryInt(c, "age")
	if !ok {
		return patient.Query{}, false
	}
	return patient.Query{
		Search: c.Query(searchParam),
		Gender: model.Gender(c.Query("gender")),
		Age:    age,
	}, true
}

func (h *Handler) ListPatients(c *gin.Context, _ model.Principal) {
	q, ok := query(c, "search")
	if !ok {
		return
	}
	params := pagination.FromContext(c)
	patients, total, err := h.service.List(c.Request.Context(), q, params)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithPagination(c, patients, pagination.Build(params, total))
}

func (h *Handler) SearchPatients(c *gin.Context, _ model.Principal) {
	q, ok := query(c, "q")
	if !ok {
		return
	}
	patients, err := h.service.Search(c.Request.Context(), q)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, patients)
}

func (h *Handler) ListByDoctor(c *gin.Context, _ model.Principal) {
	doctorID, ok := handler.ParamID(c, "doctorId", "doctor")
	if !ok {
		return
	}
	patients, err := h.service.ByDoctor(c.Request.Context(), doctorID)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, patients)
}

func (h *Handler) GetPatient(c *gin.Context, _ model.Principal) {
	id, ok := handler.ParamID(c, "id", "patient")
	if !ok {
		return
	}
	detail, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, detail)
}

func (h *Handler) CreatePatient(c *gin.Context, p model.Principal) {
	var req model.CreatePatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	created, err := h.service.Create(c.Request.Context(), p, req)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, "Patient created successfully", created)
}

func (h *Handler) UpdatePatient(c *gin.Context, p model.Principal) {
	id, ok := handler.ParamID(c, "id", "patient")
	if !ok {
		return
	}
	var req model.UpdatePatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	updated, err := h.service.Update(c.Request.Context(), p, id, req)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusOK, "Patient updated successfully", updated)
}

func (h *Handler) DeletePatient(c *gin.Context, p model.Principal) {
	id, ok := handler.ParamID(c, "id", "patient")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), p, id); err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithMessage(c, "Patient deleted successfully")
}
