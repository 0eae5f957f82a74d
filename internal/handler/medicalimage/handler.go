package medicalimage

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/livsafe/livsafe-api/internal/handler"
	"github.com/livsafe/livsafe-api/internal/middleware"
	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/service/medicalimage"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
	"github.com/livsafe/livsafe-api/pkg/httputil"
	"github.com/livsafe/livsafe-api/pkg/pagination"
)

// multipartOverhead leaves room for the form fields and boundaries around the image.
const multipartOverhead = 1 << 20

type Handler struct {
	service *medicalimage.Service
}

func NewHandler(service *medicalimage.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	images := r.Group("/medical-images")
	{
		images.POST("/upload", middleware.UploadLimit(h.service.MaxBytes()+multipartOverhead), middleware.Doctor(h.Upload))
		images.GET("", middleware.Any(h.List))
		images.GET("/file/:filename", middleware.Any(h.ServeFile))
		images.GET("/:id", middleware.Any(h.Get))
		images.PUT("/:id", middleware.Doctor(h.Update))
		images.DELETE("/:id", middleware.Doctor(h.Delete))
	}
}

func (h *Handler) tooLarge() error {
	return apperrors.TooLarge(fmt.Sprintf("image exceeds %d bytes", h.service.MaxBytes()))
}

func (h *Handler) Upload(c *gin.Context, d *model.Doctor) {
	header, err := c.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.Fail(c, h.tooLarge())
			return
		}
		httputil.Fail(c, apperrors.Validation("image file is required", err))
		return
	}
	if header.Size > h.service.MaxBytes() {
		httputil.Fail(c, h.tooLarge())
		return
	}

	in := medicalimage.UploadInput{
		Filename:      header.Filename,
		PatientName:   c.PostForm("patientName"),
		PatientGender: model.Gender(strings.ToLower(strings.TrimSpace(c.PostForm("patientGender")))),
		Description:   c.PostForm("description"),
	}
	if in.PatientGender != "" && !in.PatientGender.Valid() {
		httputil.Fail(c, apperrors.Validation("patientGender must be male, female or other", nil))
		return
	}
	if raw := strings.TrimSpace(c.PostForm("patientAge")); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil || age < 0 || age > 150 {
			httputil.Fail(c, apperrors.Validation("patientAge must be a number between 0 and 150", err))
			return
		}
		in.PatientAge = &age
	}

	f, err := header.Open()
	if err != nil {
		httputil.Fail(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer f.Close()
	in.Data, err = io.ReadAll(io.LimitReader(f, h.service.MaxBytes()+1))
	if err != nil {
		httputil.Fail(c, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	result, err := h.service.Upload(c.Request.Context(), d, in)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, "Medical image uploaded and analyzed successfully", result)
}

func (h *Handler) List(c *gin.Context, p model.Principal) {
	doctorID, ok := handler.QueryID(c, "doctorId")
	if !ok {
		return
	}
	patientID, ok := handler.QueryID(c, "patientId")
	if !ok {
		return
	}

	params := pagination.FromContext(c)
	records, total, err := h.service.List(c.Request.Context(), p,
		medicalimage.ListQuery{DoctorID: doctorID, PatientID: patientID}, params)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithPagination(c, records, pagination.Build(params, total))
}

func (h *Handler) Get(c *gin.Context, p model.Principal) {
	id, ok := handler.ParamID(c, "id", "medical image")
	if !ok {
		return
	}
	record, err := h.service.Get(c.Request.Context(), p, id)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, record)
}

func (h *Handler) Update(c *gin.Context, d *model.Doctor) {
	id, ok := handler.ParamID(c, "id", "medical image")
	if !ok {
		return
	}
	var req model.UpdateMedicalImageRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	updated, err := h.service.Update(c.Request.Context(), d, id, req)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusOK, "Medical image updated successfully", updated)
}

func (h *Handler) Delete(c *gin.Context, d *model.Doctor) {
	id, ok := handler.ParamID(c, "id", "medical image")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), d, id); err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.RespondWithMessage(c, "Medical image deleted successfully")
}

func (h *Handler) ServeFile(c *gin.Context, _ model.Principal) {
	name := c.Param("filename")
	f, modTime, err := h.service.OpenFile(c.Request.Context(), name)
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	defer f.Close()

	c.Header("Cache-Control", "private, max-age=3600")
	http.ServeContent(c.Writer, c.Request, name, modTime, f)
}
