// Package medicalimage runs the upload and grading workflow and guards access
// to stored records.
package medicalimage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
	"github.com/livsafe/livsafe-api/internal/service/audit"
	"github.com/livsafe/livsafe-api/internal/service/grading"
	"github.com/livsafe/livsafe-api/internal/service/relation"
	"github.com/livsafe/livsafe-api/internal/storage"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
	"github.com/livsafe/livsafe-api/pkg/metrics"
	"github.com/livsafe/livsafe-api/pkg/pagination"
)

// DefaultMaxBytes bounds an uploaded image when no limit is configured.
const DefaultMaxBytes = 10 << 20

// AnalysisCompleted is the status of a graded upload.
const AnalysisCompleted = "completed"

// UploadInput is one multipart upload, already read into memory.
type UploadInput struct {
	Data          []byte
	Filename      string
	PatientName   string
	PatientAge    *int
	PatientGender model.Gender
	Description   string
}

// ListQuery narrows a record listing. Nil fields are unfiltered.
type ListQuery struct {
	DoctorID  *primitive.ObjectID
	PatientID *primitive.ObjectID
}

type Service struct {
	store     repository.Store
	relations *relation.Service
	files     storage.ImageStore
	grader    grading.Grader
	auditor   *audit.Service
	metrics   *metrics.Metrics
	now       model.Clock
	maxBytes  int64
}

func NewService(store repository.Store, relations *relation.Service, files storage.ImageStore, grader grading.Grader,
	auditor *audit.Service, m *metrics.Metrics, now model.Clock, maxBytes int64) *Service {
	if now == nil {
		now = time.Now
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Service{
		store:     store,
		relations: relations,
		files:     files,
		grader:    grader,
		auditor:   auditor,
		metrics:   m,
		now:       now,
		maxBytes:  maxBytes,
	}
}

// MaxBytes is the largest accepted image.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Upload stores and grades an image, then files it under the named patient,
// creating and linking the patient when needed.
func (s *Service) Upload(ctx context.Context, doctor *model.Doctor, in UploadInput) (*model.UploadResult, error) {
	if int64(len(in.Data)) > s.maxBytes {
		return nil, apperrors.TooLarge(fmt.Sprintf("image exceeds %d bytes", s.maxBytes))
	}
	if len(in.Data) == 0 {
		return nil, apperrors.Validation("image file is required", nil)
	}
	patientName := strings.TrimSpace(in.PatientName)
	if patientName == "" {
		return nil, apperrors.Validation("patientName is required", nil)
	}

	mt := mimetype.Detect(in.Data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, apperrors.Unsupported("only image uploads are allowed")
	}

	name := uuid.NewString() + mt.Extension()
	if err := s.files.Save(ctx, name, in.Data); err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	result, err := s.fileUpload(ctx, doctor, name, mt.String(), patientName, in)
	if err != nil {
		if rmErr := s.files.Remove(context.WithoutCancel(ctx), name); rmErr != nil && !errors.Is(rmErr, storage.ErrNotFound) {
			log.Error().Err(rmErr).Str("file", name).Msg("Failed to remove image after failed upload")
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordsUploaded.Inc()
	}
	s.auditor.Record(ctx, audit.Entry{
		Actor:      model.DoctorPrincipal(doctor),
		Action:     model.AuditActionCreate,
		EntityType: model.AuditEntityRecord,
		EntityID:   result.MedicalImage.ID.Hex(),
		Metadata:   map[string]string{"patientId": result.Patient.ID.Hex(), "grade": string(result.Analysis.Grade)},
	})
	return result, nil
}

func (s *Service) fileUpload(ctx context.Context, doctor *model.Doctor, name, contentType, patientName string, in UploadInput) (*model.UploadResult, error) {
	assessment, err := s.grader.Grade(ctx, grading.Image{Name: name, ContentType: contentType, Data: in.Data})
	if err != nil {
		return nil, apperrors.Unavailable("image grading failed", err)
	}

	now := s.now().UTC()
	confidence := assessment.Confidence
	record := &model.MedicalImage{
		Doctor:      doctor.ID,
		ImageURL:    storage.URL(name),
		Description: strings.TrimSpace(in.Description),
		Grade:       assessment.Grade,
		Confidence:  &confidence,
		UploadedAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var patient *model.Patient
	err = s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		found, err := s.findOrCreatePatient(ctx, patientName, in, now)
		if err != nil {
			return err
		}
		if err := s.relations.EnsureLinked(ctx, doctor.ID, found.ID); err != nil {
			return err
		}
		if !found.HasDoctor(doctor.ID) {
			found.Doctors = append(found.Doctors, doctor.ID)
		}

		patient = found
		record.Patient = found.ID
		if err := s.store.MedicalImages.Create(ctx, record); err != nil {
			return fmt.Errorf("failed to create record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.UploadResult{
		ID:           record.RecordID(),
		MedicalImage: record,
		Patient:      patient,
		Analysis: model.Analysis{
			Grade:      assessment.Grade,
			Confidence: assessment.Confidence,
			Status:     AnalysisCompleted,
		},
	}, nil
}

func (s *Service) findOrCreatePatient(ctx context.Context, fullName string, in UploadInput, now time.Time) (*model.Patient, error) {
	patient, err := s.store.Patients.FindByFullName(ctx, fullName)
	if err == nil {
		return patient, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to find patient: %w", err)
	}

	patient = &model.Patient{
		FullName:  fullName,
		Gender:    model.Gender(strings.ToLower(string(in.PatientGender))),
		Age:       in.PatientAge,
		Doctors:   []primitive.ObjectID{},
		CreatedAt: now,
	}
	if err := s.store.Patients.Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}
	return patient, nil
}

// List scopes doctors to their own records and organizations to their roster.
func (s *Service) List(ctx context.Context, p model.Principal, q ListQuery, params pagination.Params) ([]model.RecordDetail, int64, error) {
	filter := repository.RecordFilter{}
	switch p.Kind {
	case model.KindDoctor:
		filter.DoctorIDs = []primitive.ObjectID{p.Doctor.ID}
	case model.KindOrganization:
		roster, err := s.store.Doctors.List(ctx, repository.DoctorFilter{OrganizationID: &p.Organization.ID})
		if err != nil {
			return nil, 0, fmt.Errorf("failed to list roster: %w", err)
		}
		ids := make([]primitive.ObjectID, 0, len(roster))
		for _, d := range roster {
			ids = append(ids, d.ID)
		}
		if q.DoctorID != nil {
			if !model.ContainsID(ids, *q.DoctorID) {
				return nil, 0, apperrors.Forbidden("doctor is not part of your organization")
			}
			ids = []primitive.ObjectID{*q.DoctorID}
		}
		filter.DoctorIDs = ids
	default:
		return nil, 0, apperrors.Forbidden("not allowed to list records")
	}
	if q.PatientID != nil {
		filter.PatientIDs = []primitive.ObjectID{*q.PatientID}
	}

	records, total, err := s.store.MedicalImages.ListDetailed(ctx, filter,
		repository.Page{Skip: params.Skip(), Limit: int64(params.Limit)})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list records: %w", err)
	}
	return records, total, nil
}

func (s *Service) load(ctx context.Context, id primitive.ObjectID) (*model.MedicalImage, error) {
	record, err := s.store.MedicalImages.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("medical image", err)
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	return record, nil
}

func (s *Service) canView(ctx context.Context, p model.Principal, record *model.MedicalImage) error {
	switch p.Kind {
	case model.KindDoctor:
		if record.Doctor == p.Doctor.ID {
			return nil
		}
	case model.KindOrganization:
		doctor, err := s.store.Doctors.GetByID(ctx, record.Doctor)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to load doctor: %w", err)
		}
		if err == nil && doctor.BelongsTo(p.Organization.ID) {
			return nil
		}
	}
	return apperrors.Forbidden("not allowed to access this record")
}

func (s *Service) owned(ctx context.Context, doctor *model.Doctor, id primitive.ObjectID) (*model.MedicalImage, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Doctor != doctor.ID {
		return nil, apperrors.Forbidden("only the uploading doctor can change this record")
	}
	return record, nil
}

// Get returns the record with its patient joined in.
func (s *Service) Get(ctx context.Context, p model.Principal, id primitive.ObjectID) (*model.RecordDetail, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, p, record); err != nil {
		return nil, err
	}

	var summary *model.PatientSummary
	patient, err := s.store.Patients.GetByID(ctx, record.Patient)
	switch {
	case err == nil:
		summary = patient.Summary()
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	detail := model.NewRecordDetail(record, summary)
	return &detail, nil
}

func (s *Service) Update(ctx context.Context, doctor *model.Doctor, id primitive.ObjectID, req model.UpdateMedicalImageRequest) (*model.MedicalImage, error) {
	record, err := s.owned(ctx, doctor, id)
	if err != nil {
		return nil, err
	}

	if req.Description != nil {
		record.Description = strings.TrimSpace(*req.Description)
	}
	if req.Grade != nil {
		if !req.Grade.Valid() {
			return nil, apperrors.Validation("grade must be one of F0, F1, F2, F3, F4", nil)
		}
		record.Grade = *req.Grade
	}
	if req.Confidence != nil {
		c := *req.Confidence
		if c < 0 || c > 100 {
			return nil, apperrors.Validation("confidence must be between 0 and 100", nil)
		}
		record.Confidence = &c
	}
	record.UpdatedAt = s.now().UTC()

	if err := s.store.MedicalImages.Update(ctx, record); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("medical image", err)
		}
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	s.auditor.Record(ctx, audit.Entry{
		Actor:      model.DoctorPrincipal(doctor),
		Action:     model.AuditActionUpdate,
		EntityType: model.AuditEntityRecord,
		EntityID:   id.Hex(),
	})
	return record, nil
}

func (s *Service) Delete(ctx context.Context, doctor *model.Doctor, id primitive.ObjectID) error {
	record, err := s.owned(ctx, doctor, id)
	if err != nil {
		return err
	}
	if err := s.store.MedicalImages.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("medical image", err)
		}
		return fmt.Errorf("failed to delete record: %w", err)
	}
	storage.RemoveURLs(ctx, s.files, record.ImageURL)

	s.auditor.Record(ctx, audit.Entry{
		Actor:      model.DoctorPrincipal(doctor),
		Action:     model.AuditActionDelete,
		EntityType: model.AuditEntityRecord,
		EntityID:   id.Hex(),
	})
	return nil
}

// OpenFile opens a stored image by its base name.
func (s *Service) OpenFile(ctx context.Context, name string) (io.ReadSeekCloser, time.Time, error) {
	clean, err := storage.CleanName(name)
	if err != nil {
		return nil, time.Time{}, apperrors.Validation("invalid file name", err)
	}
	f, modTime, err := s.files.Open(ctx, clean)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, time.Time{}, apperrors.NotFound("file", err)
		}
		return nil, time.Time{}, fmt.Errorf("failed to open file: %w", err)
	}
	return f, modTime, nil
}
