package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
	"github.com/livsafe/livsafe-api/internal/service/audit"
	"github.com/livsafe/livsafe-api/internal/service/relation"
	"github.com/livsafe/livsafe-api/internal/storage"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
	"github.com/livsafe/livsafe-api/pkg/pagination"
)

// SearchLimit caps the quick-search result list.
const SearchLimit = 50

// Query holds the optional patient filters shared by list and search.
type Query struct {
	Search string
	Gender model.Gender
	Age    *int
}

func (q Query) filter() repository.PatientFilter {
	return repository.PatientFilter{
		Search: strings.TrimSpace(q.Search),
		Gender: model.Gender(strings.ToLower(string(q.Gender))),
		Age:    q.Age,
	}
}

type Service struct {
	store     repository.Store
	relations *relation.Service
	files     storage.ImageStore
	auditor   *audit.Service
	now       model.Clock
}

func NewService(store repository.Store, relations *relation.Service, files storage.ImageStore, auditor *audit.Service, now model.Clock) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:     store,
		relations: relations,
		files:     files,
		auditor:   auditor,
		now:       now,
	}
}

// List pages through patients, newest first.
func (s *Service) List(ctx context.Context, q Query, p pagination.Params) ([]*model.Patient, int64, error) {
	patients, total, err := s.store.Patients.List(ctx, q.filter(),
		repository.Page{Skip: p.Skip(), Limit: int64(p.Limit)}, repository.SortNewest)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, total, nil
}

// Search returns up to SearchLimit matches ordered by name.
func (s *Service) Search(ctx context.Context, q Query) ([]*model.Patient, error) {
	patients, _, err := s.store.Patients.List(ctx, q.filter(), repository.Page{Limit: SearchLimit}, repository.SortByName)
	if err != nil {
		return nil, fmt.Errorf("failed to search patients: %w", err)
	}
	return patients, nil
}

func (s *Service) ByDoctor(ctx context.Context, doctorID primitive.ObjectID) ([]*model.Patient, error) {
	if _, err := s.store.Doctors.GetByID(ctx, doctorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("doctor", err)
		}
		return nil, fmt.Errorf("failed to load doctor: %w", err)
	}
	patients, _, err := s.store.Patients.List(ctx,
		repository.PatientFilter{DoctorIDs: []primitive.ObjectID{doctorID}}, repository.Page{}, repository.SortNewest)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (s *Service) get(ctx context.Context, id primitive.ObjectID) (*model.Patient, error) {
	patient, err := s.store.Patients.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("patient", err)
		}
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	return patient, nil
}

// Get returns the patient with their records, newest first.
func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (*model.PatientDetail, error) {
	patient, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	records, _, err := s.store.MedicalImages.List(ctx,
		repository.RecordFilter{PatientIDs: []primitive.ObjectID{id}}, repository.Page{})
	if err != nil {
		return nil, fmt.Errorf("failed to list patient records: %w", err)
	}
	return &model.PatientDetail{Patient: patient, MedicalImages: records}, nil
}

// Create stores a patient. A doctor creating a patient is linked to it.
func (s *Service) Create(ctx context.Context, p model.Principal, req model.CreatePatientRequest) (*model.Patient, error) {
	patient := &model.Patient{
		FullName:  strings.TrimSpace(req.FullName),
		Gender:    model.Gender(strings.ToLower(string(req.Gender))),
		Age:       req.Age,
		Doctors:   []primitive.ObjectID{},
		CreatedAt: s.now().UTC(),
	}

	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Patients.Create(ctx, patient); err != nil {
			return fmt.Errorf("failed to create patient: %w", err)
		}
		if p.Kind == model.KindDoctor {
			if err := s.relations.Link(ctx, p.Doctor.ID, patient.ID); err != nil {
				return err
			}
			patient.Doctors = []primitive.ObjectID{p.Doctor.ID}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, audit.Entry{
		Actor:      p,
		Action:     model.AuditActionCreate,
		EntityType: model.AuditEntityPatient,
		EntityID:   patient.ID.Hex(),
	})
	return patient, nil
}

func (s *Service) Update(ctx context.Context, p model.Principal, id primitive.ObjectID, req model.UpdatePatientRequest) (*model.Patient, error) {
	patient, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, apperrors.Validation("fullName must not be empty", nil)
		}
		patient.FullName = name
	}
	if req.Gender != nil {
		patient.Gender = model.Gender(strings.ToLower(string(*req.Gender)))
	}
	if req.Age != nil {
		age := *req.Age
		patient.Age = &age
	}

	if err := s.store.Patients.Update(ctx, patient); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("patient", err)
		}
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}

	s.auditor.Record(ctx, audit.Entry{
		Actor:      p,
		Action:     model.AuditActionUpdate,
		EntityType: model.AuditEntityPatient,
		EntityID:   id.Hex(),
	})
	return patient, nil
}

// Delete cascades through doctors and records, then removes the image files.
func (s *Service) Delete(ctx context.Context, p model.Principal, id primitive.ObjectID) error {
	urls, err := s.relations.DeletePatient(ctx, id)
	if err != nil {
		return err
	}
	storage.RemoveURLs(ctx, s.files, urls...)

	s.auditor.Record(ctx, audit.Entry{
		Actor:      p,
		Action:     model.AuditActionDelete,
		EntityType: model.AuditEntityPatient,
		EntityID:   id.Hex(),
		Metadata:   map[string]string{"deletedRecords": fmt.Sprint(len(urls))},
	})
	return nil
}
