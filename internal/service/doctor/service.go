package doctor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
	"github.com/livsafe/livsafe-api/internal/service/audit"
	"github.com/livsafe/livsafe-api/internal/service/period"
	"github.com/livsafe/livsafe-api/internal/service/relation"
	"github.com/livsafe/livsafe-api/internal/storage"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
	"github.com/livsafe/livsafe-api/pkg/pagination"
)

// RecentRecords is how many records the dashboard shows.
const RecentRecords = 10

type Service struct {
	store     repository.Store
	relations *relation.Service
	files     storage.ImageStore
	auditor   *audit.Service
	calendar  period.Calendar
}

func NewService(store repository.Store, relations *relation.Service, files storage.ImageStore, auditor *audit.Service, calendar period.Calendar) *Service {
	return &Service{
		store:     store,
		relations: relations,
		files:     files,
		auditor:   auditor,
		calendar:  calendar,
	}
}

func own(doctorID primitive.ObjectID) []primitive.ObjectID {
	return []primitive.ObjectID{doctorID}
}

func (s *Service) Dashboard(ctx context.Context, doctor *model.Doctor) (*model.DoctorDashboard, error) {
	mine := repository.RecordFilter{DoctorIDs: own(doctor.ID)}

	total, err := s.store.MedicalImages.Count(ctx, mine)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	thisStart, thisEnd := s.calendar.Month(0)
	lastStart, lastEnd := s.calendar.Month(-1)
	thisMonth, err := s.store.MedicalImages.Count(ctx, repository.RecordFilter{DoctorIDs: own(doctor.ID), From: thisStart, To: thisEnd})
	if err != nil {
		return nil, fmt.Errorf("failed to count monthly records: %w", err)
	}
	lastMonth, err := s.store.MedicalImages.Count(ctx, repository.RecordFilter{DoctorIDs: own(doctor.ID), From: lastStart, To: lastEnd})
	if err != nil {
		return nil, fmt.Errorf("failed to count monthly records: %w", err)
	}

	dist, err := s.store.MedicalImages.GradeDistribution(ctx, mine)
	if err != nil {
		return nil, fmt.Errorf("failed to compute grade distribution: %w", err)
	}
	grades := make([]model.GradeCount, 0, len(model.Grades))
	var graded int64
	for _, g := range model.Grades {
		grades = append(grades, model.GradeCount{Grade: g, Count: dist[g]})
		graded += dist[g]
	}

	recent, _, err := s.store.MedicalImages.ListDetailed(ctx, mine, repository.Page{Limit: RecentRecords})
	if err != nil {
		return nil, fmt.Errorf("failed to list recent records: %w", err)
	}

	return &model.DoctorDashboard{
		Stats: model.DoctorStats{
			TotalRecords:   total,
			MonthlyRecords: thisMonth,
			MonthlyChange:  model.NewDelta(thisMonth, lastMonth, "month"),
			GradedRecords:  graded,
			CompletionRate: CompletionRate(graded, total),
		},
		RecentRecords:     recent,
		GradeDistribution: grades,
	}, nil
}

// CompletionRate is graded/total in [0,1], rounded to 3 decimals. It is 0
// when there are no records.
func CompletionRate(graded, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(graded)/float64(total)*1000) / 1000
}

func (s *Service) Records(ctx context.Context, doctor *model.Doctor, p pagination.Params) ([]model.RecordDetail, int64, error) {
	records, total, err := s.store.MedicalImages.ListDetailed(ctx,
		repository.RecordFilter{DoctorIDs: own(doctor.ID)},
		repository.Page{Skip: p.Skip(), Limit: int64(p.Limit)})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list records: %w", err)
	}
	return records, total, nil
}

// ownedRecord hides records of other doctors behind a 404.
func (s *Service) ownedRecord(ctx context.Context, doctor *model.Doctor, id primitive.ObjectID) (*model.MedicalImage, error) {
	record, err := s.store.MedicalImages.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("record", err)
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	if record.Doctor != doctor.ID {
		return nil, apperrors.NotFound("record", nil)
	}
	return record, nil
}

func (s *Service) GetRecord(ctx context.Context, doctor *model.Doctor, id primitive.ObjectID) (*model.RecordDetail, error) {
	record, err := s.ownedRecord(ctx, doctor, id)
	if err != nil {
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

func (s *Service) DeleteRecord(ctx context.Context, doctor *model.Doctor, id primitive.ObjectID) error {
	record, err := s.ownedRecord(ctx, doctor, id)
	if err != nil {
		return err
	}
	if err := s.store.MedicalImages.Delete(ctx, id); err != nil {
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

func (s *Service) Directory(ctx context.Context) ([]model.DoctorSummary, error) {
	doctors, err := s.store.Doctors.List(ctx, repository.DoctorFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	out := make([]model.DoctorSummary, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, d.Summary())
	}
	return out, nil
}

// Profile is visible to the doctor and to the organization they belong to.
func (s *Service) Profile(ctx context.Context, p model.Principal, id primitive.ObjectID) (*model.DoctorProfile, error) {
	doctor, err := s.store.Doctors.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("doctor", err)
		}
		return nil, fmt.Errorf("failed to load doctor: %w", err)
	}

	switch p.Kind {
	case model.KindDoctor:
		if p.Doctor.ID != doctor.ID {
			return nil, apperrors.Forbidden("not allowed to view this doctor")
		}
	case model.KindOrganization:
		if !doctor.BelongsTo(p.Organization.ID) {
			return nil, apperrors.Forbidden("doctor is not part of your organization")
		}
	default:
		return nil, apperrors.Forbidden("not allowed to view this doctor")
	}

	patients := []*model.Patient{}
	if len(doctor.Patients) > 0 {
		patients, _, err = s.store.Patients.List(ctx,
			repository.PatientFilter{IDs: doctor.Patients}, repository.Page{}, repository.SortByName)
		if err != nil {
			return nil, fmt.Errorf("failed to list patients: %w", err)
		}
	}
	return &model.DoctorProfile{Doctor: doctor, PatientList: patients}, nil
}

// UpdateProfile leaves fields that are empty in req unchanged.
func (s *Service) UpdateProfile(ctx context.Context, doctor *model.Doctor, req model.UpdateDoctorRequest) (*model.Doctor, error) {
	fullName := doctor.FullName
	if name := strings.TrimSpace(req.FullName); name != "" {
		fullName = name
	}
	specialty := doctor.Specialty
	if sp := strings.TrimSpace(req.Specialty); sp != "" {
		specialty = sp
	}

	if err := s.store.Doctors.UpdateProfile(ctx, doctor.ID, fullName, specialty); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("doctor", err)
		}
		return nil, fmt.Errorf("failed to update doctor: %w", err)
	}

	s.auditor.Record(ctx, audit.Entry{
		Actor:      model.DoctorPrincipal(doctor),
		Action:     model.AuditActionUpdate,
		EntityType: model.AuditEntityDoctor,
		EntityID:   doctor.ID.Hex(),
	})

	updated := *doctor
	updated.FullName = fullName
	updated.Specialty = specialty
	return &updated, nil
}

// AssignPatient links a patient to a doctor. Doctors may only assign to
// themselves, organizations only to doctors on their roster.
func (s *Service) AssignPatient(ctx context.Context, p model.Principal, req model.AssignPatientRequest) error {
	doctorID, ok := model.ParseID(req.DoctorID)
	if !ok {
		return apperrors.Validation("invalid doctor id", nil)
	}
	patientID, ok := model.ParseID(req.PatientID)
	if !ok {
		return apperrors.Validation("invalid patient id", nil)
	}

	switch p.Kind {
	case model.KindDoctor:
		if p.Doctor.ID != doctorID {
			return apperrors.Forbidden("doctors can only assign patients to themselves")
		}
	case model.KindOrganization:
		doctor, err := s.store.Doctors.GetByID(ctx, doctorID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound("doctor", err)
			}
			return fmt.Errorf("failed to load doctor: %w", err)
		}
		if !doctor.BelongsTo(p.Organization.ID) {
			return apperrors.Forbidden("doctor is not part of your organization")
		}
	default:
		return apperrors.Forbidden("not allowed to assign patients")
	}

	if err := s.relations.Link(ctx, doctorID, patientID); err != nil {
		return err
	}

	s.auditor.Record(ctx, audit.Entry{
		Actor:      p,
		Action:     model.AuditActionAssign,
		EntityType: model.AuditEntityPatient,
		EntityID:   patientID.Hex(),
		Metadata:   map[string]string{"doctorId": doctorID.Hex()},
	})
	return nil
}
