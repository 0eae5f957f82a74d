package organization

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/email"
	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
	"github.com/livsafe/livsafe-api/internal/service/account"
	"github.com/livsafe/livsafe-api/internal/service/audit"
	"github.com/livsafe/livsafe-api/internal/service/period"
	"github.com/livsafe/livsafe-api/internal/service/relation"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
)

// JoinedDateLayout formats RosterDoctor.JoinedDate.
const JoinedDateLayout = "Jan 2, 2006"

type Service struct {
	store     repository.Store
	accounts  *account.Service
	relations *relation.Service
	mailer    email.Sender
	auditor   *audit.Service
	calendar  period.Calendar
}

func NewService(store repository.Store, accounts *account.Service, relations *relation.Service,
	mailer email.Sender, auditor *audit.Service, calendar period.Calendar) *Service {
	if mailer == nil {
		mailer = email.Noop{}
	}
	return &Service{
		store:     store,
		accounts:  accounts,
		relations: relations,
		mailer:    mailer,
		auditor:   auditor,
		calendar:  calendar,
	}
}

func (s *Service) roster(ctx context.Context, orgID primitive.ObjectID) ([]*model.Doctor, error) {
	id := orgID
	doctors, err := s.store.Doctors.List(ctx, repository.DoctorFilter{OrganizationID: &id})
	if err != nil {
		return nil, fmt.Errorf("failed to list roster: %w", err)
	}
	return doctors, nil
}

// rosterIDs is never nil, so an empty roster matches no records.
func rosterIDs(doctors []*model.Doctor) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(doctors))
	for _, d := range doctors {
		ids = append(ids, d.ID)
	}
	return ids
}

func (s *Service) countRecords(ctx context.Context, doctorIDs []primitive.ObjectID, from, to time.Time) (int64, error) {
	n, err := s.store.MedicalImages.Count(ctx, repository.RecordFilter{DoctorIDs: doctorIDs, From: from, To: to})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

func (s *Service) countJoined(ctx context.Context, orgID primitive.ObjectID, from, to time.Time) (int64, error) {
	n, err := s.store.Doctors.Count(ctx, repository.DoctorFilter{OrganizationID: &orgID, CreatedFrom: from, CreatedTo: to})
	if err != nil {
		return 0, fmt.Errorf("failed to count doctors: %w", err)
	}
	return n, nil
}

func (s *Service) Dashboard(ctx context.Context, org *model.Organization) (*model.OrganizationDashboard, error) {
	doctors, err := s.roster(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	ids := rosterIDs(doctors)

	thisMonthStart, thisMonthEnd := s.calendar.Month(0)
	lastMonthStart, lastMonthEnd := s.calendar.Month(-1)
	todayStart, todayEnd := s.calendar.Day(0)
	yesterdayStart, yesterdayEnd := s.calendar.Day(-1)

	joinedThisMonth, err := s.countJoined(ctx, org.ID, thisMonthStart, thisMonthEnd)
	if err != nil {
		return nil, err
	}
	joinedLastMonth, err := s.countJoined(ctx, org.ID, lastMonthStart, lastMonthEnd)
	if err != nil {
		return nil, err
	}
	today, err := s.countRecords(ctx, ids, todayStart, todayEnd)
	if err != nil {
		return nil, err
	}
	yesterday, err := s.countRecords(ctx, ids, yesterdayStart, yesterdayEnd)
	if err != nil {
		return nil, err
	}
	thisMonth, err := s.countRecords(ctx, ids, thisMonthStart, thisMonthEnd)
	if err != nil {
		return nil, err
	}
	lastMonth, err := s.countRecords(ctx, ids, lastMonthStart, lastMonthEnd)
	if err != nil {
		return nil, err
	}

	roster := make([]model.RosterDoctor, 0, len(doctors))
	for _, d := range doctors {
		roster = append(roster, s.rosterDoctor(d))
	}

	return &model.OrganizationDashboard{
		TotalDoctors:      int64(len(doctors)),
		DoctorsChange:     model.NewDelta(joinedThisMonth, joinedLastMonth, "month"),
		TotalRecordsToday: today,
		TodayChange:       model.NewDelta(today, yesterday, "day"),
		TotalRecordsMonth: thisMonth,
		MonthChange:       model.NewDelta(thisMonth, lastMonth, "month"),
		Doctors:           roster,
	}, nil
}

func (s *Service) rosterDoctor(d *model.Doctor) model.RosterDoctor {
	return model.RosterDoctor{
		ID:           d.ID,
		FullName:     d.FullName,
		Email:        d.Email,
		Specialty:    d.SpecialtyOrDefault(),
		PatientCount: len(d.Patients),
		JoinedDate:   d.CreatedAt.In(s.calendar.Location()).Format(JoinedDateLayout),
	}
}

// Doctors lists the roster, newest first.
func (s *Service) Doctors(ctx context.Context, org *model.Organization) ([]model.RosterDoctor, error) {
	doctors, err := s.roster(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	out := make([]model.RosterDoctor, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, s.rosterDoctor(d))
	}
	return out, nil
}

// AddDoctor creates a doctor account on the caller's roster and sends the
// onboarding mail. A mail failure does not undo the account.
func (s *Service) AddDoctor(ctx context.Context, org *model.Organization, req model.CreateDoctorRequest) (*model.Doctor, error) {
	orgID := org.ID
	doctor, err := s.accounts.CreateDoctor(ctx, account.NewDoctor{
		FullName:     req.FullName,
		Email:        req.Email,
		Password:     req.Password,
		Specialty:    req.Specialty,
		Organization: &orgID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.mailer.SendWelcome(ctx, doctor.Email, doctor.FullName, org.Name); err != nil {
		log.Error().Err(err).
			Str("doctor_id", doctor.ID.Hex()).
			Str("organization_id", org.ID.Hex()).
			Msg("Failed to send onboarding mail")
	}

	s.auditor.Record(ctx, audit.Entry{
		Actor:      model.OrganizationPrincipal(org),
		Action:     model.AuditActionCreate,
		EntityType: model.AuditEntityDoctor,
		EntityID:   doctor.ID.Hex(),
	})
	return doctor, nil
}

// RemoveDoctor takes a doctor off the roster. The doctor and their records stay.
func (s *Service) RemoveDoctor(ctx context.Context, org *model.Organization, doctorID primitive.ObjectID) error {
	doctor, err := s.store.Doctors.GetByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("doctor", err)
		}
		return fmt.Errorf("failed to load doctor: %w", err)
	}
	if !doctor.BelongsTo(org.ID) {
		return apperrors.NotFound("doctor", nil)
	}
	if err := s.store.Doctors.SetOrganization(ctx, doctorID, nil); err != nil {
		return fmt.Errorf("failed to detach doctor: %w", err)
	}

	s.auditor.Record(ctx, audit.Entry{
		Actor:      model.OrganizationPrincipal(org),
		Action:     model.AuditActionDetach,
		EntityType: model.AuditEntityDoctor,
		EntityID:   doctorID.Hex(),
	})
	return nil
}

func (s *Service) Profile(ctx context.Context, org *model.Organization) (*model.OrganizationProfile, error) {
	doctors, err := s.roster(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	summaries := make([]model.DoctorSummary, 0, len(doctors))
	for _, d := range doctors {
		summaries = append(summaries, d.Summary())
	}
	return &model.OrganizationProfile{Organization: org, Doctors: summaries}, nil
}

func (s *Service) UpdateProfile(ctx context.Context, org *model.Organization, req model.UpdateOrganizationRequest) (*model.Organization, error) {
	updated := *org
	if name := strings.TrimSpace(req.Name); name != "" {
		updated.Name = name
	}
	if req.Type != "" {
		updated.Type = req.Type
	}
	if req.Email != "" {
		updated.Email = account.NormalizeEmail(req.Email)
	}

	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if updated.Email != org.Email {
			if err := s.accounts.EnsureEmailAvailable(ctx, updated.Email, org.ID); err != nil {
				return err
			}
		}
		return s.store.Organizations.Update(ctx, &updated)
	})
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return nil, apperrors.Conflict("email already registered", err)
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.NotFound("organization", err)
	case err != nil:
		return nil, err
	}

	s.auditor.Record(ctx, audit.Entry{
		Actor:      model.OrganizationPrincipal(org),
		Action:     model.AuditActionUpdate,
		EntityType: model.AuditEntityOrganization,
		EntityID:   org.ID.Hex(),
	})
	return &updated, nil
}

// Delete detaches the roster and removes the organization in one transaction.
func (s *Service) Delete(ctx context.Context, org *model.Organization) error {
	detached, err := s.relations.DeleteOrganization(ctx, org.ID)
	if err != nil {
		return err
	}
	s.auditor.Record(ctx, audit.Entry{
		Actor:      model.OrganizationPrincipal(org),
		Action:     model.AuditActionDelete,
		EntityType: model.AuditEntityOrganization,
		EntityID:   org.ID.Hex(),
		Metadata:   map[string]string{"detachedDoctors": fmt.Sprint(detached)},
	})
	return nil
}

func (s *Service) Directory(ctx context.Context) ([]model.OrganizationSummary, error) {
	orgs, err := s.store.Organizations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	out := make([]model.OrganizationSummary, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, o.Summary())
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (*model.OrganizationSummary, error) {
	org, err := s.store.Organizations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("organization", err)
		}
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}
	summary := org.Summary()
	return &summary, nil
}
