// Package account owns the credential-bearing collections: doctors and
// organizations share one email namespace.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
	"github.com/livsafe/livsafe-api/pkg/security"
)

var errEmailTaken = apperrors.Conflict("email already registered", nil)

// NormalizeEmail is the stored form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type Service struct {
	doctors repository.DoctorRepository
	orgs    repository.OrganizationRepository
	tx      repository.Transactor
	hasher  security.PasswordHasher
	now     model.Clock

	dummyOnce sync.Once
	dummyHash string
}

func NewService(store repository.Store, hasher security.PasswordHasher, now model.Clock) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		doctors: store.Doctors,
		orgs:    store.Organizations,
		tx:      store.Tx,
		hasher:  hasher,
		now:     now,
	}
}

// EnsureEmailAvailable fails with a conflict when any doctor or organization
// other than self already uses email.
func (s *Service) EnsureEmailAvailable(ctx context.Context, email string, self primitive.ObjectID) error {
	d, err := s.doctors.GetByEmail(ctx, email)
	switch {
	case err == nil && d.ID != self:
		return errEmailTaken
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("failed to check doctor email: %w", err)
	}

	o, err := s.orgs.GetByEmail(ctx, email)
	switch {
	case err == nil && o.ID != self:
		return errEmailTaken
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("failed to check organization email: %w", err)
	}
	return nil
}

// NewDoctor describes a doctor account to create.
type NewDoctor struct {
	FullName     string
	Email        string
	Password     string
	Specialty    string
	Organization *primitive.ObjectID
}

func (s *Service) hash(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return "", apperrors.Validation(err.Error(), err)
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func (s *Service) CreateDoctor(ctx context.Context, in NewDoctor) (*model.Doctor, error) {
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	doctor := &model.Doctor{
		FullName:     strings.TrimSpace(in.FullName),
		Email:        NormalizeEmail(in.Email),
		PasswordHash: hash,
		Specialty:    strings.TrimSpace(in.Specialty),
		Organization: in.Organization,
		Patients:     []primitive.ObjectID{},
		CreatedAt:    s.now().UTC(),
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if in.Organization != nil {
			if _, err := s.orgs.GetByID(ctx, *in.Organization); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return apperrors.NotFound("organization", err)
				}
				return fmt.Errorf("failed to load organization: %w", err)
			}
		}
		if err := s.EnsureEmailAvailable(ctx, doctor.Email, primitive.NilObjectID); err != nil {
			return err
		}
		return s.doctors.Create(ctx, doctor)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, errEmailTaken
	}
	if err != nil {
		return nil, err
	}
	return doctor, nil
}

// NewOrganization describes an organization account to create.
type NewOrganization struct {
	Name     string
	Email    string
	Password string
	Type     model.OrganizationType
}

func (s *Service) CreateOrganization(ctx context.Context, in NewOrganization) (*model.Organization, error) {
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = model.OrganizationHospital
	}

	org := &model.Organization{
		Name:         strings.TrimSpace(in.Name),
		Email:        NormalizeEmail(in.Email),
		PasswordHash: hash,
		Type:         in.Type,
		CreatedAt:    s.now().UTC(),
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.EnsureEmailAvailable(ctx, org.Email, primitive.NilObjectID); err != nil {
			return err
		}
		return s.orgs.Create(ctx, org)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, errEmailTaken
	}
	if err != nil {
		return nil, err
	}
	return org, nil
}

// FindByEmail looks in doctors first, then organizations.
func (s *Service) FindByEmail(ctx context.Context, email string) (model.Principal, error) {
	email = NormalizeEmail(email)

	d, err := s.doctors.GetByEmail(ctx, email)
	if err == nil {
		return model.DoctorPrincipal(d), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Principal{}, fmt.Errorf("failed to find doctor: %w", err)
	}

	o, err := s.orgs.GetByEmail(ctx, email)
	if err == nil {
		return model.OrganizationPrincipal(o), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Principal{}, fmt.Errorf("failed to find organization: %w", err)
	}
	return model.Principal{}, repository.ErrNotFound
}

// FindByID looks in doctors first, then organizations.
func (s *Service) FindByID(ctx context.Context, id primitive.ObjectID) (model.Principal, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err == nil {
		return model.DoctorPrincipal(d), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Principal{}, fmt.Errorf("failed to find doctor: %w", err)
	}

	o, err := s.orgs.GetByID(ctx, id)
	if err == nil {
		return model.OrganizationPrincipal(o), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Principal{}, fmt.Errorf("failed to find organization: %w", err)
	}
	return model.Principal{}, repository.ErrNotFound
}

// SetPassword stores a new hash for the principal.
func (s *Service) SetPassword(ctx context.Context, p model.Principal, password string) error {
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	switch p.Kind {
	case model.KindDoctor:
		err = s.doctors.UpdatePassword(ctx, p.ID(), hash)
	case model.KindOrganization:
		err = s.orgs.UpdatePassword(ctx, p.ID(), hash)
	default:
		return apperrors.Unauthenticated("unknown principal", nil)
	}
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// VerifyPassword checks password against the principal's stored hash.
func (s *Service) VerifyPassword(p model.Principal, password string) bool {
	return s.hasher.Compare(p.PasswordHash(), password) == nil
}

// RejectPassword spends one hash comparison against a throwaway hash so an
// unknown email costs as much as a wrong password.
func (s *Service) RejectPassword(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("livsafe-unknown-account")
		if err != nil {
			log.Error().Err(err).Msg("Failed to build dummy password hash")
		}
		s.dummyHash = hash
	})
	_ = s.hasher.Compare(s.dummyHash, password)
}
