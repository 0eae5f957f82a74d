package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
	"github.com/livsafe/livsafe-api/internal/service/account"
	"github.com/livsafe/livsafe-api/internal/service/audit"
	"github.com/livsafe/livsafe-api/pkg/auth"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
)

var (
	ErrInvalidCredentials = apperrors.Unauthenticated("invalid email or password", nil)
	ErrStaleToken         = apperrors.Unauthenticated("stale token for a deleted account", nil)
)

type Service struct {
	accounts *account.Service
	tokens   auth.TokenService
	auditor  *audit.Service
}

func NewService(accounts *account.Service, tokens auth.TokenService, auditor *audit.Service) *Service {
	return &Service{
		accounts: accounts,
		tokens:   tokens,
		auditor:  auditor,
	}
}

func (s *Service) respond(p model.Principal) (*model.AuthResponse, error) {
	token, err := s.tokens.Issue(p.ID().Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &model.AuthResponse{Token: token, User: p.Profile()}, nil
}

func (s *Service) SignupDoctor(ctx context.Context, req model.SignupDoctorRequest) (*model.AuthResponse, error) {
	in := account.NewDoctor{
		FullName:  req.FullName,
		Email:     req.Email,
		Password:  req.Password,
		Specialty: req.Specialty,
	}
	if req.OrganizationID != "" {
		orgID, ok := model.ParseID(req.OrganizationID)
		if !ok {
			return nil, apperrors.Validation("invalid organization id", nil)
		}
		in.Organization = &orgID
	}

	doctor, err := s.accounts.CreateDoctor(ctx, in)
	if err != nil {
		return nil, err
	}
	p := model.DoctorPrincipal(doctor)
	s.auditor.Record(ctx, audit.Entry{
		Actor:      p,
		Action:     model.AuditActionSignup,
		EntityType: model.AuditEntityDoctor,
		EntityID:   doctor.ID.Hex(),
	})
	return s.respond(p)
}

func (s *Service) SignupOrganization(ctx context.Context, req model.SignupOrganizationRequest) (*model.AuthResponse, error) {
	org, err := s.accounts.CreateOrganization(ctx, account.NewOrganization{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Type:     req.Type,
	})
	if err != nil {
		return nil, err
	}
	p := model.OrganizationPrincipal(org)
	s.auditor.Record(ctx, audit.Entry{
		Actor:      p,
		Action:     model.AuditActionSignup,
		EntityType: model.AuditEntityOrganization,
		EntityID:   org.ID.Hex(),
	})
	return s.respond(p)
}

// Login checks doctors first, then organizations. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
	p, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.accounts.RejectPassword(req.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.accounts.VerifyPassword(p, req.Password) {
		log.Warn().Str("principal_id", p.ID().Hex()).Msg("Login failed: wrong password")
		return nil, ErrInvalidCredentials
	}

	s.auditor.Record(ctx, audit.Entry{
		Actor:      p,
		Action:     model.AuditActionLogin,
		EntityType: string(p.Kind),
		EntityID:   p.ID().Hex(),
	})
	return s.respond(p)
}

// Resolve turns a bearer token into the principal it was issued for.
func (s *Service) Resolve(ctx context.Context, token string) (model.Principal, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return model.Principal{}, apperrors.Unauthenticated("token expired", err)
		}
		return model.Principal{}, apperrors.Unauthenticated("invalid token", err)
	}

	id, ok := model.ParseID(claims.Subject)
	if !ok {
		return model.Principal{}, apperrors.Unauthenticated("invalid token", nil)
	}

	p, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Principal{}, ErrStaleToken
		}
		return model.Principal{}, err
	}
	return p, nil
}

func (s *Service) ChangePassword(ctx context.Context, p model.Principal, req model.ChangePasswordRequest) error {
	if !s.accounts.VerifyPassword(p, req.CurrentPassword) {
		return apperrors.Unauthenticated("current password is incorrect", nil)
	}
	if s.accounts.VerifyPassword(p, req.NewPassword) {
		return apperrors.Validation("new password must differ from the current password", nil)
	}
	if err := s.accounts.SetPassword(ctx, p, req.NewPassword); err != nil {
		return err
	}

	s.auditor.Record(ctx, audit.Entry{
		Actor:      p,
		Action:     model.AuditActionPassword,
		EntityType: string(p.Kind),
		EntityID:   p.ID().Hex(),
	})
	return nil
}

// Logout is stateless: tokens stay valid until they expire. It only leaves a
// trail entry.
func (s *Service) Logout(ctx context.Context, p model.Principal) {
	s.auditor.Record(ctx, audit.Entry{
		Actor:      p,
		Action:     model.AuditActionLogout,
		EntityType: string(p.Kind),
		EntityID:   p.ID().Hex(),
	})
}
