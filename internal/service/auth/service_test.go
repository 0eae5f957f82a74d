package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
	"github.com/livsafe/livsafe-api/internal/repository/memory"
	"github.com/livsafe/livsafe-api/internal/service/account"
	"github.com/livsafe/livsafe-api/internal/service/audit"
	"github.com/livsafe/livsafe-api/pkg/auth"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
	"github.com/livsafe/livsafe-api/pkg/security"
)

type fixture struct {
	mem   *memory.Store
	store repository.Store
	svc   *Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	mem := memory.New()
	store := mem.Repositories()
	accounts := account.NewService(store, security.NewBcryptHasher(security.MinCost), nil)
	svc := NewService(accounts, auth.NewJWTService("test-secret", time.Hour), audit.NewService(store.AuditLogs, nil, nil))
	return &fixture{mem: mem, store: store, svc: svc}
}

func TestSignupThenLoginResolvesSamePrincipal(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	signup, err := f.svc.SignupDoctor(ctx, model.SignupDoctorRequest{
		FullName: "Dr. Ada", Email: "ada@example.com", Password: "secret1", Specialty: "Hepatology",
	})
	require.NoError(t, err)
	assert.Equal(t, model.KindDoctor, signup.User.Kind)

	login, err := f.svc.Login(ctx, model.LoginRequest{Email: "ADA@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, signup.User.ID, login.User.ID)

	p, err := f.svc.Resolve(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, model.KindDoctor, p.Kind)
	assert.Equal(t, signup.User.ID, p.ID())

	stored, err := f.store.Doctors.GetByID(ctx, p.ID())
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
}

func TestOrganizationSignupAndLogin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	signup, err := f.svc.SignupOrganization(ctx, model.SignupOrganizationRequest{
		Name: "City Hospital", Email: "org@city.org", Password: "secret1",
	})
	require.NoError(t, err)

	p, err := f.svc.Resolve(ctx, signup.Token)
	require.NoError(t, err)
	assert.Equal(t, model.KindOrganization, p.Kind)
	assert.Equal(t, "City Hospital", p.Organization.Name)
}

func TestLoginRejectsWrongPasswordAndUnknownEmail(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.SignupDoctor(ctx, model.SignupDoctorRequest{FullName: "Dr. Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, model.LoginRequest{Email: "ada@example.com", Password: "wrong-one"})
	assert.Equal(t, ErrInvalidCredentials, err)

	_, err = f.svc.Login(ctx, model.LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	assert.Equal(t, ErrInvalidCredentials, err)
}

type countingHasher struct {
	security.PasswordHasher
	compares int
}

func (h *countingHasher) Compare(hashedPassword, password string) error {
	h.compares++
	return h.PasswordHasher.Compare(hashedPassword, password)
}

func TestLoginUnknownEmailStillComparesHash(t *testing.T) {
	ctx := context.Background()
	store := memory.New().Repositories()
	hasher := &countingHasher{PasswordHasher: security.NewBcryptHasher(security.MinCost)}
	accounts := account.NewService(store, hasher, nil)
	svc := NewService(accounts, auth.NewJWTService("test-secret", time.Hour), audit.NewService(store.AuditLogs, nil, nil))

	_, err := svc.SignupDoctor(ctx, model.SignupDoctorRequest{FullName: "Dr. Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, model.LoginRequest{Email: "ada@example.com", Password: "wrong-one"})
	assert.Equal(t, ErrInvalidCredentials, err)
	assert.Equal(t, 1, hasher.compares)

	_, err = svc.Login(ctx, model.LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	assert.Equal(t, ErrInvalidCredentials, err)
	assert.Equal(t, 2, hasher.compares)
}

func TestSignupDoctorWithUnknownOrganization(t *testing.T) {
	f := setup(t)
	_, err := f.svc.SignupDoctor(context.Background(), model.SignupDoctorRequest{
		FullName: "Dr. Ada", Email: "ada@example.com", Password: "secret1", OrganizationID: "65f1c0ffee0000000000abcd",
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestResolveStaleToken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	signup, err := f.svc.SignupOrganization(ctx, model.SignupOrganizationRequest{Name: "Org", Email: "org@x.org", Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, f.store.Organizations.Delete(ctx, signup.User.ID))

	_, err = f.svc.Resolve(ctx, signup.Token)
	assert.Equal(t, ErrStaleToken, err)

	_, err = f.svc.Resolve(ctx, "garbage")
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthenticated))
}

func TestChangePassword(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	signup, err := f.svc.SignupDoctor(ctx, model.SignupDoctorRequest{FullName: "Dr. Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	p, err := f.svc.Resolve(ctx, signup.Token)
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, p, model.ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "secret2"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthenticated))

	err = f.svc.ChangePassword(ctx, p, model.ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "secret1"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	require.NoError(t, f.svc.ChangePassword(ctx, p, model.ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "secret2"}))
	_, err = f.svc.Login(ctx, model.LoginRequest{Email: "ada@example.com", Password: "secret2"})
	assert.NoError(t, err)
}

func TestAuditTrail(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	signup, err := f.svc.SignupDoctor(ctx, model.SignupDoctorRequest{FullName: "Dr. Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, model.LoginRequest{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	p, err := f.svc.Resolve(ctx, signup.Token)
	require.NoError(t, err)
	f.svc.Logout(ctx, p)

	var actions []string
	for _, l := range f.mem.AuditLogs() {
		actions = append(actions, l.Action)
	}
	assert.Equal(t, []string{model.AuditActionSignup, model.AuditActionLogin, model.AuditActionLogout}, actions)
}
