package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
	"github.com/livsafe/livsafe-api/internal/repository/memory"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
	"github.com/livsafe/livsafe-api/pkg/security"
)

func newService(t *testing.T) *Service {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	return NewService(memory.New().Repositories(), security.NewBcryptHasher(security.MinCost), clock)
}

func TestEmailsAreUniqueAcrossCollections(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.CreateOrganization(ctx, NewOrganization{Name: "City Hospital", Email: "Admin@City.org", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.CreateDoctor(ctx, NewDoctor{FullName: "Dr. A", Email: "admin@city.org ", Password: "secret1"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	_, err = svc.CreateOrganization(ctx, NewOrganization{Name: "Other", Email: "ADMIN@city.org", Password: "secret1"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}

func TestCreateOrganizationDefaultsType(t *testing.T) {
	org, err := newService(t).CreateOrganization(context.Background(), NewOrganization{Name: "X", Email: "x@x.org", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, model.OrganizationHospital, org.Type)
	assert.NotEqual(t, "secret1", org.PasswordHash)
}

func TestCreateDoctorRequiresExistingOrganization(t *testing.T) {
	missing := primitive.NewObjectID()
	_, err := newService(t).CreateDoctor(context.Background(), NewDoctor{
		FullName: "Dr. A", Email: "a@x.org", Password: "secret1", Organization: &missing,
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestCreateDoctorRejectsShortPassword(t *testing.T) {
	_, err := newService(t).CreateDoctor(context.Background(), NewDoctor{FullName: "Dr. A", Email: "a@x.org", Password: "123"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestFindPrefersDoctor(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	doctor, err := svc.CreateDoctor(ctx, NewDoctor{FullName: "Dr. A", Email: "a@x.org", Password: "secret1"})
	require.NoError(t, err)
	org, err := svc.CreateOrganization(ctx, NewOrganization{Name: "Org", Email: "org@x.org", Password: "secret1"})
	require.NoError(t, err)

	p, err := svc.FindByEmail(ctx, "A@X.org")
	require.NoError(t, err)
	assert.Equal(t, model.KindDoctor, p.Kind)
	assert.Equal(t, doctor.ID, p.ID())

	p, err = svc.FindByID(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, model.KindOrganization, p.Kind)

	_, err = svc.FindByID(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSetAndVerifyPassword(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	doctor, err := svc.CreateDoctor(ctx, NewDoctor{FullName: "Dr. A", Email: "a@x.org", Password: "secret1"})
	require.NoError(t, err)

	p := model.DoctorPrincipal(doctor)
	assert.True(t, svc.VerifyPassword(p, "secret1"))
	assert.False(t, svc.VerifyPassword(p, "wrong-password"))

	require.NoError(t, svc.SetPassword(ctx, p, "secret2"))
	reloaded, err := svc.FindByID(ctx, doctor.ID)
	require.NoError(t, err)
	assert.True(t, svc.VerifyPassword(reloaded, "secret2"))
}
