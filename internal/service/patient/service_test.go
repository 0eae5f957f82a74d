package patient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
	"github.com/livsafe/livsafe-api/internal/service/audit"
	"github.com/livsafe/livsafe-api/internal/service/relation"
	"github.com/livsafe/livsafe-api/internal/storage"
	"github.com/livsafe/livsafe-api/internal/testutil"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
	"github.com/livsafe/livsafe-api/pkg/pagination"
)

func newService(f *testutil.Fixtures, files storage.ImageStore) *Service {
	if files == nil {
		files = storage.NewMemory()
	}
	return NewService(f.Store, relation.NewService(f.Store), files,
		audit.NewService(f.Store.AuditLogs, nil, testutil.Clock), testutil.Clock)
}

func intPtr(v int) *int { return &v }

func TestListFiltersAndPaginates(t *testing.T) {
	f := testutil.New(t)
	svc := newService(f, nil)
	ctx := context.Background()
	d := f.Doctor("Dr. A", "", nil, testutil.Now)

	for _, req := range []model.CreatePatientRequest{
		{FullName: "Jane Doe", Gender: "Female", Age: intPtr(40)},
		{FullName: "John Doe", Gender: "male", Age: intPtr(40)},
		{FullName: "Mary (Jr.) Smith", Gender: "female", Age: intPtr(25)},
	} {
		_, err := svc.Create(ctx, model.DoctorPrincipal(d), req)
		require.NoError(t, err)
	}

	got, total, err := svc.List(ctx, Query{Search: "DOE"}, pagination.Normalize(1, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, got, 2)

	got, _, err = svc.List(ctx, Query{Search: "(jr.)"}, pagination.Normalize(1, 10, 10))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.GenderFemale, got[0].Gender)

	got, total, err = svc.List(ctx, Query{Gender: "FEMALE", Age: intPtr(40)}, pagination.Normalize(1, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Jane Doe", got[0].FullName)

	page1, total, err := svc.List(ctx, Query{}, pagination.Normalize(1, 2, 10))
	require.NoError(t, err)
	page2, _, err := svc.List(ctx, Query{}, pagination.Normalize(2, 2, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page1, 2)
	assert.Len(t, page2, 1)
	for _, a := range page1 {
		for _, b := range page2 {
			assert.NotEqual(t, a.ID, b.ID)
		}
	}
}

func TestSearchOrdersByName(t *testing.T) {
	f := testutil.New(t)
	f.Patient("Zoe Doe")
	f.Patient("Adam Doe")
	f.Patient("Someone Else")

	got, err := newService(f, nil).Search(context.Background(), Query{Search: "doe"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Adam Doe", got[0].FullName)
}

func TestCreateByDoctorLinksBothSides(t *testing.T) {
	f := testutil.New(t)
	d := f.Doctor("Dr. A", "", nil, testutil.Now)
	org := f.Organization("City Hospital")
	svc := newService(f, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, model.DoctorPrincipal(d), model.CreatePatientRequest{FullName: "Jane Doe"})
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{d.ID}, p.Doctors)
	assert.True(t, f.Reload(d).HasPatient(p.ID))

	byOrg, err := svc.Create(ctx, model.OrganizationPrincipal(org), model.CreatePatientRequest{FullName: "Walk In"})
	require.NoError(t, err)
	assert.Empty(t, byOrg.Doctors)

	mine, err := svc.ByDoctor(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, p.ID, mine[0].ID)

	_, err = svc.ByDoctor(ctx, primitive.NewObjectID())
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestUpdate(t *testing.T) {
	f := testutil.New(t)
	p := f.Patient("Jane Doe")
	svc := newService(f, nil)

	name := "Jane Roe"
	gender := model.Gender("Female")
	updated, err := svc.Update(context.Background(), model.Principal{}, p.ID, model.UpdatePatientRequest{FullName: &name, Gender: &gender})
	require.NoError(t, err)
	assert.Equal(t, "Jane Roe", updated.FullName)
	assert.Equal(t, model.GenderFemale, updated.Gender)

	blank := "  "
	_, err = svc.Update(context.Background(), model.Principal{}, p.ID, model.UpdatePatientRequest{FullName: &blank})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestGetIncludesRecordsNewestFirst(t *testing.T) {
	f := testutil.New(t)
	d := f.Doctor("Dr. A", "", nil, testutil.Now)
	p := f.Patient("Jane Doe", d)
	older := f.Record(d, p, testutil.Now.AddDate(0, 0, -3), model.GradeF1)
	newer := f.Record(d, p, testutil.Now, model.GradeF2)

	detail, err := newService(f, nil).Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, detail.MedicalImages, 2)
	assert.Equal(t, newer.ID, detail.MedicalImages[0].ID)
	assert.Equal(t, older.ID, detail.MedicalImages[1].ID)
}

func TestDeleteCascadesAndRemovesFiles(t *testing.T) {
	f := testutil.New(t)
	files := storage.NewMemory()
	ctx := context.Background()
	a := f.Doctor("Dr. A", "", nil, testutil.Now)
	b := f.Doctor("Dr. B", "", nil, testutil.Now)
	p := f.Patient("Jane Doe", a, b)
	for i := 0; i < 3; i++ {
		rec := f.Record(a, p, testutil.Now, model.GradeF1)
		name, err := storage.NameFromURL(rec.ImageURL)
		require.NoError(t, err)
		require.NoError(t, files.Save(ctx, name, []byte("img")))
	}

	require.NoError(t, newService(f, files).Delete(ctx, model.DoctorPrincipal(a), p.ID))

	_, err := f.Store.Patients.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.False(t, f.Reload(a).HasPatient(p.ID))
	assert.False(t, f.Reload(b).HasPatient(p.ID))
	n, err := f.Store.MedicalImages.Count(ctx, repository.RecordFilter{PatientIDs: []primitive.ObjectID{p.ID}})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, files.Len())

	err = newService(f, files).Delete(ctx, model.DoctorPrincipal(a), p.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}
