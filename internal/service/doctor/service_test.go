package doctor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
	"github.com/livsafe/livsafe-api/internal/service/audit"
	"github.com/livsafe/livsafe-api/internal/service/period"
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
		audit.NewService(f.Store.AuditLogs, nil, testutil.Clock),
		period.New(time.UTC, testutil.Clock))
}

func TestDashboardWithoutRecords(t *testing.T) {
	f := testutil.New(t)
	d := f.Doctor("Dr. Empty", "", nil, testutil.Now)

	dash, err := newService(f, nil).Dashboard(context.Background(), d)
	require.NoError(t, err)

	assert.Zero(t, dash.Stats.TotalRecords)
	assert.Equal(t, 0.0, dash.Stats.CompletionRate)
	assert.Equal(t, "no activity", dash.Stats.MonthlyChange.Label)
	assert.Empty(t, dash.RecentRecords)
	require.Len(t, dash.GradeDistribution, 5)
	for i, g := range model.Grades {
		assert.Equal(t, g, dash.GradeDistribution[i].Grade)
		assert.Zero(t, dash.GradeDistribution[i].Count)
	}
}

func TestDashboardFirstMonth(t *testing.T) {
	f := testutil.New(t)
	d := f.Doctor("Dr. New", "", nil, testutil.Now)
	p := f.Patient("Jane Doe", d)

	for i := 0; i < 5; i++ {
		grade := model.GradeF1
		if i == 4 {
			grade = ""
		}
		f.Record(d, p, testutil.Now.AddDate(0, 0, -i), grade)
	}

	dash, err := newService(f, nil).Dashboard(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, int64(5), dash.Stats.TotalRecords)
	assert.Equal(t, int64(5), dash.Stats.MonthlyRecords)
	assert.True(t, dash.Stats.MonthlyChange.FirstPeriod)
	assert.Equal(t, "first month with activity", dash.Stats.MonthlyChange.Label)
	assert.Equal(t, int64(4), dash.Stats.GradedRecords)
	assert.Equal(t, 0.8, dash.Stats.CompletionRate)
	assert.Equal(t, int64(4), dash.GradeDistribution[1].Count)

	require.Len(t, dash.RecentRecords, 5)
	assert.Equal(t, "Jane Doe", dash.RecentRecords[0].Patient.FullName)
	assert.Equal(t, "Pending", dash.RecentRecords[4].Grade)
}

func TestDashboardIgnoresOtherDoctors(t *testing.T) {
	f := testutil.New(t)
	mine := f.Doctor("Dr. Mine", "", nil, testutil.Now)
	other := f.Doctor("Dr. Other", "", nil, testutil.Now)
	p := f.Patient("Jane Doe", mine, other)
	f.Record(other, p, testutil.Now, model.GradeF2)
	f.Record(mine, p, testutil.Now.AddDate(0, -1, 0), model.GradeF2)

	dash, err := newService(f, nil).Dashboard(context.Background(), mine)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dash.Stats.TotalRecords)
	assert.Equal(t, int64(0), dash.Stats.MonthlyRecords)
	assert.Equal(t, "-1 from last month", dash.Stats.MonthlyChange.Label)
}

func TestCompletionRate(t *testing.T) {
	assert.Equal(t, 0.0, CompletionRate(0, 0))
	assert.Equal(t, 1.0, CompletionRate(3, 3))
	assert.Equal(t, 0.667, CompletionRate(2, 3))
}

func TestRecordsAreScopedAndPaged(t *testing.T) {
	f := testutil.New(t)
	d := f.Doctor("Dr. A", "", nil, testutil.Now)
	other := f.Doctor("Dr. B", "", nil, testutil.Now)
	p := f.Patient("Jane Doe", d, other)
	for i := 0; i < 12; i++ {
		f.Record(d, p, testutil.Now.Add(-time.Duration(i)*time.Hour), model.GradeF0)
	}
	f.Record(other, p, testutil.Now, model.GradeF0)

	svc := newService(f, nil)
	first, total, err := svc.Records(context.Background(), d, pagination.Normalize(1, 10, 10))
	require.NoError(t, err)
	second, _, err := svc.Records(context.Background(), d, pagination.Normalize(2, 10, 10))
	require.NoError(t, err)

	assert.Equal(t, int64(12), total)
	assert.Len(t, first, 10)
	assert.Len(t, second, 2)
	seen := map[primitive.ObjectID]bool{}
	for _, r := range append(first, second...) {
		assert.False(t, seen[r.ID])
		seen[r.ID] = true
		assert.Equal(t, d.ID, r.Doctor)
	}
}

func TestGetAndDeleteRecordOwnership(t *testing.T) {
	f := testutil.New(t)
	files := storage.NewMemory()
	owner := f.Doctor("Dr. Owner", "", nil, testutil.Now)
	stranger := f.Doctor("Dr. Stranger", "", nil, testutil.Now)
	p := f.Patient("Jane Doe", owner)
	rec := f.Record(owner, p, testutil.Now, model.GradeF3)
	name, err := storage.NameFromURL(rec.ImageURL)
	require.NoError(t, err)
	require.NoError(t, files.Save(context.Background(), name, []byte("img")))

	svc := newService(f, files)
	ctx := context.Background()

	_, err = svc.GetRecord(ctx, stranger, rec.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
	assert.True(t, apperrors.IsKind(svc.DeleteRecord(ctx, stranger, rec.ID), apperrors.KindNotFound))

	detail, err := svc.GetRecord(ctx, owner, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.RecordID(), detail.RecordID)

	require.NoError(t, svc.DeleteRecord(ctx, owner, rec.ID))
	_, err = f.Store.MedicalImages.GetByID(ctx, rec.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Zero(t, files.Len())
}

func TestProfileVisibility(t *testing.T) {
	f := testutil.New(t)
	org := f.Organization("City Hospital")
	otherOrg := f.Organization("Elsewhere")
	d := f.Doctor("Dr. A", "", org, testutil.Now)
	peer := f.Doctor("Dr. B", "", org, testutil.Now)
	f.Patient("Zed", d)
	f.Patient("Amy", d)

	svc := newService(f, nil)
	ctx := context.Background()

	profile, err := svc.Profile(ctx, model.DoctorPrincipal(d), d.ID)
	require.NoError(t, err)
	require.Len(t, profile.PatientList, 2)
	assert.Equal(t, "Amy", profile.PatientList[0].FullName)

	_, err = svc.Profile(ctx, model.OrganizationPrincipal(org), d.ID)
	assert.NoError(t, err)

	_, err = svc.Profile(ctx, model.DoctorPrincipal(peer), d.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	_, err = svc.Profile(ctx, model.OrganizationPrincipal(otherOrg), d.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
}

func TestUpdateProfileKeepsBlankFields(t *testing.T) {
	f := testutil.New(t)
	d := f.Doctor("Dr. A", "Hepatology", nil, testutil.Now)

	updated, err := newService(f, nil).UpdateProfile(context.Background(), d, model.UpdateDoctorRequest{FullName: "Dr. Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Dr. Ada", updated.FullName)
	assert.Equal(t, "Hepatology", f.Reload(d).Specialty)
}

func TestAssignPatient(t *testing.T) {
	f := testutil.New(t)
	org := f.Organization("City Hospital")
	d := f.Doctor("Dr. A", "", org, testutil.Now)
	outsider := f.Doctor("Dr. Out", "", nil, testutil.Now)
	p := f.Patient("Jane Doe")

	svc := newService(f, nil)
	ctx := context.Background()
	req := model.AssignPatientRequest{DoctorID: d.ID.Hex(), PatientID: p.ID.Hex()}

	err := svc.AssignPatient(ctx, model.DoctorPrincipal(outsider), req)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	err = svc.AssignPatient(ctx, model.OrganizationPrincipal(org),
		model.AssignPatientRequest{DoctorID: outsider.ID.Hex(), PatientID: p.ID.Hex()})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	require.NoError(t, svc.AssignPatient(ctx, model.OrganizationPrincipal(org), req))
	assert.True(t, f.Reload(d).HasPatient(p.ID))

	err = svc.AssignPatient(ctx, model.DoctorPrincipal(d), req)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}
