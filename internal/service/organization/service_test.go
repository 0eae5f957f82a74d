package organization

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
	"github.com/livsafe/livsafe-api/internal/service/account"
	"github.com/livsafe/livsafe-api/internal/service/audit"
	"github.com/livsafe/livsafe-api/internal/service/period"
	"github.com/livsafe/livsafe-api/internal/service/relation"
	"github.com/livsafe/livsafe-api/internal/testutil"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
	"github.com/livsafe/livsafe-api/pkg/pagination"
	"github.com/livsafe/livsafe-api/pkg/security"
)

type recordingMailer struct {
	sent []string
	err  error
}

func (m *recordingMailer) SendWelcome(ctx context.Context, to, name, organization string) error {
	m.sent = append(m.sent, to)
	return m.err
}

func newService(f *testutil.Fixtures, mailer *recordingMailer) *Service {
	if mailer == nil {
		mailer = &recordingMailer{}
	}
	accounts := account.NewService(f.Store, security.NewBcryptHasher(security.MinCost), testutil.Clock)
	return NewService(f.Store, accounts, relation.NewService(f.Store), mailer,
		audit.NewService(f.Store.AuditLogs, nil, testutil.Clock),
		period.New(time.UTC, testutil.Clock))
}

func TestDashboardScenario(t *testing.T) {
	f := testutil.New(t)
	org := f.Organization("City Hospital")
	active := f.Doctor("Dr. Busy", "Hepatology", org, testutil.Now.AddDate(0, -3, 0))
	f.Doctor("Dr. Idle", "", org, testutil.Now.AddDate(0, 0, -2))
	p := f.Patient("Jane Doe", active)
	for i := 0; i < 3; i++ {
		f.Record(active, p, testutil.Now.AddDate(0, 0, -i), model.GradeF1)
	}

	svc := newService(f, nil)
	dash, err := svc.Dashboard(context.Background(), org)
	require.NoError(t, err)

	assert.Equal(t, int64(2), dash.TotalDoctors)
	assert.Equal(t, int64(3), dash.TotalRecordsMonth)
	assert.True(t, dash.MonthChange.FirstPeriod)
	assert.Equal(t, int64(1), dash.TotalRecordsToday)
	assert.Equal(t, "+0 from last day", dash.TodayChange.Label)
	assert.True(t, dash.DoctorsChange.FirstPeriod)

	require.Len(t, dash.Doctors, 2)
	assert.Equal(t, "Dr. Idle", dash.Doctors[0].FullName)
	assert.Equal(t, "General", dash.Doctors[0].Specialty)
	assert.Equal(t, "Mar 15, 2024", dash.Doctors[1].JoinedDate)
	assert.Equal(t, 1, dash.Doctors[1].PatientCount)

	analytics, err := svc.Analytics(context.Background(), org, DefaultWindowDays)
	require.NoError(t, err)
	require.Len(t, analytics.DoctorActivity, 2)
	assert.Equal(t, active.ID, analytics.DoctorActivity[0].DoctorID)
	assert.Equal(t, int64(3), analytics.DoctorActivity[0].Records)
	assert.Equal(t, int64(1), analytics.DoctorActivity[0].Patients)
	assert.Zero(t, analytics.DoctorActivity[1].Records)
}

func TestDashboardIgnoresOtherOrganizations(t *testing.T) {
	f := testutil.New(t)
	org := f.Organization("Mine")
	other := f.Organization("Theirs")
	d := f.Doctor("Dr. Other", "", other, testutil.Now)
	f.Record(d, f.Patient("P", d), testutil.Now, model.GradeF0)

	dash, err := newService(f, nil).Dashboard(context.Background(), org)
	require.NoError(t, err)
	assert.Zero(t, dash.TotalDoctors)
	assert.Zero(t, dash.TotalRecordsMonth)
	assert.Equal(t, "no activity", dash.MonthChange.Label)
	assert.NotNil(t, dash.Doctors)
}

func TestAnalytics(t *testing.T) {
	f := testutil.New(t)
	org := f.Organization("City Hospital")
	a := f.Doctor("Dr. A", "Hepatology", org, testutil.Now)
	b := f.Doctor("Dr. B", "Hepatology", org, testutil.Now)
	c := f.Doctor("Dr. C", "", org, testutil.Now)
	shared := f.Patient("Shared", a, b)
	solo := f.Patient("Solo", c)

	f.Record(a, shared, testutil.Now, model.GradeF0)
	f.Record(a, shared, testutil.Now.AddDate(0, 0, -1), model.GradeF0)
	f.Record(b, shared, testutil.Now.AddDate(0, -1, 0), model.GradeF2)
	f.Record(c, solo, testutil.Now.AddDate(0, -1, -2), model.GradeF2)
	f.Record(c, solo, testutil.Now.AddDate(0, -7, 0), model.GradeF4)

	analytics, err := newService(f, nil).Analytics(context.Background(), org, 30)
	require.NoError(t, err)

	assert.Equal(t, int64(3), analytics.TotalDoctors)
	assert.Equal(t, int64(2), analytics.TotalPatients)
	assert.Equal(t, int64(5), analytics.TotalRecords)
	assert.Equal(t, int64(2), analytics.RecordsThisMonth)
	assert.Equal(t, int64(2), analytics.RecordsLastMonth)
	assert.Equal(t, 0.0, analytics.GrowthRate)

	require.Len(t, analytics.TopSpecialties, 2)
	assert.Equal(t, model.SpecialtyCount{Specialty: "Hepatology", Count: 2}, analytics.TopSpecialties[0])
	assert.Equal(t, model.SpecialtyCount{Specialty: "General", Count: 1}, analytics.TopSpecialties[1])

	require.Len(t, analytics.MonthlyTrends, 6)
	assert.Equal(t, "Jan 2024", analytics.MonthlyTrends[0].Month)
	assert.Equal(t, "Jun 2024", analytics.MonthlyTrends[5].Month)
	assert.Equal(t, int64(2), analytics.MonthlyTrends[4].Records)

	// The window starts May 16, so only Dr. A has activity. Idle doctors
	// follow by name.
	require.Len(t, analytics.DoctorActivity, 3)
	assert.Equal(t, "Dr. A", analytics.DoctorActivity[0].DoctorName)
	assert.Equal(t, int64(2), analytics.DoctorActivity[0].Records)
	assert.Equal(t, "Dr. B", analytics.DoctorActivity[1].DoctorName)
	assert.Zero(t, analytics.DoctorActivity[1].Records)
	assert.Equal(t, "Dr. C", analytics.DoctorActivity[2].DoctorName)
}

func TestAnalyticsWindowBounds(t *testing.T) {
	f := testutil.New(t)
	org := f.Organization("City Hospital")
	svc := newService(f, nil)

	for _, days := range []int{0, -1, 366} {
		_, err := svc.Analytics(context.Background(), org, days)
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation), days)
	}
	_, err := svc.Analytics(context.Background(), org, 365)
	assert.NoError(t, err)
}

func TestGrowthRate(t *testing.T) {
	assert.Equal(t, 0.0, GrowthRate(5, 0))
	assert.Equal(t, 50.0, GrowthRate(3, 2))
	assert.Equal(t, -33.3, GrowthRate(2, 3))
}

func TestPatientsRollup(t *testing.T) {
	f := testutil.New(t)
	org := f.Organization("City Hospital")
	a := f.Doctor("Dr. A", "", org, testutil.Now)
	b := f.Doctor("Dr. B", "", org, testutil.Now)
	outsider := f.Doctor("Dr. Out", "", nil, testutil.Now)

	recent := f.Patient("Recent Patient", a, b)
	stale := f.Patient("Stale Patient", b)
	f.Patient("Not Ours", outsider)

	f.Record(a, recent, testutil.Now.AddDate(0, 0, -3), model.GradeF1)
	f.Record(b, recent, testutil.Now.AddDate(0, 0, -1), model.GradeF1)
	f.Record(b, stale, testutil.Now.AddDate(0, -6, 0), model.GradeF1)

	rows, total, err := newService(f, nil).Patients(context.Background(), org, "", pagination.Normalize(1, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, rows, 2)

	byName := map[string]model.OrganizationPatient{}
	for _, r := range rows {
		byName[r.FullName] = r
	}
	assert.Equal(t, model.PatientActive, byName["Recent Patient"].Status)
	assert.Equal(t, int64(2), byName["Recent Patient"].RecordCount)
	assert.Equal(t, 2, byName["Recent Patient"].Doctors)
	assert.Equal(t, "Dr. A", byName["Recent Patient"].AssignedDoctor)
	require.NotNil(t, byName["Recent Patient"].LastVisit)
	assert.Equal(t, testutil.Now.AddDate(0, 0, -1), *byName["Recent Patient"].LastVisit)
	assert.Equal(t, model.PatientInactive, byName["Stale Patient"].Status)

	rows, total, err = newService(f, nil).Patients(context.Background(), org, "stale", pagination.Normalize(1, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Stale Patient", rows[0].FullName)
}

func TestRosterAddAndRemove(t *testing.T) {
	f := testutil.New(t)
	org := f.Organization("City Hospital")
	mailer := &recordingMailer{err: errors.New("smtp down")}
	svc := newService(f, mailer)
	ctx := context.Background()

	doctor, err := svc.AddDoctor(ctx, org, model.CreateDoctorRequest{
		FullName: "Dr. New", Email: "new@city.org", Password: "secret1",
	})
	require.NoError(t, err)
	assert.True(t, doctor.BelongsTo(org.ID))
	assert.Equal(t, []string{"new@city.org"}, mailer.sent)

	p := f.Patient("Jane Doe", doctor)
	rec := f.Record(doctor, p, testutil.Now, model.GradeF1)

	other := f.Organization("Elsewhere")
	assert.True(t, apperrors.IsKind(svc.RemoveDoctor(ctx, other, doctor.ID), apperrors.KindNotFound))

	require.NoError(t, svc.RemoveDoctor(ctx, org, doctor.ID))
	fresh := f.Reload(doctor)
	assert.Nil(t, fresh.Organization)
	_, err = f.Store.MedicalImages.GetByID(ctx, rec.ID)
	assert.NoError(t, err)

	roster, err := svc.Doctors(ctx, org)
	require.NoError(t, err)
	assert.Empty(t, roster)
}

func TestUpdateProfileEmailConflict(t *testing.T) {
	f := testutil.New(t)
	org := f.Organization("City Hospital")
	taken := f.Doctor("Dr. A", "", nil, testutil.Now)
	svc := newService(f, nil)
	ctx := context.Background()

	_, err := svc.UpdateProfile(ctx, org, model.UpdateOrganizationRequest{Email: taken.Email})
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	updated, err := svc.UpdateProfile(ctx, org, model.UpdateOrganizationRequest{Name: "City General", Type: model.OrganizationClinic})
	require.NoError(t, err)
	assert.Equal(t, "City General", updated.Name)
	assert.Equal(t, org.Email, updated.Email)

	stored, err := f.Store.Organizations.GetByID(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrganizationClinic, stored.Type)
}

func TestDeleteDetachesRoster(t *testing.T) {
	f := testutil.New(t)
	org := f.Organization("City Hospital")
	d := f.Doctor("Dr. A", "", org, testutil.Now)
	svc := newService(f, nil)

	require.NoError(t, svc.Delete(context.Background(), org))
	assert.Nil(t, f.Reload(d).Organization)
	_, err := f.Store.Organizations.GetByID(context.Background(), org.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	dir, err := svc.Directory(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dir)
}
