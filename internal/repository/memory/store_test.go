package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
)

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	store := New()
	repos := store.Repositories()

	doctor := &model.Doctor{FullName: "Dr. Ada", Email: "ada@example.com", CreatedAt: time.Now()}
	require.NoError(t, repos.Doctors.Create(ctx, doctor))

	boom := errors.New("boom")
	err := repos.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		patient := &model.Patient{FullName: "Jane Doe", CreatedAt: time.Now()}
		require.NoError(t, repos.Patients.Create(ctx, patient))
		require.NoError(t, repos.Doctors.AddPatient(ctx, doctor.ID, patient.ID))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, total, err := repos.Patients.List(ctx, repository.PatientFilter{}, repository.Page{}, repository.SortNewest)
	require.NoError(t, err)
	assert.Zero(t, total)

	reloaded, err := repos.Doctors.GetByID(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Patients)
}

func TestWriteOutsideTransactionSurvivesRollback(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()

	started := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- repos.Tx.WithTransaction(ctx, func(ctx context.Context) error {
			close(started)
			<-release
			return errors.New("boom")
		})
	}()
	<-started

	written := make(chan error, 1)
	go func() {
		written <- repos.Patients.Create(ctx, &model.Patient{FullName: "Outside"})
	}()

	select {
	case <-written:
		t.Fatal("write finished while a transaction was open")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.Error(t, <-txDone)
	require.NoError(t, <-written)

	p, err := repos.Patients.FindByFullName(ctx, "Outside")
	require.NoError(t, err)
	assert.Equal(t, "Outside", p.FullName)
}

func TestNestedTransactionJoinsOuter(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()

	err := repos.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		return repos.Tx.WithTransaction(ctx, func(ctx context.Context) error {
			return repos.Patients.Create(ctx, &model.Patient{FullName: "Nested"})
		})
	})
	require.NoError(t, err)

	p, err := repos.Patients.FindByFullName(ctx, "Nested")
	require.NoError(t, err)
	assert.Equal(t, "Nested", p.FullName)
}

func TestPatientPagesDoNotOverlap(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()

	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		// Half the patients share a timestamp so the id tie-break matters.
		at := created
		if i%2 == 0 {
			at = created.Add(time.Duration(i) * time.Minute)
		}
		require.NoError(t, repos.Patients.Create(ctx, &model.Patient{FullName: fmt.Sprintf("Patient %02d", i), CreatedAt: at}))
	}

	page1, total, err := repos.Patients.List(ctx, repository.PatientFilter{}, repository.Page{Skip: 0, Limit: 10}, repository.SortNewest)
	require.NoError(t, err)
	page2, _, err := repos.Patients.List(ctx, repository.PatientFilter{}, repository.Page{Skip: 10, Limit: 10}, repository.SortNewest)
	require.NoError(t, err)

	assert.Equal(t, int64(25), total)
	require.Len(t, page1, 10)
	require.Len(t, page2, 10)

	seen := map[string]bool{}
	for _, p := range page1 {
		seen[p.ID.Hex()] = true
	}
	for _, p := range page2 {
		assert.False(t, seen[p.ID.Hex()], "patient %s on both pages", p.FullName)
	}
}

func TestPatientPageBeyondEnd(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	require.NoError(t, repos.Patients.Create(ctx, &model.Patient{FullName: "Jane Doe"}))

	for _, skip := range []int64{1, 1 << 40, -10} {
		items, total, err := repos.Patients.List(ctx, repository.PatientFilter{}, repository.Page{Skip: skip, Limit: 10}, repository.SortNewest)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Empty(t, items, "skip %d", skip)
	}
}

func TestDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()

	require.NoError(t, repos.Doctors.Create(ctx, &model.Doctor{Email: "dup@example.com"}))
	err := repos.Doctors.Create(ctx, &model.Doctor{Email: "dup@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestSpecialtyCountsDefaultsAndOrder(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()

	org := &model.Organization{Name: "General Hospital", Email: "gh@example.com"}
	require.NoError(t, repos.Organizations.Create(ctx, org))

	for i, s := range []string{"Hepatology", "", "Radiology", "Hepatology", "", "Oncology"} {
		orgID := org.ID
		require.NoError(t, repos.Doctors.Create(ctx, &model.Doctor{
			Email:        fmt.Sprintf("d%d@example.com", i),
			Specialty:    s,
			Organization: &orgID,
		}))
	}

	counts, err := repos.Doctors.SpecialtyCounts(ctx, org.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, []model.SpecialtyCount{
		{Specialty: "General", Count: 2},
		{Specialty: "Hepatology", Count: 2},
		{Specialty: "Oncology", Count: 1},
	}, counts)
}
