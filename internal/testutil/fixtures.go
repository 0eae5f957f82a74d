// Package testutil seeds an in-memory store for service and handler tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
	"github.com/livsafe/livsafe-api/internal/repository/memory"
)

// Now is the pinned clock used across tests: mid-June 2024, UTC.
var Now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func Clock() time.Time { return Now }

type Fixtures struct {
	t     *testing.T
	Mem   *memory.Store
	Store repository.Store
	seq   int
}

func New(t *testing.T) *Fixtures {
	t.Helper()
	mem := memory.New()
	return &Fixtures{t: t, Mem: mem, Store: mem.Repositories()}
}

func (f *Fixtures) email(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s%d@example.com", prefix, f.seq)
}

func (f *Fixtures) Organization(name string) *model.Organization {
	f.t.Helper()
	org := &model.Organization{
		Name:      name,
		Email:     f.email("org"),
		Type:      model.OrganizationHospital,
		CreatedAt: Now.AddDate(-1, 0, 0),
	}
	require.NoError(f.t, f.Store.Organizations.Create(context.Background(), org))
	return org
}

// Doctor creates a doctor on org's roster, or unaffiliated when org is nil.
func (f *Fixtures) Doctor(name, specialty string, org *model.Organization, createdAt time.Time) *model.Doctor {
	f.t.Helper()
	d := &model.Doctor{
		FullName:  name,
		Email:     f.email("doctor"),
		Specialty: specialty,
		CreatedAt: createdAt,
	}
	if org != nil {
		id := org.ID
		d.Organization = &id
	}
	require.NoError(f.t, f.Store.Doctors.Create(context.Background(), d))
	return d
}

// Patient creates a patient linked to doctors on both sides.
func (f *Fixtures) Patient(name string, doctors ...*model.Doctor) *model.Patient {
	f.t.Helper()
	ctx := context.Background()
	p := &model.Patient{FullName: name, CreatedAt: Now.AddDate(0, -2, 0)}
	require.NoError(f.t, f.Store.Patients.Create(ctx, p))
	for _, d := range doctors {
		require.NoError(f.t, f.Store.Doctors.AddPatient(ctx, d.ID, p.ID))
		require.NoError(f.t, f.Store.Patients.AddDoctor(ctx, p.ID, d.ID))
		d.Patients = append(d.Patients, p.ID)
		p.Doctors = append(p.Doctors, d.ID)
	}
	return p
}

// Record creates a record. An empty grade leaves it ungraded.
func (f *Fixtures) Record(d *model.Doctor, p *model.Patient, uploadedAt time.Time, grade model.Grade) *model.MedicalImage {
	f.t.Helper()
	m := &model.MedicalImage{
		Patient:    p.ID,
		Doctor:     d.ID,
		ImageURL:   "/api/medical-images/file/" + fmt.Sprintf("seed-%d.png", f.seq),
		Grade:      grade,
		UploadedAt: uploadedAt,
		CreatedAt:  uploadedAt,
		UpdatedAt:  uploadedAt,
	}
	f.seq++
	if grade != "" {
		c := 90.0
		m.Confidence = &c
	}
	require.NoError(f.t, f.Store.MedicalImages.Create(context.Background(), m))
	return m
}

// Reload fetches the current state of a doctor.
func (f *Fixtures) Reload(d *model.Doctor) *model.Doctor {
	f.t.Helper()
	fresh, err := f.Store.Doctors.GetByID(context.Background(), d.ID)
	require.NoError(f.t, err)
	return fresh
}
