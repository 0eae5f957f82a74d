// Package seed loads the demo organization, doctors, patients and records
// used for local development.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
	"github.com/livsafe/livsafe-api/internal/service/account"
	"github.com/livsafe/livsafe-api/internal/service/relation"
	"github.com/livsafe/livsafe-api/internal/storage"
)

const (
	OrganizationEmail    = "admin@citygeneral.com"
	OrganizationPassword = "admin123"
	DoctorPassword       = "doctor123"
)

// ErrAlreadySeeded is returned when the demo organization already exists.
var ErrAlreadySeeded = errors.New("demo data already present")

type Summary struct {
	Organizations int
	Doctors       int
	Patients      int
	Records       int
	Credentials   []string
}

type demoDoctor struct {
	name, email, specialty string
	independent            bool
}

type demoPatient struct {
	name    string
	age     int
	gender  model.Gender
	doctors []int
}

type demoRecord struct {
	patient, doctor int
	file            string
	description     string
	grade           model.Grade
	confidence      float64
	day             int
}

var (
	demoDoctors = []demoDoctor{
		{name: "Dr. Sarah Johnson", email: "sarah.johnson@citygeneral.com", specialty: "Hepatology"},
		{name: "Dr. Michael Chen", email: "michael.chen@citygeneral.com", specialty: "Radiology"},
		{name: "Dr. Emily Rodriguez", email: "emily.rodriguez@gmail.com", specialty: "Internal Medicine", independent: true},
	}

	demoPatients = []demoPatient{
		{name: "John Doe", age: 45, gender: model.GenderMale, doctors: []int{0, 1}},
		{name: "Jane Smith", age: 32, gender: model.GenderFemale, doctors: []int{0}},
		{name: "Robert Wilson", age: 58, gender: model.GenderMale, doctors: []int{1, 2}},
		{name: "Maria Garcia", age: 41, gender: model.GenderFemale, doctors: []int{2}},
	}

	demoRecords = []demoRecord{
		{patient: 0, doctor: 0, file: "sample-liver-scan-1.jpg", description: "Liver fibrosis assessment scan", grade: model.GradeF2, confidence: 87, day: 15},
		{patient: 1, doctor: 0, file: "sample-liver-scan-2.jpg", description: "Follow-up liver examination", grade: model.GradeF1, confidence: 92, day: 20},
		{patient: 2, doctor: 1, file: "sample-liver-scan-3.jpg", description: "Initial liver assessment", grade: model.GradeF3, confidence: 78, day: 25},
	}
)

type Seeder struct {
	store     repository.Store
	accounts  *account.Service
	relations *relation.Service
	loc       *time.Location
	now       model.Clock
}

func New(store repository.Store, accounts *account.Service, relations *relation.Service, loc *time.Location, now model.Clock) *Seeder {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Seeder{store: store, accounts: accounts, relations: relations, loc: loc, now: now}
}

// Run creates the demo data set. Existing data is never removed; a store
// that already holds the demo organization is left untouched.
func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	if _, err := s.store.Organizations.GetByEmail(ctx, OrganizationEmail); err == nil {
		return Summary{}, ErrAlreadySeeded
	} else if !errors.Is(err, repository.ErrNotFound) {
		return Summary{}, fmt.Errorf("failed to check for demo data: %w", err)
	}

	var summary Summary
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		summary = Summary{}

		org, err := s.accounts.CreateOrganization(ctx, account.NewOrganization{
			Name:     "City General Hospital",
			Email:    OrganizationEmail,
			Password: OrganizationPassword,
			Type:     model.OrganizationHospital,
		})
		if err != nil {
			return fmt.Errorf("failed to create organization: %w", err)
		}
		summary.Organizations++
		summary.Credentials = append(summary.Credentials, OrganizationEmail+" / "+OrganizationPassword)

		doctorIDs := make([]primitive.ObjectID, len(demoDoctors))
		for i, d := range demoDoctors {
			in := account.NewDoctor{FullName: d.name, Email: d.email, Password: DoctorPassword, Specialty: d.specialty}
			if !d.independent {
				in.Organization = &org.ID
			}
			doctor, err := s.accounts.CreateDoctor(ctx, in)
			if err != nil {
				return fmt.Errorf("failed to create doctor %s: %w", d.email, err)
			}
			doctorIDs[i] = doctor.ID
			summary.Doctors++
			summary.Credentials = append(summary.Credentials, d.email+" / "+DoctorPassword)
		}

		patientIDs := make([]primitive.ObjectID, len(demoPatients))
		for i, p := range demoPatients {
			age := p.age
			patient := &model.Patient{
				FullName:  p.name,
				Age:       &age,
				Gender:    p.gender,
				Doctors:   []primitive.ObjectID{},
				CreatedAt: s.now().UTC(),
			}
			if err := s.store.Patients.Create(ctx, patient); err != nil {
				return fmt.Errorf("failed to create patient %s: %w", p.name, err)
			}
			for _, di := range p.doctors {
				if err := s.relations.Link(ctx, doctorIDs[di], patient.ID); err != nil {
					return err
				}
			}
			patientIDs[i] = patient.ID
			summary.Patients++
		}

		for _, r := range demoRecords {
			confidence := r.confidence
			uploaded := time.Date(2024, time.January, r.day, 0, 0, 0, 0, s.loc).UTC()
			record := &model.MedicalImage{
				Patient:     patientIDs[r.patient],
				Doctor:      doctorIDs[r.doctor],
				ImageURL:    storage.URL(r.file),
				Description: r.description,
				Grade:       r.grade,
				Confidence:  &confidence,
				UploadedAt:  uploaded,
				CreatedAt:   uploaded,
				UpdatedAt:   uploaded,
			}
			if err := s.store.MedicalImages.Create(ctx, record); err != nil {
				return fmt.Errorf("failed to create record: %w", err)
			}
			summary.Records++
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	return summary, nil
}
