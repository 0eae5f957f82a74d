package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/model"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Page bounds a list query. A zero Limit returns everything after Skip.
type Page struct {
	Skip  int64
	Limit int64
}

// PatientSort selects the order of patient listings.
type PatientSort int

const (
	// SortNewest orders by createdAt desc, then _id desc.
	SortNewest PatientSort = iota
	// SortByName orders by fullName asc, then _id asc.
	SortByName
)

type DoctorFilter struct {
	OrganizationID *primitive.ObjectID
	IDs            []primitive.ObjectID
	CreatedFrom    time.Time
	CreatedTo      time.Time
}

type PatientFilter struct {
	// Search is a case-insensitive substring match on fullName.
	Search string
	Gender model.Gender
	Age    *int
	IDs    []primitive.ObjectID
	// DoctorIDs keeps patients linked to at least one of these doctors.
	// A non-nil empty slice matches nothing.
	DoctorIDs []primitive.ObjectID
}

type RecordFilter struct {
	// DoctorIDs and PatientIDs restrict by reference when non-nil.
	// A non-nil empty slice matches nothing.
	DoctorIDs  []primitive.ObjectID
	PatientIDs []primitive.ObjectID
	// From is inclusive, To is exclusive. Zero values are unbounded.
	From       time.Time
	To         time.Time
	GradedOnly bool
}

type (
	// Transactor runs fn so that every store call made with the ctx it
	// receives commits or rolls back together. Nested calls join the
	// outer transaction.
	Transactor interface {
		WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		GetByID(ctx context.Context, id primitive.ObjectID) (*model.Doctor, error)
		GetByEmail(ctx context.Context, email string) (*model.Doctor, error)
		// List orders by createdAt desc, then _id desc.
		List(ctx context.Context, filter DoctorFilter) ([]*model.Doctor, error)
		Count(ctx context.Context, filter DoctorFilter) (int64, error)
		UpdateProfile(ctx context.Context, id primitive.ObjectID, fullName, specialty string) error
		UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error
		SetOrganization(ctx context.Context, id primitive.ObjectID, orgID *primitive.ObjectID) error
		DetachOrganization(ctx context.Context, orgID primitive.ObjectID) (int64, error)
		AddPatient(ctx context.Context, doctorID, patientID primitive.ObjectID) error
		RemovePatient(ctx context.Context, doctorID, patientID primitive.ObjectID) error
		RemovePatientEverywhere(ctx context.Context, patientID primitive.ObjectID) (int64, error)
		// SpecialtyCounts groups an organization's roster by specialty,
		// empty specialties counting as model.DefaultSpecialty. Ordered by
		// count desc, then specialty asc.
		SpecialtyCounts(ctx context.Context, orgID primitive.ObjectID, limit int) ([]model.SpecialtyCount, error)
	}

	OrganizationRepository interface {
		Create(ctx context.Context, org *model.Organization) error
		GetByID(ctx context.Context, id primitive.ObjectID) (*model.Organization, error)
		GetByEmail(ctx context.Context, email string) (*model.Organization, error)
		List(ctx context.Context) ([]*model.Organization, error)
		Update(ctx context.Context, org *model.Organization) error
		UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error
		Delete(ctx context.Context, id primitive.ObjectID) error
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		GetByID(ctx context.Context, id primitive.ObjectID) (*model.Patient, error)
		// FindByFullName matches the name exactly, oldest patient first.
		FindByFullName(ctx context.Context, fullName string) (*model.Patient, error)
		List(ctx context.Context, filter PatientFilter, page Page, sort PatientSort) ([]*model.Patient, int64, error)
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, id primitive.ObjectID) error
		AddDoctor(ctx context.Context, patientID, doctorID primitive.ObjectID) error
		RemoveDoctor(ctx context.Context, patientID, doctorID primitive.ObjectID) error
	}

	MedicalImageRepository interface {
		Create(ctx context.Context, image *model.MedicalImage) error
		GetByID(ctx context.Context, id primitive.ObjectID) (*model.MedicalImage, error)
		Update(ctx context.Context, image *model.MedicalImage) error
		Delete(ctx context.Context, id primitive.ObjectID) error
		// DeleteByPatient removes every record of the patient and returns
		// their image URLs.
		DeleteByPatient(ctx context.Context, patientID primitive.ObjectID) ([]string, error)
		// List orders by uploadedAt desc, then _id desc.
		List(ctx context.Context, filter RecordFilter, page Page) ([]*model.MedicalImage, int64, error)
		// ListDetailed is List with the patient joined in.
		ListDetailed(ctx context.Context, filter RecordFilter, page Page) ([]model.RecordDetail, int64, error)
		Count(ctx context.Context, filter RecordFilter) (int64, error)
		GradeDistribution(ctx context.Context, filter RecordFilter) (map[model.Grade]int64, error)
		// ActivityByDoctor groups matching records by doctor, counting
		// records and distinct patients.
		ActivityByDoctor(ctx context.Context, filter RecordFilter) ([]model.RecordActivity, error)
		// ActivityByPatient groups matching records by patient, counting
		// records and the latest upload.
		ActivityByPatient(ctx context.Context, filter RecordFilter) ([]model.RecordActivity, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		Cleanup(ctx context.Context, before time.Time) (int64, error)
	}
)

// Store bundles the repositories of one backend.
type Store struct {
	Doctors       DoctorRepository
	Organizations OrganizationRepository
	Patients      PatientRepository
	MedicalImages MedicalImageRepository
	AuditLogs     AuditRepository
	Tx            Transactor
	Pinger        Pinger
}
