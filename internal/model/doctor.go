package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultSpecialty is reported for doctors without a specialty.
const DefaultSpecialty = "General"

type Doctor struct {
	ID           primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	FullName     string               `json:"fullName" bson:"fullName"`
	Email        string               `json:"email" bson:"email"`
	PasswordHash string               `json:"-" bson:"password"`
	Specialty    string               `json:"specialty,omitempty" bson:"specialty,omitempty"`
	Organization *primitive.ObjectID  `json:"organization" bson:"organization"`
	Patients     []primitive.ObjectID `json:"patients" bson:"patients"`
	CreatedAt    time.Time            `json:"createdAt" bson:"createdAt"`
}

func (d *Doctor) HasPatient(id primitive.ObjectID) bool {
	return ContainsID(d.Patients, id)
}

// BelongsTo reports whether the doctor is on the roster of org.
func (d *Doctor) BelongsTo(org primitive.ObjectID) bool {
	return d.Organization != nil && *d.Organization == org
}

// SpecialtyOrDefault never returns an empty string.
func (d *Doctor) SpecialtyOrDefault() string {
	if d.Specialty == "" {
		return DefaultSpecialty
	}
	return d.Specialty
}

// DoctorSummary is the directory view of a doctor.
type DoctorSummary struct {
	ID           primitive.ObjectID  `json:"id"`
	FullName     string              `json:"fullName"`
	Specialty    string              `json:"specialty"`
	Organization *primitive.ObjectID `json:"organization"`
}

func (d *Doctor) Summary() DoctorSummary {
	return DoctorSummary{
		ID:           d.ID,
		FullName:     d.FullName,
		Specialty:    d.SpecialtyOrDefault(),
		Organization: d.Organization,
	}
}

// DoctorProfile is a doctor together with their patients.
type DoctorProfile struct {
	*Doctor
	PatientList []*Patient `json:"patientList"`
}

type UpdateDoctorRequest struct {
	FullName  string `json:"fullName" binding:"omitempty,max=100"`
	Specialty string `json:"specialty" binding:"omitempty,max=50"`
}

type AssignPatientRequest struct {
	DoctorID  string `json:"doctorId" binding:"required"`
	PatientID string `json:"patientId" binding:"required"`
}

type CreateDoctorRequest struct {
	FullName  string `json:"fullName" binding:"required,max=100"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	Specialty string `json:"specialty" binding:"omitempty,max=50"`
}
