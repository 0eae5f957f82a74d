package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Patient struct {
	ID        primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	FullName  string               `json:"fullName" bson:"fullName"`
	Gender    Gender               `json:"gender,omitempty" bson:"gender,omitempty"`
	Age       *int                 `json:"age,omitempty" bson:"age,omitempty"`
	Doctors   []primitive.ObjectID `json:"doctors" bson:"doctors"`
	CreatedAt time.Time            `json:"createdAt" bson:"createdAt"`
}

func (p *Patient) HasDoctor(id primitive.ObjectID) bool {
	return ContainsID(p.Doctors, id)
}

// PatientSummary is the slice of a patient joined onto a record.
type PatientSummary struct {
	ID       primitive.ObjectID `json:"id"`
	FullName string             `json:"fullName"`
	Age      *int               `json:"age,omitempty"`
	Gender   Gender             `json:"gender,omitempty"`
}

func (p *Patient) Summary() *PatientSummary {
	return &PatientSummary{ID: p.ID, FullName: p.FullName, Age: p.Age, Gender: p.Gender}
}

// PatientDetail is a patient with their records, newest first.
type PatientDetail struct {
	*Patient
	MedicalImages []*MedicalImage `json:"medicalImages"`
}

type CreatePatientRequest struct {
	FullName string `json:"fullName" binding:"required,max=100"`
	Gender   Gender `json:"gender" binding:"omitempty,gender"`
	Age      *int   `json:"age" binding:"omitempty,min=0,max=150"`
}

type UpdatePatientRequest struct {
	FullName *string `json:"fullName" binding:"omitempty,min=1,max=100"`
	Gender   *Gender `json:"gender" binding:"omitempty,gender"`
	Age      *int    `json:"age" binding:"omitempty,min=0,max=150"`
}

// OrganizationPatient is one row of an organization's patient rollup.
type OrganizationPatient struct {
	ID             primitive.ObjectID `json:"id"`
	FullName       string             `json:"fullName"`
	Age            *int               `json:"age,omitempty"`
	Gender         Gender             `json:"gender,omitempty"`
	AssignedDoctor string             `json:"assignedDoctor"`
	RecordCount    int64              `json:"recordCount"`
	LastVisit      *time.Time         `json:"lastVisit"`
	Status         string             `json:"status"`
	Doctors        int                `json:"doctors"`
	CreatedAt      time.Time          `json:"createdAt"`
}

const (
	PatientActive   = "active"
	PatientInactive = "inactive"
)
