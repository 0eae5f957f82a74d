package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MedicalImage is a record: one uploaded image and its grading outcome.
type MedicalImage struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Patient     primitive.ObjectID `json:"patient" bson:"patient"`
	Doctor      primitive.ObjectID `json:"doctor" bson:"doctor"`
	ImageURL    string             `json:"imageUrl" bson:"imageUrl"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	Grade       Grade              `json:"grade,omitempty" bson:"grade,omitempty"`
	Confidence  *float64           `json:"confidence,omitempty" bson:"confidence,omitempty"`
	UploadedAt  time.Time          `json:"uploadedAt" bson:"uploadedAt"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// RecordID is the display identifier, LIV-<yyyymm><last 3 id chars>.
func (m *MedicalImage) RecordID() string {
	hex := strings.ToUpper(m.ID.Hex())
	return fmt.Sprintf("LIV-%s%s", m.UploadedAt.Format("200601"), hex[len(hex)-3:])
}

// Graded reports whether the record carries a grade.
func (m *MedicalImage) Graded() bool {
	return m.Grade != ""
}

func (m MedicalImage) MarshalJSON() ([]byte, error) {
	type alias MedicalImage
	return json.Marshal(struct {
		alias
		RecordID string `json:"recordId"`
	}{alias(m), m.RecordID()})
}

// GradeLabel is the grade or "Pending" for ungraded records.
func (m *MedicalImage) GradeLabel() string {
	if !m.Graded() {
		return "Pending"
	}
	return string(m.Grade)
}

// RecordDetail is a record with its patient joined in.
type RecordDetail struct {
	ID          primitive.ObjectID `json:"id"`
	RecordID    string             `json:"recordId"`
	Patient     *PatientSummary    `json:"patient"`
	Doctor      primitive.ObjectID `json:"doctor"`
	ImageURL    string             `json:"imageUrl"`
	Description string             `json:"description,omitempty"`
	Grade       string             `json:"grade"`
	Confidence  *float64           `json:"confidence,omitempty"`
	UploadedAt  time.Time          `json:"uploadedAt"`
}

// NewRecordDetail joins p onto m. p may be nil for records whose patient is gone.
func NewRecordDetail(m *MedicalImage, p *PatientSummary) RecordDetail {
	return RecordDetail{
		ID:          m.ID,
		RecordID:    m.RecordID(),
		Patient:     p,
		Doctor:      m.Doctor,
		ImageURL:    m.ImageURL,
		Description: m.Description,
		Grade:       m.GradeLabel(),
		Confidence:  m.Confidence,
		UploadedAt:  m.UploadedAt,
	}
}

type UpdateMedicalImageRequest struct {
	Description *string  `json:"description" binding:"omitempty,max=500"`
	Grade       *Grade   `json:"grade" binding:"omitempty,grade"`
	Confidence  *float64 `json:"confidence" binding:"omitempty,min=0,max=100"`
}

// Analysis is the grading outcome returned from an upload.
type Analysis struct {
	Grade      Grade   `json:"grade"`
	Confidence float64 `json:"confidence"`
	Status     string  `json:"status"`
}

type UploadResult struct {
	ID           string        `json:"id"`
	MedicalImage *MedicalImage `json:"medicalImage"`
	Patient      *Patient      `json:"patient"`
	Analysis     Analysis      `json:"analysis"`
}
