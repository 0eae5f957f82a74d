package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Organization struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name         string             `json:"name" bson:"name"`
	Email        string             `json:"email" bson:"email"`
	PasswordHash string             `json:"-" bson:"password"`
	Type         OrganizationType   `json:"type" bson:"type"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
}

// OrganizationSummary is the public directory view.
type OrganizationSummary struct {
	ID   primitive.ObjectID `json:"id"`
	Name string             `json:"name"`
	Type OrganizationType   `json:"type"`
}

func (o *Organization) Summary() OrganizationSummary {
	return OrganizationSummary{ID: o.ID, Name: o.Name, Type: o.Type}
}

// OrganizationProfile is an organization with its roster.
type OrganizationProfile struct {
	*Organization
	Doctors []DoctorSummary `json:"doctors"`
}

type UpdateOrganizationRequest struct {
	Name  string           `json:"name" binding:"omitempty,max=100"`
	Email string           `json:"email" binding:"omitempty,email"`
	Type  OrganizationType `json:"type" binding:"omitempty,orgtype"`
}
