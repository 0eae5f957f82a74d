package model

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type SignupDoctorRequest struct {
	FullName       string `json:"fullName" binding:"required,max=100"`
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=6"`
	Specialty      string `json:"specialty" binding:"omitempty,max=50"`
	OrganizationID string `json:"organizationId"`
}

type SignupOrganizationRequest struct {
	Name     string           `json:"name" binding:"required,max=100"`
	Email    string           `json:"email" binding:"required,email"`
	Password string           `json:"password" binding:"required,min=6"`
	Type     OrganizationType `json:"type" binding:"omitempty,orgtype"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

// UserProfile is returned by login, signup and /me.
type UserProfile struct {
	ID           primitive.ObjectID  `json:"id"`
	Kind         PrincipalKind       `json:"kind"`
	Email        string              `json:"email"`
	FullName     string              `json:"fullName,omitempty"`
	Name         string              `json:"name,omitempty"`
	Specialty    string              `json:"specialty,omitempty"`
	Organization *primitive.ObjectID `json:"organization,omitempty"`
	Type         OrganizationType    `json:"type,omitempty"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}
