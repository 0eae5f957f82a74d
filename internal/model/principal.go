package model

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PrincipalKind tags which collection an authenticated actor lives in.
type PrincipalKind string

const (
	KindDoctor       PrincipalKind = "doctor"
	KindOrganization PrincipalKind = "organization"
)

// Principal is the authenticated actor of a request. Exactly one of Doctor
// and Organization is set, matching Kind.
type Principal struct {
	Kind         PrincipalKind
	Doctor       *Doctor
	Organization *Organization
}

func DoctorPrincipal(d *Doctor) Principal {
	return Principal{Kind: KindDoctor, Doctor: d}
}

func OrganizationPrincipal(o *Organization) Principal {
	return Principal{Kind: KindOrganization, Organization: o}
}

func (p Principal) ID() primitive.ObjectID {
	switch p.Kind {
	case KindDoctor:
		return p.Doctor.ID
	case KindOrganization:
		return p.Organization.ID
	}
	return primitive.NilObjectID
}

func (p Principal) PasswordHash() string {
	switch p.Kind {
	case KindDoctor:
		return p.Doctor.PasswordHash
	case KindOrganization:
		return p.Organization.PasswordHash
	}
	return ""
}

// Profile is the client-facing view of the principal.
func (p Principal) Profile() UserProfile {
	switch p.Kind {
	case KindDoctor:
		return UserProfile{
			ID:           p.Doctor.ID,
			Kind:         KindDoctor,
			Email:        p.Doctor.Email,
			FullName:     p.Doctor.FullName,
			Specialty:    p.Doctor.Specialty,
			Organization: p.Doctor.Organization,
		}
	case KindOrganization:
		return UserProfile{
			ID:    p.Organization.ID,
			Kind:  KindOrganization,
			Email: p.Organization.Email,
			Name:  p.Organization.Name,
			Type:  p.Organization.Type,
		}
	}
	return UserProfile{}
}
