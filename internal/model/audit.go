package model

import (
	"time"
)

type AuditLog struct {
	ID         string            `json:"id" bson:"_id" db:"id"`
	ActorID    string            `json:"actorId" bson:"actorId" db:"actor_id"`
	ActorKind  string            `json:"actorKind" bson:"actorKind" db:"actor_kind"`
	Action     string            `json:"action" bson:"action" db:"action"`
	EntityType string            `json:"entityType" bson:"entityType" db:"entity_type"`
	EntityID   string            `json:"entityId" bson:"entityId" db:"entity_id"`
	Metadata   map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty" db:"-"`
	IPAddress  string            `json:"ipAddress" bson:"ipAddress" db:"ip_address"`
	UserAgent  string            `json:"userAgent" bson:"userAgent" db:"user_agent"`
	RequestID  string            `json:"requestId" bson:"requestId" db:"request_id"`
	CreatedAt  time.Time         `json:"createdAt" bson:"createdAt" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate   = "create"
	AuditActionUpdate   = "update"
	AuditActionDelete   = "delete"
	AuditActionLogin    = "login"
	AuditActionLogout   = "logout"
	AuditActionSignup   = "signup"
	AuditActionPassword = "password_change"
	AuditActionAssign   = "assign"
	AuditActionDetach   = "detach"

	// Entity types
	AuditEntityDoctor       = "doctor"
	AuditEntityOrganization = "organization"
	AuditEntityPatient      = "patient"
	AuditEntityRecord       = "medical_image"
)
