package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_logs (
    id          UUID PRIMARY KEY,
    actor_id    TEXT NOT NULL,
    actor_kind  TEXT NOT NULL,
    action      TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id   TEXT NOT NULL,
    metadata    JSONB,
    ip_address  TEXT,
    user_agent  TEXT,
    request_id  TEXT,
    created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_logs_created_at_idx ON audit_logs (created_at);
`

type auditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

// EnsureAuditSchema creates the audit table when it is missing.
func EnsureAuditSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, auditSchema); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	return nil
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	var metadata interface{}
	if len(log.Metadata) > 0 {
		raw, err := json.Marshal(log.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
		metadata = string(raw)
	}

	query := `
        INSERT INTO audit_logs (
            id, actor_id, actor_kind, action, entity_type, entity_id,
            metadata, ip_address, user_agent, request_id, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `
	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.ActorID,
		log.ActorKind,
		log.Action,
		log.EntityType,
		log.EntityID,
		metadata,
		log.IPAddress,
		log.UserAgent,
		log.RequestID,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

func (r *auditRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	return res.RowsAffected()
}
