// Package audit records who did what to which entity. Audit writes never fail
// the request that triggered them.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
	"github.com/livsafe/livsafe-api/pkg/metrics"
)

type clientKey struct{}

// ClientInfo describes the caller of the current request.
type ClientInfo struct {
	IPAddress string
	UserAgent string
	RequestID string
}

// WithClient attaches caller details to ctx.
func WithClient(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientKey{}, info)
}

// ClientFromContext returns the caller details attached by WithClient.
func ClientFromContext(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(clientKey{}).(ClientInfo)
	return info
}

// Entry is one auditable event.
type Entry struct {
	Actor      model.Principal
	Action     string
	EntityType string
	EntityID   string
	Metadata   map[string]string
}

type Service struct {
	repo    repository.AuditRepository
	metrics *metrics.Metrics
	now     model.Clock
}

// NewService returns an audit service. A nil repo disables persistence.
func NewService(repo repository.AuditRepository, m *metrics.Metrics, now model.Clock) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, metrics: m, now: now}
}

// Record persists e. Failures are logged and counted, never returned.
func (s *Service) Record(ctx context.Context, e Entry) {
	if s == nil || s.repo == nil {
		return
	}
	client := ClientFromContext(ctx)

	entry := &model.AuditLog{
		ID:         uuid.NewString(),
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Metadata:   e.Metadata,
		IPAddress:  client.IPAddress,
		UserAgent:  client.UserAgent,
		RequestID:  client.RequestID,
		CreatedAt:  s.now().UTC(),
	}
	if e.Actor.Kind != "" {
		entry.ActorID = e.Actor.ID().Hex()
		entry.ActorKind = string(e.Actor.Kind)
	}

	if err := s.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		log.Error().Err(err).
			Str("action", e.Action).
			Str("entity_type", e.EntityType).
			Str("entity_id", e.EntityID).
			Str("request_id", client.RequestID).
			Msg("Failed to write audit log")
		if s.metrics != nil {
			s.metrics.AuditWriteFailures.Inc()
		}
	}
}

// Cleanup deletes entries older than retention.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	if s == nil || s.repo == nil {
		return 0, nil
	}
	return s.repo.Cleanup(ctx, s.now().Add(-retention))
}
