package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/livsafe/livsafe-api/internal/service/audit"
)

// AuditCleanupWorker prunes audit entries older than the retention window.
type AuditCleanupWorker struct {
	auditor         *audit.Service
	retention       time.Duration
	cleanupInterval time.Duration
}

func NewAuditCleanupWorker(auditor *audit.Service, retentionDays int, cleanupInterval time.Duration) *AuditCleanupWorker {
	return &AuditCleanupWorker{
		auditor:         auditor,
		retention:       time.Duration(retentionDays) * 24 * time.Hour,
		cleanupInterval: cleanupInterval,
	}
}

// Start cleans up immediately and then on every tick until ctx is done.
func (w *AuditCleanupWorker) Start(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil {
		log.Error().Err(err).Msg("Error cleaning up audit logs")
	}
	if w.cleanupInterval <= 0 {
		return
	}

	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("Error cleaning up audit logs")
			}
		}
	}
}

func (w *AuditCleanupWorker) RunOnce(ctx context.Context) (int64, error) {
	rows, err := w.auditor.Cleanup(ctx, w.retention)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}

	log.Info().
		Int64("deleted", rows).
		Dur("retention", w.retention).
		Msg("Cleaned up audit logs")
	return rows, nil
}
