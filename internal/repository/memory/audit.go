package memory

import (
	"context"
	"time"

	"github.com/livsafe/livsafe-api/internal/model"
)

type auditRepository struct {
	s *Store
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	defer r.s.lockWrite(ctx)()

	entry := *log
	r.s.audit = append(r.s.audit, &entry)
	return nil
}

func (r *auditRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	defer r.s.lockWrite(ctx)()

	kept := r.s.audit[:0]
	var removed int64
	for _, l := range r.s.audit {
		if l.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	r.s.audit = kept
	return removed, nil
}

// AuditLogs returns a copy of every recorded entry, oldest first.
func (s *Store) AuditLogs() []model.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.AuditLog, 0, len(s.audit))
	for _, l := range s.audit {
		out = append(out, *l)
	}
	return out
}
