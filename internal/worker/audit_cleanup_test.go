package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository/memory"
	"github.com/livsafe/livsafe-api/internal/service/audit"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func TestRunOncePrunesExpired(t *testing.T) {
	store := memory.New()
	repos := store.Repositories()
	ctx := context.Background()
	require.NoError(t, repos.AuditLogs.Create(ctx, &model.AuditLog{ID: "a", CreatedAt: now.AddDate(0, 0, -40)}))
	require.NoError(t, repos.AuditLogs.Create(ctx, &model.AuditLog{ID: "b", CreatedAt: now.AddDate(0, 0, -31)}))
	require.NoError(t, repos.AuditLogs.Create(ctx, &model.AuditLog{ID: "c", CreatedAt: now.AddDate(0, 0, -2)}))

	w := NewAuditCleanupWorker(audit.NewService(repos.AuditLogs, nil, func() time.Time { return now }), 30, 0)
	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Len(t, store.AuditLogs(), 1)
}

func TestStartWithoutIntervalRunsOnce(t *testing.T) {
	store := memory.New()
	repos := store.Repositories()
	require.NoError(t, repos.AuditLogs.Create(context.Background(), &model.AuditLog{ID: "a", CreatedAt: now.AddDate(-2, 0, 0)}))

	w := NewAuditCleanupWorker(audit.NewService(repos.AuditLogs, nil, func() time.Time { return now }), 365, 0)

	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return without an interval")
	}
	assert.Empty(t, store.AuditLogs())
}

func TestStartStopsOnCancel(t *testing.T) {
	w := NewAuditCleanupWorker(audit.NewService(nil, nil, nil), 30, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not stop after cancel")
	}
}
