// Package bootstrap builds the process-wide dependencies from configuration.
// It is shared by the API server and livsafectl.
package bootstrap

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/livsafe/livsafe-api/internal/config"
	"github.com/livsafe/livsafe-api/internal/email"
	"github.com/livsafe/livsafe-api/internal/middleware"
	"github.com/livsafe/livsafe-api/internal/repository"
	"github.com/livsafe/livsafe-api/internal/repository/memory"
	"github.com/livsafe/livsafe-api/internal/repository/mongodb"
	"github.com/livsafe/livsafe-api/internal/repository/postgres"
	"github.com/livsafe/livsafe-api/internal/service/audit"
	"github.com/livsafe/livsafe-api/internal/service/grading"
	"github.com/livsafe/livsafe-api/internal/storage"
	"github.com/livsafe/livsafe-api/pkg/llm"
	"github.com/livsafe/livsafe-api/pkg/metrics"
)

// Closer releases a dependency on shutdown.
type Closer func(ctx context.Context) error

// Closers runs in reverse order, logging failures.
type Closers []Closer

func (c Closers) Close(ctx context.Context) {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](ctx); err != nil {
			log.Error().Err(err).Msg("Failed to release dependency")
		}
	}
}

// Store opens the configured document store.
func Store(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (repository.Store, Closer, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		return memory.New().Repositories(), func(context.Context) error { return nil }, nil
	}

	db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:            cfg.Mongo.URI,
		Database:       cfg.Mongo.Database,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
		Transactions:   cfg.Mongo.Transactions,
	}, m)
	if err != nil {
		return repository.Store{}, nil, err
	}
	if err := db.EnsureIndexes(ctx); err != nil {
		_ = db.Close(context.Background())
		return repository.Store{}, nil, err
	}

	log.Info().
		Str("database", cfg.Mongo.Database).
		Bool("transactions", cfg.Mongo.Transactions).
		Msg("Connected to MongoDB")
	return db.Repositories(), db.Close, nil
}

// Auditor builds the audit service over the configured sink. The mongo
// driver writes to the primary store, whichever backend that is.
func Auditor(ctx context.Context, cfg *config.Config, store repository.Store, m *metrics.Metrics) (*audit.Service, Closer, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.Audit.Driver {
	case config.AuditNone:
		return audit.NewService(nil, m, time.Now), noop, nil
	case config.AuditPostgres:
		db, err := postgres.NewDB(cfg.Audit.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.EnsureAuditSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return audit.NewService(postgres.NewAuditRepository(db), m, time.Now),
			func(context.Context) error { return db.Close() }, nil
	default:
		return audit.NewService(store.AuditLogs, m, time.Now), noop, nil
	}
}

// Files opens the upload directory.
func Files(cfg *config.Config) (storage.ImageStore, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		return storage.NewMemory(), nil
	}
	return storage.NewLocal(cfg.Upload.Dir)
}

// Grader returns the remote grader when an endpoint is configured and the
// random grader otherwise.
func Grader(cfg *config.Config, m *metrics.Metrics) grading.Grader {
	if cfg.Grading.Endpoint != "" {
		return grading.WithMetrics(grading.NewRemote(grading.RemoteConfig{
			Endpoint:   cfg.Grading.Endpoint,
			Timeout:    cfg.Grading.Timeout,
			MaxRetries: cfg.Grading.MaxRetries,
		}), m)
	}
	log.Warn().Msg("No grading endpoint configured, using random grades")
	return grading.WithMetrics(grading.NewRandom(rand.NewSource(time.Now().UnixNano())), m)
}

// Completer returns nil when no API key is configured.
func Completer(cfg *config.Config) (llm.Completer, error) {
	if cfg.Assistant.APIKey == "" {
		log.Warn().Msg("No Gemini API key configured, assistant is disabled")
		return nil, nil
	}
	g, err := llm.NewGemini(llm.Config{
		APIKey:            cfg.Assistant.APIKey,
		Model:             cfg.Assistant.Model,
		BaseURL:           cfg.Assistant.BaseURL,
		Timeout:           cfg.Assistant.Timeout,
		MaxRetries:        cfg.Assistant.MaxRetries,
		RequestsPerSecond: cfg.Assistant.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant client: %w", err)
	}
	return g, nil
}

func Mailer(cfg *config.Config) email.Sender {
	return email.New(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}

// RateLimit returns nil when rate limiting is disabled.
func RateLimit(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*middleware.RateLimitConfig, Closer, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.RateLimit.Enabled {
		return nil, noop, nil
	}

	rl := &middleware.RateLimitConfig{
		Limit:   cfg.RateLimit.Requests,
		Window:  cfg.RateLimit.Window,
		Metrics: m,
	}
	if cfg.RateLimit.Backend != config.RateLimitRedis {
		rl.Store = middleware.NewMemoryWindowStore(cfg.RateLimit.Window)
		return rl, noop, nil
	}

	opts, err := redis.ParseURL(cfg.RateLimit.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	rl.Store = middleware.NewRedisWindowStore(client)
	return rl, func(context.Context) error { return client.Close() }, nil
}
