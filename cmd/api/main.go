package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/livsafe/livsafe-api/internal/bootstrap"
	"github.com/livsafe/livsafe-api/internal/config"
	assistantHandler "github.com/livsafe/livsafe-api/internal/handler/assistant"
	authHandler "github.com/livsafe/livsafe-api/internal/handler/auth"
	doctorHandler "github.com/livsafe/livsafe-api/internal/handler/doctor"
	"github.com/livsafe/livsafe-api/internal/handler/health"
	medicalImageHandler "github.com/livsafe/livsafe-api/internal/handler/medicalimage"
	organizationHandler "github.com/livsafe/livsafe-api/internal/handler/organization"
	patientHandler "github.com/livsafe/livsafe-api/internal/handler/patient"
	"github.com/livsafe/livsafe-api/internal/middleware"
	"github.com/livsafe/livsafe-api/internal/router"
	"github.com/livsafe/livsafe-api/internal/service/account"
	"github.com/livsafe/livsafe-api/internal/service/assistant"
	authService "github.com/livsafe/livsafe-api/internal/service/auth"
	"github.com/livsafe/livsafe-api/internal/service/doctor"
	"github.com/livsafe/livsafe-api/internal/service/medicalimage"
	"github.com/livsafe/livsafe-api/internal/service/organization"
	"github.com/livsafe/livsafe-api/internal/service/patient"
	"github.com/livsafe/livsafe-api/internal/service/period"
	"github.com/livsafe/livsafe-api/internal/service/relation"
	"github.com/livsafe/livsafe-api/pkg/auth"
	"github.com/livsafe/livsafe-api/pkg/logger"
	"github.com/livsafe/livsafe-api/pkg/metrics"
	"github.com/livsafe/livsafe-api/pkg/security"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	log.Info().Str("environment", cfg.Server.Environment).Msg("starting livsafe api")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "livsafe")

	ctx := context.Background()
	var closers bootstrap.Closers
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		closers.Close(shutdownCtx)
	}()

	// Initialize storage
	store, closeStore, err := bootstrap.Store(ctx, cfg, m)
	if err != nil {
		return err
	}
	closers = append(closers, closeStore)

	auditor, closeAudit, err := bootstrap.Auditor(ctx, cfg, store, m)
	if err != nil {
		return err
	}
	closers = append(closers, closeAudit)

	files, err := bootstrap.Files(cfg)
	if err != nil {
		return err
	}

	completer, err := bootstrap.Completer(cfg)
	if err != nil {
		return err
	}

	rateLimit, closeRateLimit, err := bootstrap.RateLimit(ctx, cfg, m)
	if err != nil {
		return err
	}
	closers = append(closers, closeRateLimit)

	// Initialize services
	calendar := period.New(cfg.Analytics.Location(), time.Now)
	relations := relation.NewService(store)
	accounts := account.NewService(store, security.NewBcryptHasher(cfg.Security.BcryptCost), time.Now)
	authSvc := authService.NewService(accounts, auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry), auditor)
	doctorSvc := doctor.NewService(store, relations, files, auditor, calendar)
	organizationSvc := organization.NewService(store, accounts, relations, bootstrap.Mailer(cfg), auditor, calendar)
	patientSvc := patient.NewService(store, relations, files, auditor, time.Now)
	medicalImageSvc := medicalimage.NewService(store, relations, files, bootstrap.Grader(cfg, m), auditor, m, time.Now, cfg.Upload.MaxBytes)
	assistantSvc := assistant.NewService(store, completer, m)

	// Setup router
	routerConfig := router.Config{
		Development:    cfg.Server.Development(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		BodyLimit:      cfg.Server.BodyLimit,
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimit:      rateLimit,
		Metrics:        m,
	}
	if cfg.Metrics.Enabled {
		routerConfig.MetricsPath = cfg.Metrics.Path
		routerConfig.Gatherer = reg
	}

	r := router.NewRouter(middleware.NewAuthMiddleware(authSvc), router.Handlers{
		Auth:   authHandler.NewHandler(authSvc),
		Health: health.NewHandler(store.Pinger, cfg.Server.Environment, time.Now),
		Protected: []router.Handler{
			doctorHandler.NewHandler(doctorSvc),
			organizationHandler.NewHandler(organizationSvc),
			patientHandler.NewHandler(patientSvc),
			medicalImageHandler.NewHandler(medicalImageSvc),
			assistantHandler.NewHandler(assistantSvc),
		},
	}, routerConfig)

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exited")
	return nil
}
