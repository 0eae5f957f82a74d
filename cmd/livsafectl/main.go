package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/livsafe/livsafe-api/internal/bootstrap"
	"github.com/livsafe/livsafe-api/internal/config"
	"github.com/livsafe/livsafe-api/internal/repository"
	"github.com/livsafe/livsafe-api/internal/seed"
	"github.com/livsafe/livsafe-api/internal/service/account"
	"github.com/livsafe/livsafe-api/internal/service/relation"
	"github.com/livsafe/livsafe-api/internal/storage"
	"github.com/livsafe/livsafe-api/internal/worker"
	"github.com/livsafe/livsafe-api/pkg/logger"
	"github.com/livsafe/livsafe-api/pkg/metrics"
	"github.com/livsafe/livsafe-api/pkg/security"
)

var configDirs []string

func main() {
	rootCmd := &cobra.Command{
		Use:           "livsafectl",
		Short:         "LivSafe maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringSliceVar(&configDirs, "config-dir", nil, "Directories searched for config.yaml (default . and ./config)")

	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(auditCleanupCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}

// env is what every command needs: configuration and an open store.
type env struct {
	cfg     *config.Config
	store   repository.Store
	metrics *metrics.Metrics
	closers bootstrap.Closers
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load(configDirs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.New(logger.Config{Level: cfg.Log.Level, Pretty: true})

	m := metrics.New(prometheus.NewRegistry(), "livsafectl")
	store, closeStore, err := bootstrap.Store(ctx, cfg, m)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, store: store, metrics: m, closers: bootstrap.Closers{closeStore}}, nil
}

func (e *env) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	e.closers.Close(ctx)
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo organization, doctors, patients and records",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			accounts := account.NewService(e.store, security.NewBcryptHasher(e.cfg.Security.BcryptCost), time.Now)
			seeder := seed.New(e.store, accounts, relation.NewService(e.store), e.cfg.Analytics.Location(), time.Now)

			summary, err := seeder.Run(cmd.Context())
			if errors.Is(err, seed.ErrAlreadySeeded) {
				log.Warn().Str("organization", seed.OrganizationEmail).Msg("demo data already present, nothing to do")
				return nil
			}
			if err != nil {
				return err
			}

			log.Info().
				Int("organizations", summary.Organizations).
				Int("doctors", summary.Doctors).
				Int("patients", summary.Patients).
				Int("records", summary.Records).
				Msg("demo data created")
			for _, c := range summary.Credentials {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Repair doctor/patient links and remove orphaned records",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			report, err := relation.NewService(e.store).Reconcile(cmd.Context())
			if err != nil {
				return err
			}

			files, err := bootstrap.Files(e.cfg)
			if err != nil {
				return err
			}
			storage.RemoveURLs(cmd.Context(), files, report.RemovedImageURLs...)

			log.Info().
				Int("links_repaired", report.LinksRepaired).
				Int("dangling_removed", report.DanglingRemoved).
				Int("orphan_records_removed", report.OrphanImagesRemoved).
				Msg("reconcile finished")
			return nil
		},
	}
}

func auditCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit-cleanup",
		Short: "Delete audit entries older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, _ := cmd.Flags().GetDuration("interval")
			retentionDays, _ := cmd.Flags().GetInt("retention-days")

			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			auditor, closeAudit, err := bootstrap.Auditor(cmd.Context(), e.cfg, e.store, e.metrics)
			if err != nil {
				return err
			}
			e.closers = append(e.closers, closeAudit)

			if retentionDays <= 0 {
				retentionDays = e.cfg.Audit.RetentionDays
			}
			if retentionDays <= 0 {
				return errors.New("retention must be at least one day")
			}

			w := worker.NewAuditCleanupWorker(auditor, retentionDays, interval)
			if interval <= 0 {
				_, err := w.RunOnce(cmd.Context())
				return err
			}
			w.Start(cmd.Context())
			return nil
		},
	}
	cmd.Flags().Duration("interval", 0, "Repeat the cleanup on this interval until interrupted (0 runs once)")
	cmd.Flags().Int("retention-days", 0, "Override audit.retention_days")
	return cmd
}
