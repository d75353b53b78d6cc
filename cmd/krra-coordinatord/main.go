// Command krra-coordinatord runs the coordinator's control plane: the
// Admin HTTP API and the binary wire transport listener, backed by the
// in-memory registry/membership/router/proof components and the durable
// snapshot and audit-log collaborators.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arkeep-io/krra/internal/api"
	"github.com/arkeep-io/krra/internal/audit"
	"github.com/arkeep-io/krra/internal/coordinator"
	"github.com/arkeep-io/krra/internal/retention"
	"github.com/arkeep-io/krra/internal/snapshot"
	"github.com/arkeep-io/krra/internal/wire"
)

type config struct {
	httpAddr       string
	wireAddr       string
	logLevel       string
	snapshotDir    string
	auditDBPath    string
	jwtSecret      string
	operatorSecret string
	retentionKeep  int
	retentionCron  string
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	var cfg config

	cmd := &cobra.Command{
		Use:   "krra-coordinatord",
		Short: "Coordinator control plane daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.httpAddr, "http-addr", envOrDefault("KRRA_HTTP_ADDR", ":8080"), "Admin HTTP API listen address")
	flags.StringVar(&cfg.wireAddr, "wire-addr", envOrDefault("KRRA_WIRE_ADDR", ":9090"), "binary wire transport listen address")
	flags.StringVar(&cfg.logLevel, "log-level", envOrDefault("KRRA_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	flags.StringVar(&cfg.snapshotDir, "snapshot-dir", envOrDefault("KRRA_SNAPSHOT_DIR", "snapshots"), "snapshot storage directory")
	flags.StringVar(&cfg.auditDBPath, "audit-db", envOrDefault("KRRA_AUDIT_DB", "krra-audit.db"), "audit log sqlite database path")
	flags.StringVar(&cfg.jwtSecret, "jwt-secret", envOrDefault("KRRA_JWT_SECRET", ""), "HMAC secret for operator session tokens (required)")
	flags.StringVar(&cfg.operatorSecret, "operator-passphrase", envOrDefault("KRRA_OPERATOR_PASSPHRASE", ""), "shared passphrase for POST /api/auth/login (required)")
	flags.IntVar(&cfg.retentionKeep, "retention-keep", 10, "number of snapshots to retain per component")
	flags.StringVar(&cfg.retentionCron, "retention-cron", envOrDefault("KRRA_RETENTION_CRON", "0 3 * * *"), "cron schedule for snapshot pruning")

	return cmd
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config
	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}
	return cfg.Build()
}

func run(ctx context.Context, cfg config) error {
	logger, err := buildLogger(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	if cfg.jwtSecret == "" || cfg.operatorSecret == "" {
		return fmt.Errorf("--jwt-secret and --operator-passphrase (or KRRA_JWT_SECRET / KRRA_OPERATOR_PASSPHRASE) are required")
	}

	snapshots, err := snapshot.Open(cfg.snapshotDir)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}

	auditLog, err := audit.Open(cfg.auditDBPath, logger)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}

	coord := coordinator.New(coordinator.Config{
		Audit:     auditLog,
		AuditLog:  auditLog,
		Snapshots: snapshots,
		Logger:    logger,
	})
	if err := coord.Start(ctx); err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}
	defer coord.Stop()

	retentionSched, err := retention.New(snapshots, cfg.retentionKeep, logger)
	if err != nil {
		return fmt.Errorf("build retention scheduler: %w", err)
	}
	if err := retentionSched.Start(ctx, cfg.retentionCron, func() []string {
		ids, _ := snapshots.ComponentIDs()
		return ids
	}); err != nil {
		return fmt.Errorf("start retention scheduler: %w", err)
	}
	defer retentionSched.Stop()

	tokens := api.NewTokenIssuer(cfg.jwtSecret, cfg.operatorSecret)
	httpSrv := &http.Server{
		Addr: cfg.httpAddr,
		Handler: api.NewRouter(api.RouterConfig{
			Coordinator: coord,
			TokenIssuer: tokens,
			Logger:      logger,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	wireSrv := wire.NewServer(coord, logger)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("admin HTTP API listening", zap.String("addr", cfg.httpAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		logger.Info("wire transport listening", zap.String("addr", cfg.wireAddr))
		if err := wireSrv.ListenAndServe(ctx, cfg.wireAddr); err != nil {
			errCh <- fmt.Errorf("wire server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}

	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
