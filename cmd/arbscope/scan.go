package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"arbscope/internal/config"
	"arbscope/internal/engine"
	"arbscope/internal/metrics"
	"arbscope/internal/model"
	"arbscope/internal/scanner"
	"arbscope/internal/storage"
	"arbscope/internal/storage/postgres"
	"arbscope/internal/validate"
)

func runScan(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadScan(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}
	scanCfg, err := cfg.Scanner()
	if err != nil {
		return err
	}
	validateCfg, err := cfg.Validator()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap, err := loadSnapshot(ctx, cfg, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	s, err := scanner.NewScanner(scanCfg, m, logger)
	if err != nil {
		return err
	}
	eng := engine.New(s, validate.NewValidator(validateCfg, m, logger), m, logger)

	var sinks storage.Multi
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store)
	}

	logger.Info("scan start",
		zap.String("snapshot", cfg.Snapshot),
		zap.Uint64("block", snap.BlockNumber),
		zap.Int("pools", len(snap.Pools)),
		zap.String("method", string(scanCfg.Method)),
		zap.Float64("fee_rate", scanCfg.Fee.Rate()),
		zap.String("min_amount_in", validateCfg.MinAmountIn.String()),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	report, runErr := eng.Run(ctx, snap)
	if report.Pairs != nil {
		if err := sinks.PutReport(ctx, report); err != nil {
			return fmt.Errorf("store report: %w", err)
		}
	}
	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, registry); err != nil {
			logger.Warn("write metrics file failed", zap.String("path", cfg.MetricsFile), zap.Error(err))
		}
	}
	return runErr
}

func loadSnapshot(ctx context.Context, cfg config.ScanConfig, logger *zap.Logger) (model.Snapshot, error) {
	if cfg.Snapshot != "" {
		return storage.LoadSnapshot(cfg.Snapshot)
	}
	return fetchSnapshot(ctx, cfg.Fetch, logger)
}

// redactDSN hides the password of a URL-style DSN.
func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	parsed, err := url.Parse(dsn)
	if err != nil || parsed.User == nil {
		return "***"
	}
	if _, ok := parsed.User.Password(); ok {
		parsed.User = url.UserPassword(parsed.User.Username(), "***")
	}
	return parsed.String()
}
