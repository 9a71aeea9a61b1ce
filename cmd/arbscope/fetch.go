package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"arbscope/internal/chain"
	"arbscope/internal/config"
	"arbscope/internal/model"
	"arbscope/internal/reserves"
	"arbscope/internal/storage"
)

func runFetch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFetch(cfgFile, cmd.Flags())
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
	if cfg.Out == "" {
		return fmt.Errorf("out path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap, err := fetchSnapshot(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := storage.SaveSnapshot(cfg.Out, snap); err != nil {
		return err
	}

	logger.Info("snapshot written",
		zap.String("out", cfg.Out),
		zap.Uint64("block", snap.BlockNumber),
		zap.Int("pools", len(snap.Pools)),
	)
	return nil
}

func fetchSnapshot(ctx context.Context, cfg config.FetchConfig, logger *zap.Logger) (model.Snapshot, error) {
	req, err := cfg.Request()
	if err != nil {
		return model.Snapshot{}, err
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	fetcher := reserves.NewFetcher(chainClient, cfg.Reserves(), logger)
	return fetcher.FetchSnapshot(ctx, req)
}
