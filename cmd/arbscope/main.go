package main

import (
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "arbscope",
		Short:        "Cross-pool constant-product arbitrage scanner",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan every ordered pool pair of a snapshot for round-trip arbitrage",
		RunE:  runScan,
	}

	scanCmd.Flags().String("snapshot", "", "snapshot JSON file (omit to fetch live over RPC)")
	addFetchFlags(scanCmd)
	scanCmd.Flags().Float64("fee-rate", 0.003, "per-leg swap fee as a fraction")
	scanCmd.Flags().String("min-amount-in", "1000000", "minimum trade size in raw base-token units")
	scanCmd.Flags().String("thresholds", "", "per-token minimum trade size overrides (comma-separated token=amount)")
	scanCmd.Flags().Float64("mismatch-tolerance", 0.05, "relative estimate/exact profit gap that raises a warning")
	scanCmd.Flags().Bool("require-profit", false, "reject opportunities whose exact profit is not positive")
	scanCmd.Flags().String("method", "optimizer", "solver (optimizer, analytic, hybrid)")
	scanCmd.Flags().Uint64("seed", 0, "base random seed, 0 picks one")
	scanCmd.Flags().Int("population", 40, "optimizer population size")
	scanCmd.Flags().Int("max-generations", 1000, "optimizer generation cap")
	scanCmd.Flags().Int("stall-generations", 30, "generations without improvement before convergence")
	scanCmd.Flags().Float64("tolerance", 1e-8, "relative improvement counted as a stall")
	scanCmd.Flags().Float64("upper-bound", 1e22, "largest trade size searched, in raw units")
	scanCmd.Flags().String("scale", "log", "optimizer search scale (log, linear)")
	scanCmd.Flags().Int("workers", runtime.NumCPU(), "concurrent pair evaluations")
	scanCmd.Flags().Duration("pair-timeout", 5*time.Second, "time limit per pair, 0 disables")
	scanCmd.Flags().Float64("cross-check-tolerance", 1e-4, "hybrid mode closed-form/optimizer profit tolerance")
	scanCmd.Flags().String("out", "./data/opportunities.jsonl", "output JSONL path, empty disables")
	scanCmd.Flags().String("pg-dsn", "", "Postgres DSN, empty disables")
	scanCmd.Flags().String("metrics-file", "", "write Prometheus metrics in text format to this path")
	scanCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(scanCmd)

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Read pool balances over RPC into a snapshot file",
		RunE:  runFetch,
	}

	addFetchFlags(fetchCmd)
	fetchCmd.Flags().String("out", "./data/snapshot.json", "output snapshot path")
	fetchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(fetchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "Ethereum RPC URL")
	cmd.Flags().String("token-in", "", "base token address (traded in and out)")
	cmd.Flags().String("token-out", "", "quote token address")
	cmd.Flags().StringSlice("pool", nil, "pool addresses (comma-separated)")
	cmd.Flags().Uint64("block", 0, "block to read at, 0 means latest")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts per RPC call")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Int("concurrency", 8, "concurrent pool reads")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
