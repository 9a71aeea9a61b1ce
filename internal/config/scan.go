package config

import (
	"fmt"
	"math/big"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"arbscope/internal/amm"
	"arbscope/internal/model"
	"arbscope/internal/optimize"
	"arbscope/internal/scanner"
	"arbscope/internal/validate"
)

// ScanConfig holds the settings of the scan command. A scan reads a snapshot
// file when Snapshot is set and fetches one live otherwise.
type ScanConfig struct {
	Snapshot string
	Fetch    FetchConfig

	FeeRate           float64
	MinAmountIn       string
	Thresholds        map[string]string
	MismatchTolerance float64
	RequireProfit     bool

	Method           string
	Seed             uint64
	Population       int
	MaxGenerations   int
	StallGenerations int
	Tolerance        float64
	UpperBound       float64
	Scale            string
	Workers          int
	PairTimeout      time.Duration
	CrossCheckTol    float64

	Out         string
	PGDSN       string
	MetricsFile string
	LogLevel    string
}

// LoadScan merges config file, environment variables, and flags into ScanConfig.
func LoadScan(cfgFile string, flags *pflag.FlagSet) (ScanConfig, error) {
	defaultOpt := optimize.DefaultConfig()
	v, err := load(cfgFile, flags, map[string]any{
		"fee-rate":              amm.DefaultFee.Rate(),
		"min-amount-in":         "1000000",
		"mismatch-tolerance":    0.05,
		"method":                string(scanner.MethodOptimizer),
		"population":            defaultOpt.Population,
		"max-generations":       defaultOpt.MaxGenerations,
		"stall-generations":     defaultOpt.StallGenerations,
		"tolerance":             defaultOpt.Tolerance,
		"upper-bound":           defaultOpt.Upper,
		"scale":                 defaultOpt.Scale.String(),
		"workers":               runtime.NumCPU(),
		"pair-timeout":          5 * time.Second,
		"cross-check-tolerance": 1e-4,
		"out":                   "./data/opportunities.jsonl",
		"max-retries":           5,
		"retry-backoff":         500 * time.Millisecond,
		"concurrency":           8,
		"log-level":             "info",
	})
	if err != nil {
		return ScanConfig{}, err
	}

	return ScanConfig{
		Snapshot: v.GetString("snapshot"),
		Fetch: FetchConfig{
			RPCURL:       v.GetString("rpc"),
			TokenIn:      v.GetString("token-in"),
			TokenOut:     v.GetString("token-out"),
			Pools:        getStringSlice(v, "pool"),
			Block:        v.GetUint64("block"),
			MaxRetries:   v.GetInt("max-retries"),
			RetryBackoff: v.GetDuration("retry-backoff"),
			Concurrency:  v.GetInt("concurrency"),
		},
		FeeRate:           v.GetFloat64("fee-rate"),
		MinAmountIn:       v.GetString("min-amount-in"),
		Thresholds:        getStringMap(v, "thresholds"),
		MismatchTolerance: v.GetFloat64("mismatch-tolerance"),
		RequireProfit:     v.GetBool("require-profit"),
		Method:            v.GetString("method"),
		Seed:              v.GetUint64("seed"),
		Population:        v.GetInt("population"),
		MaxGenerations:    v.GetInt("max-generations"),
		StallGenerations:  v.GetInt("stall-generations"),
		Tolerance:         v.GetFloat64("tolerance"),
		UpperBound:        v.GetFloat64("upper-bound"),
		Scale:             v.GetString("scale"),
		Workers:           v.GetInt("workers"),
		PairTimeout:       v.GetDuration("pair-timeout"),
		CrossCheckTol:     v.GetFloat64("cross-check-tolerance"),
		Out:               v.GetString("out"),
		PGDSN:             v.GetString("pg-dsn"),
		MetricsFile:       v.GetString("metrics-file"),
		LogLevel:          v.GetString("log-level"),
	}, nil
}

// Validate checks that the scan has a snapshot source.
func (c ScanConfig) Validate() error {
	if c.Snapshot != "" {
		return nil
	}
	if err := c.Fetch.Validate(); err != nil {
		return fmt.Errorf("snapshot or a live fetch is required: %w", err)
	}
	return nil
}

// Scanner builds the pair scanner settings.
func (c ScanConfig) Scanner() (scanner.Config, error) {
	fee, err := amm.NewFee(c.FeeRate)
	if err != nil {
		return scanner.Config{}, fmt.Errorf("fee-rate: %w", err)
	}
	method, err := scanner.ParseMethod(c.Method)
	if err != nil {
		return scanner.Config{}, fmt.Errorf("method: %w", err)
	}
	scale, err := optimize.ParseScale(strings.ToLower(c.Scale))
	if err != nil {
		return scanner.Config{}, fmt.Errorf("scale: %w", err)
	}

	cfg := scanner.DefaultConfig()
	cfg.Fee = fee
	cfg.Method = method
	cfg.Seed = c.Seed
	cfg.Workers = c.Workers
	cfg.PairTimeout = c.PairTimeout
	cfg.CrossCheckTolerance = c.CrossCheckTol
	cfg.Optimizer.Upper = c.UpperBound
	cfg.Optimizer.Scale = scale
	cfg.Optimizer.Population = c.Population
	cfg.Optimizer.MaxGenerations = c.MaxGenerations
	cfg.Optimizer.StallGenerations = c.StallGenerations
	cfg.Optimizer.Tolerance = c.Tolerance
	return cfg, nil
}

// Validator builds the acceptance rules.
func (c ScanConfig) Validator() (validate.Config, error) {
	fee, err := amm.NewFee(c.FeeRate)
	if err != nil {
		return validate.Config{}, fmt.Errorf("fee-rate: %w", err)
	}
	minAmount, err := model.ParseAmount(c.MinAmountIn)
	if err != nil {
		return validate.Config{}, fmt.Errorf("min-amount-in: %w", err)
	}
	thresholds := make(map[string]*big.Int, len(c.Thresholds))
	for token, raw := range c.Thresholds {
		amount, err := model.ParseAmount(raw)
		if err != nil {
			return validate.Config{}, fmt.Errorf("thresholds[%s]: %w", token, err)
		}
		thresholds[token] = amount
	}

	cfg := validate.DefaultConfig()
	cfg.Fee = fee
	cfg.MinAmountIn = minAmount
	cfg.Thresholds = thresholds
	cfg.MismatchTolerance = c.MismatchTolerance
	cfg.RequireProfit = c.RequireProfit
	return cfg, nil
}
