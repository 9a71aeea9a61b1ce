package scanner

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"arbscope/internal/amm"
	"arbscope/internal/optimize"
)

// Method selects how a pair's optimal trade size is found.
type Method string

const (
	// MethodOptimizer runs differential evolution on the round-trip loss.
	MethodOptimizer Method = "optimizer"
	// MethodAnalytic uses the closed-form stationary point.
	MethodAnalytic Method = "analytic"
	// MethodHybrid uses the closed form and cross-checks it with the optimizer.
	MethodHybrid Method = "hybrid"
)

// ParseMethod validates a method name.
func ParseMethod(value string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(value))) {
	case MethodOptimizer, "":
		return MethodOptimizer, nil
	case MethodAnalytic:
		return MethodAnalytic, nil
	case MethodHybrid:
		return MethodHybrid, nil
	default:
		return "", fmt.Errorf("unknown method: %s", value)
	}
}

// Config holds the settings of a scan pass.
type Config struct {
	Fee       amm.Fee
	Method    Method
	Optimizer optimize.Config
	// Seed is the base seed pair seeds are derived from; 0 draws a random one.
	Seed uint64
	// Workers bounds concurrent pair evaluations.
	Workers int
	// PairTimeout caps a single pair; 0 disables the cap.
	PairTimeout time.Duration
	// CrossCheckTolerance is the relative profit gap tolerated between the
	// closed form and the optimizer in hybrid mode.
	CrossCheckTolerance float64
}

// DefaultConfig returns the scan defaults.
func DefaultConfig() Config {
	return Config{
		Fee:                 amm.DefaultFee,
		Method:              MethodOptimizer,
		Optimizer:           optimize.DefaultConfig(),
		Workers:             runtime.NumCPU(),
		PairTimeout:         5 * time.Second,
		CrossCheckTolerance: 1e-4,
	}
}
