package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"arbscope/internal/reserves"
)

// FetchConfig holds the settings of the fetch command.
type FetchConfig struct {
	RPCURL       string
	TokenIn      string
	TokenOut     string
	Pools        []string
	Block        uint64
	Out          string
	MaxRetries   int
	RetryBackoff time.Duration
	Concurrency  int
	LogLevel     string
}

// LoadFetch merges config file, environment variables, and flags into FetchConfig.
func LoadFetch(cfgFile string, flags *pflag.FlagSet) (FetchConfig, error) {
	v, err := load(cfgFile, flags, map[string]any{
		"out":           "./data/snapshot.json",
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"concurrency":   8,
		"log-level":     "info",
	})
	if err != nil {
		return FetchConfig{}, err
	}

	return FetchConfig{
		RPCURL:       v.GetString("rpc"),
		TokenIn:      v.GetString("token-in"),
		TokenOut:     v.GetString("token-out"),
		Pools:        getStringSlice(v, "pool"),
		Block:        v.GetUint64("block"),
		Out:          v.GetString("out"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		Concurrency:  v.GetInt("concurrency"),
		LogLevel:     v.GetString("log-level"),
	}, nil
}

// Validate checks that a live fetch is fully specified.
func (c FetchConfig) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc is required")
	}
	if c.TokenIn == "" || c.TokenOut == "" {
		return fmt.Errorf("token-in and token-out are required")
	}
	if len(c.Pools) < 2 {
		return fmt.Errorf("at least two pools are required, got %d", len(c.Pools))
	}
	return nil
}

// Request parses the addresses into a fetch request.
func (c FetchConfig) Request() (reserves.Request, error) {
	tokenIn, err := reserves.ParseAddress(c.TokenIn)
	if err != nil {
		return reserves.Request{}, fmt.Errorf("token-in: %w", err)
	}
	tokenOut, err := reserves.ParseAddress(c.TokenOut)
	if err != nil {
		return reserves.Request{}, fmt.Errorf("token-out: %w", err)
	}
	pools, err := reserves.ParseAddresses(c.Pools)
	if err != nil {
		return reserves.Request{}, fmt.Errorf("pool: %w", err)
	}
	return reserves.Request{TokenIn: tokenIn, TokenOut: tokenOut, Pools: pools, Block: c.Block}, nil
}

// Reserves returns the RPC settings for the fetcher.
func (c FetchConfig) Reserves() reserves.Config {
	return reserves.Config{
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		Concurrency:  c.Concurrency,
	}
}
