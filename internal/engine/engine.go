package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"arbscope/internal/metrics"
	"arbscope/internal/model"
	"arbscope/internal/scanner"
	"arbscope/internal/validate"
)

// Engine runs one scan pass: every ordered pair is solved, then validated
// with exact quotes.
type Engine struct {
	scanner   *scanner.Scanner
	validator *validate.Validator
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// New wires an Engine.
func New(s *scanner.Scanner, v *validate.Validator, m *metrics.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{scanner: s, validator: v, metrics: m, logger: logger}
}

// Run scans snap and returns the full report. Individual pair failures are
// part of the report; an error is returned only when the pass as a whole
// cannot proceed.
func (e *Engine) Run(ctx context.Context, snap model.Snapshot) (model.ScanReport, error) {
	report := model.ScanReport{
		ScanID:      uuid.NewString(),
		ChainID:     snap.ChainID,
		PoolCount:   len(snap.Pools),
		TokenIn:     snap.TokenIn,
		TokenOut:    snap.TokenOut,
		BlockNumber: snap.BlockNumber,
		StartedAt:   time.Now().UTC(),
	}
	logger := e.logger.With(zap.String("scan_id", report.ScanID))

	if err := snap.Validate(); err != nil {
		return report, fmt.Errorf("invalid snapshot: %w", err)
	}

	pairs, err := e.scanner.Scan(ctx, snap)
	if err != nil {
		return report, fmt.Errorf("scan: %w", err)
	}
	report.Pairs = pairs

	opps, rejections, err := e.validator.ValidateAll(report.ScanID, snap, pairs)
	if err != nil {
		return report, fmt.Errorf("validate: %w", err)
	}
	report.Opportunities = opps
	report.Rejections = rejections
	report.Duration = time.Since(report.StartedAt)
	e.metrics.ObserveScan(len(snap.Pools), report.Duration)

	logger.Info("scan complete",
		zap.Int("pools", len(snap.Pools)),
		zap.Int("pairs", len(pairs)),
		zap.Int("failed", len(report.Failed())),
		zap.Int("opportunities", len(opps)),
		zap.Int("rejected", len(rejections)),
		zap.Duration("duration", report.Duration),
	)
	for _, opp := range opps {
		e.logOpportunity(logger, snap.TokenIn, opp)
	}
	return report, ctx.Err()
}

func (e *Engine) logOpportunity(logger *zap.Logger, token model.TokenMeta, opp model.Opportunity) {
	best := opp.Best()
	fields := []zap.Field{
		zap.String("source", opp.Source),
		zap.String("target", opp.Target),
		zap.String("amount_in", model.FormatTokenAmount(best.AmountIn, token.Decimals)),
		zap.String("amount_out", model.FormatTokenAmount(best.AmountOut, token.Decimals)),
		zap.String("profit", model.FormatTokenAmount(best.Profit, token.Decimals)),
		zap.String("token", token.Symbol),
		zap.Float64("estimated_profit", opp.Estimate.NetProfit),
	}
	if len(opp.Warnings) > 0 {
		warnings := make([]string, 0, len(opp.Warnings))
		for _, w := range opp.Warnings {
			warnings = append(warnings, string(w))
		}
		fields = append(fields, zap.Strings("warnings", warnings))
	}
	logger.Info("arbitrage opportunity", fields...)
}
