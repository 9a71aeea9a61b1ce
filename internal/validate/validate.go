package validate

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"

	"go.uber.org/zap"

	"arbscope/internal/amm"
	"arbscope/internal/metrics"
	"arbscope/internal/model"
)

// ProbeFactors are the trade sizes, relative to the solution, quoted exactly.
var ProbeFactors = [3]float64{0.99, 1, 1.01}

// ErrUnknownPool is returned when a candidate names a pool missing from the snapshot.
var ErrUnknownPool = errors.New("unknown pool")

// Config holds the acceptance rules.
type Config struct {
	Fee amm.Fee
	// MinAmountIn is the default threshold in raw base-token units.
	MinAmountIn *big.Int
	// Thresholds overrides MinAmountIn per token, keyed by lower-case address or symbol.
	Thresholds map[string]*big.Int
	// MismatchTolerance is the relative gap between estimated and exact
	// profit above which a quantization warning is raised.
	MismatchTolerance float64
	// RequireProfit rejects candidates whose exact profit is not positive.
	RequireProfit bool
}

// DefaultConfig returns the validator defaults.
func DefaultConfig() Config {
	return Config{
		Fee:               amm.DefaultFee,
		MinAmountIn:       big.NewInt(1_000_000),
		MismatchTolerance: 0.05,
	}
}

// Validator turns optimizer candidates into exact, integer-quoted opportunities.
type Validator struct {
	cfg     Config
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewValidator(cfg Config, m *metrics.Metrics, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinAmountIn == nil {
		cfg.MinAmountIn = new(big.Int)
	}
	thresholds := make(map[string]*big.Int, len(cfg.Thresholds))
	for key, value := range cfg.Thresholds {
		if value != nil {
			thresholds[strings.ToLower(strings.TrimSpace(key))] = value
		}
	}
	cfg.Thresholds = thresholds
	return &Validator{cfg: cfg, metrics: m, logger: logger}
}

// Threshold resolves the minimum trade size for token: address override,
// then symbol override, then the default.
func (v *Validator) Threshold(token model.TokenMeta) *big.Int {
	if value, ok := v.cfg.Thresholds[strings.ToLower(token.Address)]; ok && token.Address != "" {
		return value
	}
	if value, ok := v.cfg.Thresholds[strings.ToLower(token.Symbol)]; ok && token.Symbol != "" {
		return value
	}
	return v.cfg.MinAmountIn
}

// Validate checks one candidate. Exactly one of the returned opportunity and
// rejection is non-nil when err is nil.
func (v *Validator) Validate(scanID string, snap model.Snapshot, cand model.TradeCandidate) (*model.Opportunity, *model.Rejection, error) {
	src, ok := snap.Pool(cand.Source)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownPool, cand.Source)
	}
	dst, ok := snap.Pool(cand.Target)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownPool, cand.Target)
	}
	if math.IsNaN(cand.AmountIn) || math.IsInf(cand.AmountIn, 0) || cand.AmountIn < 0 {
		return nil, nil, fmt.Errorf("%w: %v", amm.ErrInvalidAmount, cand.AmountIn)
	}

	amount := floorAmount(cand.AmountIn, 1)
	if amount.Cmp(v.Threshold(snap.TokenIn)) <= 0 {
		return nil, v.reject(cand, model.RejectBelowThreshold), nil
	}

	opp := &model.Opportunity{
		ScanID:   scanID,
		Source:   cand.Source,
		Target:   cand.Target,
		Estimate: cand,
	}
	for i, factor := range ProbeFactors {
		quote, err := amm.QuoteRoundTrip(floorAmount(cand.AmountIn, factor), src, dst, v.cfg.Fee)
		if err != nil {
			return nil, nil, fmt.Errorf("quote %s -> %s at %.2fx: %w", cand.Source, cand.Target, factor, err)
		}
		opp.Probes[i] = model.Probe{
			Factor:    factor,
			AmountIn:  quote.AmountIn,
			AmountOut: quote.AmountOut,
			Profit:    quote.Profit,
		}
	}

	if v.cfg.RequireProfit && !opp.Profitable() {
		return nil, v.reject(cand, model.RejectNotProfitable), nil
	}

	if v.quantizationMismatch(cand.NetProfit, opp.Best().Profit) {
		opp.Warnings = append(opp.Warnings, model.WarningQuantizationMismatch)
	}
	if notConcave(opp.Probes) {
		opp.Warnings = append(opp.Warnings, model.WarningProbeNotConcave)
	}
	for _, w := range opp.Warnings {
		v.metrics.ObserveWarning(string(w))
	}
	v.metrics.ObserveCandidate("accepted")
	return opp, nil, nil
}

// ValidateAll validates every successful pair and ranks accepted
// opportunities by exact profit at the solution, highest first.
func (v *Validator) ValidateAll(scanID string, snap model.Snapshot, pairs []model.PairResult) ([]model.Opportunity, []model.Rejection, error) {
	var (
		accepted []model.Opportunity
		rejected []model.Rejection
	)
	for _, pair := range pairs {
		if !pair.OK() {
			continue
		}
		opp, rej, err := v.Validate(scanID, snap, *pair.Candidate)
		if err != nil {
			return nil, nil, err
		}
		if rej != nil {
			rejected = append(rejected, *rej)
			continue
		}
		accepted = append(accepted, *opp)
	}
	Rank(accepted)
	return accepted, rejected, nil
}

// Rank orders opportunities by exact 1x profit descending, then by route.
func Rank(opps []model.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		if c := opps[i].Best().Profit.Cmp(opps[j].Best().Profit); c != 0 {
			return c > 0
		}
		if opps[i].Source != opps[j].Source {
			return opps[i].Source < opps[j].Source
		}
		return opps[i].Target < opps[j].Target
	})
}

func (v *Validator) reject(cand model.TradeCandidate, reason string) *model.Rejection {
	v.logger.Debug("no arbitrage",
		zap.String("source", cand.Source),
		zap.String("target", cand.Target),
		zap.Float64("amount_in", cand.AmountIn),
		zap.String("reason", reason),
	)
	v.metrics.ObserveCandidate(reason)
	return &model.Rejection{
		Source:   cand.Source,
		Target:   cand.Target,
		AmountIn: cand.AmountIn,
		Reason:   reason,
	}
}

func (v *Validator) quantizationMismatch(estimate float64, exact *big.Int) bool {
	if estimate > 0 && exact.Sign() <= 0 {
		return true
	}
	exactF, _ := new(big.Float).SetInt(exact).Float64()
	gap := math.Abs(estimate - exactF)
	return gap > v.cfg.MismatchTolerance*math.Max(math.Abs(estimate), 1)
}

func notConcave(probes [3]model.Probe) bool {
	mid := probes[1].Profit
	return mid.Cmp(probes[0].Profit) < 0 && mid.Cmp(probes[2].Profit) < 0
}

// floorAmount is floor(amount*factor) computed without float64 rounding of
// the product into the integer domain.
func floorAmount(amount, factor float64) *big.Int {
	product := new(big.Float).SetPrec(256).SetFloat64(amount)
	if factor != 1 {
		product.Mul(product, new(big.Float).SetPrec(256).SetFloat64(factor))
	}
	out, _ := product.Int(nil)
	return out
}
