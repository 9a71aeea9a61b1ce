package scanner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"arbscope/internal/amm"
	"arbscope/internal/metrics"
	"arbscope/internal/model"
	"arbscope/internal/optimize"
)

// ErrPairPanic wraps a panic recovered while evaluating a pair.
var ErrPairPanic = errors.New("pair evaluation panicked")

// Minimizer is the global search used per pair.
type Minimizer interface {
	Minimize(ctx context.Context, obj optimize.Objective, seed uint64) (optimize.Result, error)
}

// Pair is one ordered (source, target) combination of a snapshot.
type Pair struct {
	Index  int
	Source model.PoolState
	Target model.PoolState
}

// OrderedPairs lists every (i, h) with i != h in row-major order: N*(N-1) pairs.
func OrderedPairs(pools []model.PoolState) []Pair {
	if len(pools) < 2 {
		return nil
	}
	pairs := make([]Pair, 0, len(pools)*(len(pools)-1))
	for i, src := range pools {
		for h, dst := range pools {
			if i == h {
				continue
			}
			pairs = append(pairs, Pair{Index: len(pairs), Source: src, Target: dst})
		}
	}
	return pairs
}

// Scanner evaluates every ordered pool pair of a snapshot.
type Scanner struct {
	cfg       Config
	minimizer Minimizer
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewScanner builds a Scanner and its optimizer.
func NewScanner(cfg Config, m *metrics.Metrics, logger *zap.Logger) (*Scanner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Method == "" {
		cfg.Method = MethodOptimizer
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	de, err := optimize.New(cfg.Optimizer)
	if err != nil {
		return nil, fmt.Errorf("build optimizer: %w", err)
	}
	return &Scanner{
		cfg:       cfg,
		minimizer: de,
		metrics:   m,
		logger:    logger,
	}, nil
}

// Scan returns one PairResult per ordered pair, in OrderedPairs order. Pair
// failures are reported in the result and never abort the scan. If ctx is
// cancelled, pairs not yet started carry the context error.
func (s *Scanner) Scan(ctx context.Context, snap model.Snapshot) ([]model.PairResult, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	baseSeed := s.cfg.Seed
	if baseSeed == 0 {
		baseSeed = rand.Uint64()
	}

	pairs := OrderedPairs(snap.Pools)
	results := make([]model.PairResult, len(pairs))

	s.logger.Info("scan start",
		zap.Int("pools", len(snap.Pools)),
		zap.Int("pairs", len(pairs)),
		zap.String("method", string(s.cfg.Method)),
		zap.Uint64("seed", baseSeed),
		zap.Int("workers", s.cfg.Workers),
	)

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Workers)
	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			results[pair.Index] = model.PairResult{Source: pair.Source.ID(), Target: pair.Target.ID(), Err: err}
			continue
		}
		g.Go(func() error {
			results[pair.Index] = s.runPair(ctx, pair, PairSeed(baseSeed, pair.Index))
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func (s *Scanner) runPair(ctx context.Context, pair Pair, seed uint64) model.PairResult {
	start := time.Now()
	pairCtx := ctx
	if s.cfg.PairTimeout > 0 {
		var cancel context.CancelFunc
		pairCtx, cancel = context.WithTimeout(ctx, s.cfg.PairTimeout)
		defer cancel()
	}

	candidate, err := s.EvaluatePair(pairCtx, pair.Source, pair.Target, seed)
	result := model.PairResult{
		Source:    pair.Source.ID(),
		Target:    pair.Target.ID(),
		Candidate: candidate,
		Err:       err,
		Duration:  time.Since(start),
	}

	if err != nil {
		s.logger.Warn("pair evaluation failed",
			zap.String("source", result.Source),
			zap.String("target", result.Target),
			zap.Uint64("seed", seed),
			zap.Error(err),
		)
		s.metrics.ObservePair(string(s.cfg.Method), "error", result.Duration)
		return result
	}

	s.logger.Debug("pair evaluated",
		zap.String("source", result.Source),
		zap.String("target", result.Target),
		zap.Float64("amount_in", candidate.AmountIn),
		zap.Float64("net_profit", candidate.NetProfit),
		zap.Int("generations", candidate.Generations),
		zap.Bool("converged", candidate.Converged),
		zap.Duration("duration", result.Duration),
	)
	s.metrics.ObservePair(string(s.cfg.Method), "ok", result.Duration)
	return result
}

// EvaluatePair finds the best trade size for one ordered pair.
func (s *Scanner) EvaluatePair(ctx context.Context, src, dst model.PoolState, seed uint64) (candidate *model.TradeCandidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			candidate = nil
			err = fmt.Errorf("%w: %v", ErrPairPanic, r)
		}
	}()

	rt := amm.NewRoundTrip(src, dst, s.cfg.Fee)
	switch s.cfg.Method {
	case MethodAnalytic:
		return s.analytic(rt, src, dst), nil
	case MethodHybrid:
		return s.hybrid(ctx, rt, src, dst, seed), nil
	default:
		return s.search(ctx, rt, src, dst, seed)
	}
}

func (s *Scanner) search(ctx context.Context, rt amm.RoundTrip, src, dst model.PoolState, seed uint64) (*model.TradeCandidate, error) {
	res, err := s.minimizer.Minimize(ctx, rt.Loss, seed)
	if err != nil {
		return nil, fmt.Errorf("optimize %s -> %s: %w", src.ID(), dst.ID(), err)
	}
	if math.IsNaN(res.X) || res.X < 0 {
		return nil, fmt.Errorf("optimize %s -> %s: invalid solution %v", src.ID(), dst.ID(), res.X)
	}
	return &model.TradeCandidate{
		Source:      src.ID(),
		Target:      dst.ID(),
		AmountIn:    res.X,
		NetProfit:   negate(res.F),
		Method:      string(MethodOptimizer),
		Generations: res.Generations,
		Evaluations: res.Evaluations,
		Converged:   res.Converged,
	}, nil
}

func (s *Scanner) analytic(rt amm.RoundTrip, src, dst model.PoolState) *model.TradeCandidate {
	amount, profit := rt.OptimalAmountIn()
	if upper := s.cfg.Optimizer.Upper; upper > 0 && amount > upper {
		amount, profit = upper, rt.Profit(upper)
	}
	return &model.TradeCandidate{
		Source:    src.ID(),
		Target:    dst.ID(),
		AmountIn:  amount,
		NetProfit: profit,
		Method:    string(MethodAnalytic),
		Converged: true,
	}
}

// hybrid trusts the closed form and keeps the optimizer as a cross-check;
// whichever finds the larger profit wins.
func (s *Scanner) hybrid(ctx context.Context, rt amm.RoundTrip, src, dst model.PoolState, seed uint64) *model.TradeCandidate {
	closed := s.analytic(rt, src, dst)
	closed.Method = string(MethodHybrid)

	searched, err := s.search(ctx, rt, src, dst, seed)
	if err != nil {
		s.logger.Warn("cross-check optimizer failed", zap.String("source", src.ID()), zap.String("target", dst.ID()), zap.Error(err))
		return closed
	}
	closed.Generations = searched.Generations
	closed.Evaluations = searched.Evaluations

	gap := math.Abs(searched.NetProfit - closed.NetProfit)
	if gap > s.cfg.CrossCheckTolerance*math.Max(math.Abs(closed.NetProfit), 1) {
		s.logger.Warn("optimizer disagrees with closed form",
			zap.String("source", src.ID()),
			zap.String("target", dst.ID()),
			zap.Float64("closed_amount_in", closed.AmountIn),
			zap.Float64("closed_profit", closed.NetProfit),
			zap.Float64("optimizer_amount_in", searched.AmountIn),
			zap.Float64("optimizer_profit", searched.NetProfit),
		)
	}
	if searched.NetProfit > closed.NetProfit {
		closed.AmountIn = searched.AmountIn
		closed.NetProfit = searched.NetProfit
		closed.Converged = searched.Converged
	}
	return closed
}

// PairSeed derives an independent seed for the pair at index from the base
// seed (SplitMix64), so a pair's result does not depend on scheduling.
func PairSeed(base uint64, index int) uint64 {
	z := base + uint64(index+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func negate(loss float64) float64 {
	if loss == 0 {
		return 0
	}
	return -loss
}
