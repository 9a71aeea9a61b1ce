package optimize

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
)

// Objective is a scalar function to minimize.
type Objective func(x float64) float64

// Result is the best point a run found.
type Result struct {
	X           float64
	F           float64
	Generations int
	Evaluations int
	Converged   bool
}

// DifferentialEvolution is a derivative-free global minimizer over a bounded
// interval (DE/rand/1 with dithered weight). It holds no state between runs and
// is safe for concurrent use.
type DifferentialEvolution struct {
	cfg   Config
	space searchSpace
}

// New validates cfg and builds the optimizer.
func New(cfg Config) (*DifferentialEvolution, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &DifferentialEvolution{cfg: cfg, space: newSearchSpace(cfg)}, nil
}

// Config returns the settings the optimizer was built with.
func (d *DifferentialEvolution) Config() Config {
	return d.cfg
}

// Minimize searches for the minimum of obj. Runs with the same seed and
// objective return the same result. The context is checked between generations;
// when it is done the best point so far is returned together with the error.
func (d *DifferentialEvolution) Minimize(ctx context.Context, obj Objective, seed uint64) (Result, error) {
	if obj == nil {
		return Result{}, fmt.Errorf("%w: nil objective", ErrInvalidConfig)
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	np := d.cfg.Population
	space := d.space

	var evaluations int
	eval := func(u float64) float64 {
		evaluations++
		v := obj(space.toDomain(u))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return math.Inf(1)
		}
		return v
	}

	pop := make([]float64, np)
	cost := make([]float64, np)
	for i := range pop {
		switch {
		case i == 0:
			pop[i] = space.lo
		case i == 1 && d.cfg.HasX0 && space.contains(space.fromDomain(d.cfg.X0)):
			pop[i] = space.fromDomain(d.cfg.X0)
		case i == np-1:
			pop[i] = space.hi
		default:
			pop[i] = space.lo + rng.Float64()*(space.hi-space.lo)
		}
		cost[i] = eval(pop[i])
	}

	best := argmin(cost)
	res := Result{X: space.toDomain(pop[best]), F: cost[best]}
	stall := 0

	for gen := 1; gen <= d.cfg.MaxGenerations; gen++ {
		if err := ctx.Err(); err != nil {
			res.X = space.toDomain(pop[best])
			res.F = cost[best]
			res.Evaluations = evaluations
			return res, fmt.Errorf("optimizer stopped after %d generations: %w", res.Generations, err)
		}

		prevBest := cost[best]
		for i := 0; i < np; i++ {
			r1, r2, r3 := pickDistinct(rng, np, i)
			weight := d.cfg.WeightMin + rng.Float64()*(d.cfg.WeightMax-d.cfg.WeightMin)
			// In one dimension binomial crossover always keeps the mutant.
			trial := pop[r1] + weight*(pop[r2]-pop[r3])
			if !space.contains(trial) {
				trial = d.repair(rng, trial, pop[r1])
			}
			trialCost := eval(trial)
			if trialCost <= cost[i] {
				pop[i] = trial
				cost[i] = trialCost
				if trialCost < cost[best] {
					best = i
				}
			}
		}
		res.Generations = gen

		if improvedBy(prevBest, cost[best]) <= d.cfg.Tolerance {
			stall++
		} else {
			stall = 0
		}
		if stall >= d.cfg.StallGenerations || collapsed(cost, d.cfg.Tolerance) {
			res.Converged = true
			break
		}
	}

	res.X = space.toDomain(pop[best])
	res.F = cost[best]
	res.Evaluations = evaluations
	if math.IsInf(res.F, 1) {
		return res, ErrNoFiniteValue
	}
	return res, nil
}

// repair pulls an out-of-bounds trial back between its base vector and the
// violated bound, keeping the population inside the interval without piling
// it up on the edges.
func (d *DifferentialEvolution) repair(rng *rand.Rand, trial, base float64) float64 {
	space := d.space
	if trial < space.lo {
		return space.lo + rng.Float64()*(base-space.lo)
	}
	return base + rng.Float64()*(space.hi-base)
}

func pickDistinct(rng *rand.Rand, n, exclude int) (int, int, int) {
	r1 := exclude
	for r1 == exclude {
		r1 = rng.IntN(n)
	}
	r2 := exclude
	for r2 == exclude || r2 == r1 {
		r2 = rng.IntN(n)
	}
	r3 := exclude
	for r3 == exclude || r3 == r1 || r3 == r2 {
		r3 = rng.IntN(n)
	}
	return r1, r2, r3
}

func argmin(values []float64) int {
	idx := 0
	for i, v := range values {
		if v < values[idx] {
			idx = i
		}
	}
	return idx
}

// improvedBy is the relative improvement from prev to next.
func improvedBy(prev, next float64) float64 {
	if math.IsInf(prev, 1) {
		if math.IsInf(next, 1) {
			return 0
		}
		return math.Inf(1)
	}
	scale := math.Max(math.Abs(prev), math.Abs(next))
	if scale == 0 {
		return 0
	}
	return (prev - next) / scale
}

// collapsed reports whether every candidate scores the same within tol.
func collapsed(cost []float64, tol float64) bool {
	lo, hi := cost[0], cost[0]
	for _, c := range cost[1:] {
		if math.IsInf(c, 1) {
			return false
		}
		lo = math.Min(lo, c)
		hi = math.Max(hi, c)
	}
	if math.IsInf(lo, 1) {
		return false
	}
	return hi-lo <= tol*math.Max(math.Abs(lo), math.SmallestNonzeroFloat64)
}
