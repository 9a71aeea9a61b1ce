package amm

import "arbscope/internal/model"

// LegOutput is the continuous constant-product output of selling amountIn
// into a pool holding reserveIn/reserveOut, with the fee taken from the input:
//
//	out = f*a*reserveOut / (reserveIn + f*a)
//
// An empty pool on either side quotes zero.
func LegOutput(amountIn, reserveIn, reserveOut, feeMultiplier float64) float64 {
	if amountIn <= 0 || reserveIn <= 0 || reserveOut <= 0 {
		return 0
	}
	effective := feeMultiplier * amountIn
	return effective * reserveOut / (reserveIn + effective)
}

// RoundTrip evaluates selling the base token into src and buying it back from dst.
type RoundTrip struct {
	// source leg: base in, quote out
	x, y float64
	// target leg: quote in, base out
	n, m float64
	f    float64
}

// NewRoundTrip captures the continuous view of two pools for repeated evaluation.
func NewRoundTrip(src, dst model.PoolState, fee Fee) RoundTrip {
	return RoundTrip{
		x: src.ReserveInFloat(),
		y: src.ReserveOutFloat(),
		n: dst.ReserveOutFloat(),
		m: dst.ReserveInFloat(),
		f: fee.Multiplier(),
	}
}

// Intermediate is the quote token received from the source pool.
func (r RoundTrip) Intermediate(a float64) float64 {
	return LegOutput(a, r.x, r.y, r.f)
}

// Output is the base token received back from the target pool.
func (r RoundTrip) Output(a float64) float64 {
	return LegOutput(r.Intermediate(a), r.n, r.m, r.f)
}

// Profit is Output(a) - a. Profit(0) is exactly zero.
func (r RoundTrip) Profit(a float64) float64 {
	if a <= 0 {
		return 0
	}
	return r.Output(a) - a
}

// Loss is the minimization objective, -Profit(a).
func (r RoundTrip) Loss(a float64) float64 {
	if a <= 0 {
		return 0
	}
	return a - r.Output(a)
}

// Degenerate reports whether any reserve on the route is empty, in which
// case no positive trade returns anything.
func (r RoundTrip) Degenerate() bool {
	return r.x <= 0 || r.y <= 0 || r.n <= 0 || r.m <= 0
}
