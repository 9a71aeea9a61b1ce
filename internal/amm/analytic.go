package amm

import "math"

// OptimalAmountIn solves the round trip in closed form. Composing both legs gives
//
//	c(a) = A*a / (B + C*a),  A = f^2*y*m,  B = x*n,  C = f*n + f^2*y
//
// which is concave on a >= 0, so profit c(a) - a peaks where c'(a) = 1:
//
//	a* = (sqrt(A*B) - B) / C
//
// a* is positive only when A > B; otherwise no trade is profitable and (0, 0)
// is returned.
func (r RoundTrip) OptimalAmountIn() (amountIn, profit float64) {
	if r.Degenerate() {
		return 0, 0
	}
	f := r.f
	// Factor x*n out of A and B to keep the square root in range for 1e27-sized reserves.
	ratio := (f * f * r.y * r.m) / (r.x * r.n)
	if !(ratio > 1) || math.IsInf(ratio, 0) {
		return 0, 0
	}
	b := r.x * r.n
	c := f*r.n + f*f*r.y
	amountIn = b * (math.Sqrt(ratio) - 1) / c
	if !(amountIn > 0) || math.IsInf(amountIn, 0) {
		return 0, 0
	}
	return amountIn, r.Profit(amountIn)
}
