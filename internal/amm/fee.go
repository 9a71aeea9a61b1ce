package amm

import (
	"fmt"
	"math"
)

// basisPoints is 100% expressed in basis points.
const basisPoints = 10000

// Fee is the per-swap fee charged on the input of each leg.
type Fee struct {
	rate float64
	bps  uint32
}

// DefaultFee is the 0.3% fee of Uniswap V2 and most of its forks.
var DefaultFee = Fee{rate: 0.003, bps: 30}

// NewFee builds a Fee from a rate such as 0.003. The integer quote uses the
// rate rounded to whole basis points.
func NewFee(rate float64) (Fee, error) {
	if math.IsNaN(rate) || rate < 0 || rate >= 1 {
		return Fee{}, fmt.Errorf("%w: fee rate %v", ErrInvalidFee, rate)
	}
	return Fee{rate: rate, bps: uint32(math.Round(rate * basisPoints))}, nil
}

// Rate returns the fee as a fraction.
func (f Fee) Rate() float64 { return f.rate }

// Multiplier is 1 - rate, the share of the input that reaches the curve.
func (f Fee) Multiplier() float64 { return 1 - f.rate }

// Bps returns the fee in basis points.
func (f Fee) Bps() uint32 { return f.bps }
