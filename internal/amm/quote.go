package amm

import (
	"fmt"
	"math/big"

	"arbscope/internal/model"
)

var basisPointDivisor = big.NewInt(basisPoints)

// GetAmountOut mirrors the on-chain Uniswap V2 library quote:
//
//	amountInWithFee = amountIn * (10000 - feeBps)
//	amountOut = amountInWithFee * reserveOut / (reserveIn * 10000 + amountInWithFee)
//
// with floor division. Empty reserves quote zero instead of reverting.
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint32) (*big.Int, error) {
	if amountIn == nil || reserveIn == nil || reserveOut == nil {
		return nil, ErrNilAmount
	}
	if amountIn.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	if feeBps >= basisPoints {
		return nil, fmt.Errorf("%w: %d bps", ErrInvalidFee, feeBps)
	}
	if amountIn.Sign() == 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return new(big.Int), nil
	}

	feeMultiplier := big.NewInt(int64(basisPoints - feeBps))
	amountInWithFee := new(big.Int).Mul(amountIn, feeMultiplier)
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, basisPointDivisor)
	denominator.Add(denominator, amountInWithFee)

	return numerator.Div(numerator, denominator), nil
}

// Quote is an exact integer round trip.
type Quote struct {
	AmountIn     *big.Int
	Intermediate *big.Int
	AmountOut    *big.Int
	Profit       *big.Int
}

// QuoteRoundTrip sells amountIn of the base token into src and sells the
// proceeds back into dst, both legs with integer semantics.
func QuoteRoundTrip(amountIn *big.Int, src, dst model.PoolState, fee Fee) (Quote, error) {
	mid, err := GetAmountOut(amountIn, src.ReserveIn(), src.ReserveOut(), fee.Bps())
	if err != nil {
		return Quote{}, fmt.Errorf("source leg %s: %w", src.ID(), err)
	}
	out, err := GetAmountOut(mid, dst.ReserveOut(), dst.ReserveIn(), fee.Bps())
	if err != nil {
		return Quote{}, fmt.Errorf("target leg %s: %w", dst.ID(), err)
	}
	return Quote{
		AmountIn:     new(big.Int).Set(amountIn),
		Intermediate: mid,
		AmountOut:    out,
		Profit:       new(big.Int).Sub(out, amountIn),
	}, nil
}
