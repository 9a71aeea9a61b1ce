package amm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbscope/internal/model"
)

func TestProfitAtZeroIsZero(t *testing.T) {
	pools := []model.PoolState{
		model.MustPoolState("a", 1000, 1000),
		model.MustPoolState("b", 1100, 1000),
		model.MustPoolState("c", 0, 1000),
		model.MustPoolState("d", 5, 0),
	}
	for _, src := range pools {
		for _, dst := range pools {
			rt := NewRoundTrip(src, dst, DefaultFee)
			assert.Equal(t, 0.0, rt.Profit(0), "%s->%s", src.ID(), dst.ID())
			assert.Equal(t, 0.0, rt.Loss(0), "%s->%s", src.ID(), dst.ID())
		}
	}
}

func TestDegeneratePoolNeverProfits(t *testing.T) {
	healthy := model.MustPoolState("healthy", 1000, 5000)
	empty := model.MustPoolState("empty", 0, 1000)
	drained := model.MustPoolState("drained", 1000, 0)

	routes := [][2]model.PoolState{
		{empty, healthy},
		{healthy, empty},
		{drained, healthy},
		{healthy, drained},
	}
	for _, route := range routes {
		rt := NewRoundTrip(route[0], route[1], DefaultFee)
		require.True(t, rt.Degenerate())
		for _, a := range []float64{1e-9, 1, 1e3, 1e12, 1e22} {
			p := rt.Profit(a)
			assert.False(t, math.IsNaN(p))
			assert.LessOrEqual(t, p, 0.0, "%s->%s a=%g", route[0].ID(), route[1].ID(), a)
			assert.GreaterOrEqual(t, rt.Loss(a), 0.0)
		}
		amount, profit := rt.OptimalAmountIn()
		assert.Zero(t, amount)
		assert.Zero(t, profit)
	}
}

func TestMatchingPricesLoseMoney(t *testing.T) {
	src := model.MustPoolState("src", 4000, 2000)
	dst := model.MustPoolState("dst", 8000, 4000)

	for _, fee := range []Fee{DefaultFee, {}} {
		rt := NewRoundTrip(src, dst, fee)
		for _, a := range []float64{0.5, 10, 400, 1e6} {
			assert.Less(t, rt.Profit(a), 0.0, "fee=%v a=%g", fee.Rate(), a)
		}
		amount, profit := rt.OptimalAmountIn()
		assert.Zero(t, amount)
		assert.Zero(t, profit)
	}
}

func TestTargetValuingBaseHigherIsArbitrage(t *testing.T) {
	// source x=1000 y=1000; target n=1000 (quote side) m=1100 (base side)
	src := model.MustPoolState("src", 1000, 1000)
	dst := model.MustPoolState("dst", 1100, 1000)

	rt := NewRoundTrip(src, dst, DefaultFee)
	amount, profit := rt.OptimalAmountIn()

	require.Greater(t, amount, 0.0)
	assert.InDelta(t, 22.93, amount, 0.01)
	assert.Greater(t, profit, 1.0)
	assert.InDelta(t, rt.Profit(amount), profit, 1e-12)

	// the stationary point beats its neighbourhood
	assert.Greater(t, profit, rt.Profit(amount*0.99))
	assert.Greater(t, profit, rt.Profit(amount*1.01))
}

func TestDirectionMatters(t *testing.T) {
	a := model.MustPoolState("a", 1000, 1000)
	b := model.MustPoolState("b", 1100, 1000)

	_, forward := NewRoundTrip(a, b, DefaultFee).OptimalAmountIn()
	_, backward := NewRoundTrip(b, a, DefaultFee).OptimalAmountIn()

	assert.Greater(t, forward, 0.0)
	assert.Zero(t, backward)
	assert.Less(t, NewRoundTrip(b, a, DefaultFee).Profit(10), 0.0)
}

func TestLegOutputMatchesInvariant(t *testing.T) {
	out := LegOutput(100, 1000, 2000, 1)
	// (1000+100)*(2000-out) == 1000*2000 without fees
	assert.InDelta(t, 1000.0*2000.0, (1000.0+100.0)*(2000.0-out), 1e-6)
	assert.Zero(t, LegOutput(-1, 1000, 2000, 1))
}

func TestNewFee(t *testing.T) {
	fee, err := NewFee(0.003)
	require.NoError(t, err)
	assert.Equal(t, uint32(30), fee.Bps())
	assert.InDelta(t, 0.997, fee.Multiplier(), 1e-15)

	fee, err = NewFee(0.0025)
	require.NoError(t, err)
	assert.Equal(t, uint32(25), fee.Bps())

	for _, bad := range []float64{-0.1, 1, 2, math.NaN()} {
		_, err := NewFee(bad)
		assert.ErrorIs(t, err, ErrInvalidFee)
	}
}
