package validate

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbscope/internal/amm"
	"arbscope/internal/model"
)

var ether = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func etherPool(t *testing.T, id string, in, out int64) model.PoolState {
	t.Helper()
	pool, err := model.NewPoolState(id, new(big.Int).Mul(big.NewInt(in), ether), new(big.Int).Mul(big.NewInt(out), ether))
	require.NoError(t, err)
	return pool
}

func snapshotOf(pools ...model.PoolState) model.Snapshot {
	return model.Snapshot{
		TokenIn:  model.TokenMeta{Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Decimals: 18, Symbol: "DAI"},
		TokenOut: model.TokenMeta{Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18, Symbol: "WETH"},
		Pools:    pools,
	}
}

func candidateFor(src, dst model.PoolState) model.TradeCandidate {
	amount, profit := amm.NewRoundTrip(src, dst, amm.DefaultFee).OptimalAmountIn()
	return model.TradeCandidate{
		Source:    src.ID(),
		Target:    dst.ID(),
		AmountIn:  amount,
		NetProfit: profit,
		Method:    "analytic",
		Converged: true,
	}
}

func TestValidateLargePools(t *testing.T) {
	src := etherPool(t, "src", 1000, 1000)
	dst := etherPool(t, "dst", 1100, 1000)
	snap := snapshotOf(src, dst)
	cand := candidateFor(src, dst)

	v := NewValidator(DefaultConfig(), nil, nil)
	opp, rej, err := v.Validate("scan-1", snap, cand)
	require.NoError(t, err)
	require.Nil(t, rej)
	require.NotNil(t, opp)

	assert.Equal(t, "scan-1", opp.ScanID)
	assert.True(t, opp.Profitable())
	assert.Empty(t, opp.Warnings)

	for i, factor := range ProbeFactors {
		probe := opp.Probes[i]
		assert.Equal(t, factor, probe.Factor)
		want, err := amm.QuoteRoundTrip(probe.AmountIn, src, dst, amm.DefaultFee)
		require.NoError(t, err)
		assert.Zero(t, want.AmountOut.Cmp(probe.AmountOut))
		assert.Zero(t, new(big.Int).Sub(probe.AmountOut, probe.AmountIn).Cmp(probe.Profit))
	}
	assert.Equal(t, -1, opp.Probes[0].AmountIn.Cmp(opp.Probes[1].AmountIn))
	assert.Equal(t, -1, opp.Probes[1].AmountIn.Cmp(opp.Probes[2].AmountIn))
	// Near the optimum the exact 1x probe beats both neighbours.
	assert.Equal(t, 1, opp.Probes[1].Profit.Cmp(opp.Probes[0].Profit))
	assert.Equal(t, 1, opp.Probes[1].Profit.Cmp(opp.Probes[2].Profit))

	flat := opp.Flatten()
	require.Len(t, flat, 3)
	assert.Equal(t, "src", flat[0].Source)
}

func TestValidateRejectsBelowThreshold(t *testing.T) {
	src := model.MustPoolState("src", 1000, 1000)
	dst := model.MustPoolState("dst", 1100, 1000)
	cand := candidateFor(src, dst)

	v := NewValidator(DefaultConfig(), nil, nil)
	opp, rej, err := v.Validate("scan", snapshotOf(src, dst), cand)
	require.NoError(t, err)
	assert.Nil(t, opp)
	require.NotNil(t, rej)
	assert.Equal(t, model.RejectBelowThreshold, rej.Reason)

	// Equal to the threshold is still rejected.
	cfg := DefaultConfig()
	cfg.MinAmountIn = big.NewInt(22)
	_, rej, err = NewValidator(cfg, nil, nil).Validate("scan", snapshotOf(src, dst), cand)
	require.NoError(t, err)
	require.NotNil(t, rej)

	cfg.MinAmountIn = big.NewInt(21)
	opp, rej, err = NewValidator(cfg, nil, nil).Validate("scan", snapshotOf(src, dst), cand)
	require.NoError(t, err)
	assert.Nil(t, rej)
	assert.NotNil(t, opp)
}

func TestValidateQuantizationMismatch(t *testing.T) {
	src := model.MustPoolState("src", 1000, 1000)
	dst := model.MustPoolState("dst", 1100, 1000)
	cand := candidateFor(src, dst)
	require.Greater(t, cand.NetProfit, 1.0)

	cfg := DefaultConfig()
	cfg.MinAmountIn = big.NewInt(10)
	opp, rej, err := NewValidator(cfg, nil, nil).Validate("scan", snapshotOf(src, dst), cand)
	require.NoError(t, err)
	require.Nil(t, rej)

	// Integer rounding eats the whole edge in a pool this small.
	assert.Zero(t, opp.Best().Profit.Sign())
	assert.False(t, opp.Profitable())
	assert.True(t, opp.HasWarning(model.WarningQuantizationMismatch))

	cfg.RequireProfit = true
	opp, rej, err = NewValidator(cfg, nil, nil).Validate("scan", snapshotOf(src, dst), cand)
	require.NoError(t, err)
	assert.Nil(t, opp)
	require.NotNil(t, rej)
	assert.Equal(t, model.RejectNotProfitable, rej.Reason)
}

func TestValidateProbeNotConcave(t *testing.T) {
	src := model.MustPoolState("src", 459, 459)
	dst := model.MustPoolState("dst", 878, 459)
	cand := candidateFor(src, dst)

	cfg := DefaultConfig()
	cfg.MinAmountIn = big.NewInt(1)
	opp, _, err := NewValidator(cfg, nil, nil).Validate("scan", snapshotOf(src, dst), cand)
	require.NoError(t, err)
	require.NotNil(t, opp)

	assert.Equal(t, []int64{86, 87, 88}, []int64{
		opp.Probes[0].AmountIn.Int64(),
		opp.Probes[1].AmountIn.Int64(),
		opp.Probes[2].AmountIn.Int64(),
	})
	assert.Equal(t, []int64{32, 31, 32}, []int64{
		opp.Probes[0].Profit.Int64(),
		opp.Probes[1].Profit.Int64(),
		opp.Probes[2].Profit.Int64(),
	})
	assert.True(t, opp.HasWarning(model.WarningProbeNotConcave))
}

func TestThresholdResolution(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Thresholds = map[string]*big.Int{
		"0x6b175474e89094c44da98b954eedeac495271d0f": big.NewInt(5),
		"USDC": big.NewInt(7),
	}
	v := NewValidator(cfg, nil, nil)

	assert.Equal(t, int64(5), v.Threshold(model.TokenMeta{Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Symbol: "DAI"}).Int64())
	assert.Equal(t, int64(7), v.Threshold(model.TokenMeta{Address: "0xa0b8", Symbol: "usdc"}).Int64())
	assert.Equal(t, int64(1_000_000), v.Threshold(model.TokenMeta{Address: "0xdead", Symbol: "WBTC"}).Int64())
	assert.Equal(t, int64(1_000_000), v.Threshold(model.TokenMeta{}).Int64())
}

func TestValidateUnknownPool(t *testing.T) {
	src := model.MustPoolState("src", 1000, 1000)
	dst := model.MustPoolState("dst", 1100, 1000)
	cand := candidateFor(src, dst)
	cand.Target = "missing"

	_, _, err := NewValidator(DefaultConfig(), nil, nil).Validate("scan", snapshotOf(src, dst), cand)
	assert.True(t, errors.Is(err, ErrUnknownPool))
}

func TestValidateAllRanksAndSkipsFailures(t *testing.T) {
	a := etherPool(t, "a", 1000, 1000)
	b := etherPool(t, "b", 1100, 1000)
	c := etherPool(t, "c", 1050, 1000)
	snap := snapshotOf(a, b, c)

	abCand := candidateFor(a, b)
	acCand := candidateFor(a, c)
	bcCand := candidateFor(b, c) // not profitable: amount 0
	pairs := []model.PairResult{
		{Source: "a", Target: "c", Candidate: &acCand},
		{Source: "b", Target: "c", Candidate: &bcCand},
		{Source: "c", Target: "b", Err: errors.New("timeout")},
		{Source: "a", Target: "b", Candidate: &abCand},
	}

	opps, rejections, err := NewValidator(DefaultConfig(), nil, nil).ValidateAll("scan", snap, pairs)
	require.NoError(t, err)
	require.Len(t, opps, 2)
	assert.Equal(t, "b", opps[0].Target)
	assert.Equal(t, "c", opps[1].Target)
	assert.Equal(t, 1, opps[0].Best().Profit.Cmp(opps[1].Best().Profit))

	require.Len(t, rejections, 1)
	assert.Equal(t, "b", rejections[0].Source)
	assert.Equal(t, model.RejectBelowThreshold, rejections[0].Reason)
}

func TestFloorAmount(t *testing.T) {
	assert.Equal(t, int64(22), floorAmount(22.934, 1).Int64())
	assert.Equal(t, int64(22), floorAmount(22.934, 0.99).Int64())
	assert.Equal(t, int64(23), floorAmount(22.934, 1.01).Int64())
	assert.Equal(t, int64(0), floorAmount(0, 1.01).Int64())

	large := floorAmount(2.2934e19, 1)
	assert.Equal(t, "22934000000000000000", large.String())
}
