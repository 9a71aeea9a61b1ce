package engine

import (
	"context"
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"arbscope/internal/metrics"
	"arbscope/internal/model"
	"arbscope/internal/scanner"
	"arbscope/internal/validate"
)

func pool(t *testing.T, id string, in, out int64) model.PoolState {
	t.Helper()
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	p, err := model.NewPoolState(id, new(big.Int).Mul(big.NewInt(in), unit), new(big.Int).Mul(big.NewInt(out), unit))
	require.NoError(t, err)
	return p
}

func newTestEngine(t *testing.T, logger *zap.Logger) *Engine {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	cfg := scanner.DefaultConfig()
	cfg.Seed = 7
	s, err := scanner.NewScanner(cfg, m, logger)
	require.NoError(t, err)
	v := validate.NewValidator(validate.DefaultConfig(), m, logger)
	return New(s, v, m, logger)
}

func TestRunReportsRankedOpportunities(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := newTestEngine(t, zap.New(core))

	snap := model.Snapshot{
		BlockNumber: 19_000_000,
		TokenIn:     model.TokenMeta{Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Decimals: 18, Symbol: "DAI"},
		TokenOut:    model.TokenMeta{Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18, Symbol: "WETH"},
		Pools: []model.PoolState{
			pool(t, "a", 1000, 1000),
			pool(t, "b", 1100, 1000),
			pool(t, "c", 1050, 1000),
		},
	}

	report, err := e.Run(context.Background(), snap)
	require.NoError(t, err)

	assert.NotEmpty(t, report.ScanID)
	assert.Equal(t, uint64(19_000_000), report.BlockNumber)
	assert.Len(t, report.Pairs, 6)
	assert.Empty(t, report.Failed())

	// a->b, a->c and c->b all buy base cheap and sell it dear.
	require.Len(t, report.Opportunities, 3)
	assert.Equal(t, "a", report.Opportunities[0].Source)
	assert.Equal(t, "b", report.Opportunities[0].Target)
	for i := 1; i < len(report.Opportunities); i++ {
		prev := report.Opportunities[i-1].Best().Profit
		cur := report.Opportunities[i].Best().Profit
		assert.GreaterOrEqual(t, prev.Cmp(cur), 0)
	}
	for _, opp := range report.Opportunities {
		assert.Equal(t, report.ScanID, opp.ScanID)
		assert.True(t, opp.Profitable())
	}
	assert.Len(t, report.Rejections, 3)
	assert.Len(t, report.ValidatedOpportunities(), 9)

	assert.Equal(t, 1, logs.FilterMessage("scan complete").Len())
	assert.Equal(t, 3, logs.FilterMessage("arbitrage opportunity").Len())
	first := logs.FilterMessage("arbitrage opportunity").All()[0].ContextMap()
	assert.Equal(t, "DAI", first["token"])
	assert.Equal(t, report.ScanID, first["scan_id"])
}

func TestRunRejectsInvalidSnapshot(t *testing.T) {
	e := newTestEngine(t, nil)
	_, err := e.Run(context.Background(), model.Snapshot{Pools: []model.PoolState{model.MustPoolState("a", 1, 1)}})
	assert.ErrorIs(t, err, model.ErrEmptySnapshot)
}

func TestRunUniqueScanIDs(t *testing.T) {
	e := newTestEngine(t, nil)
	snap := model.Snapshot{Pools: []model.PoolState{model.MustPoolState("a", 1000, 1000), model.MustPoolState("b", 1000, 1000)}}
	first, err := e.Run(context.Background(), snap)
	require.NoError(t, err)
	second, err := e.Run(context.Background(), snap)
	require.NoError(t, err)
	assert.NotEqual(t, first.ScanID, second.ScanID)
	assert.Empty(t, first.Opportunities)
}
