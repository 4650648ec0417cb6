package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/types"
)

func fill(side types.Action, price, qty float64, day string) types.Order {
	ts, _ := time.Parse("2006-01-02", day)
	return types.Order{
		Symbol:    "AAPL",
		Side:      side,
		Status:    types.OrderStatusFilled,
		FillPrice: price,
		FilledQty: qty,
		At:        ts.UnixMilli(),
	}
}

func TestEquityCurveFoldsDailyFlows(t *testing.T) {
	orders := []types.Order{
		fill(types.ActionBuy, 100, 10, "2026-01-05"),
		fill(types.ActionBuy, 50, 4, "2026-01-05"),
		fill(types.ActionSell, 120, 10, "2026-01-07"),
	}
	curve := EquityCurve(10_000, orders)
	require.Len(t, curve, 2)
	assert.Equal(t, "2026-01-05", curve[0].Date)
	assert.InDelta(t, 8_800.0, curve[0].Equity, 1e-9)
	assert.Equal(t, "2026-01-07", curve[1].Date)
	assert.InDelta(t, 10_000.0, curve[1].Equity, 1e-9)
}

func TestEquityCurveSkipsUnfilled(t *testing.T) {
	rejected := fill(types.ActionBuy, 100, 0, "2026-01-05")
	assert.Nil(t, EquityCurve(10_000, []types.Order{rejected}))
	assert.Nil(t, EquityCurve(10_000, nil))
}

func TestSharpeDegenerate(t *testing.T) {
	assert.Equal(t, 0.0, Sharpe(nil))
	assert.Equal(t, 0.0, Sharpe([]EquityPoint{{Equity: 100}, {Equity: 110}}))

	// 零方差
	flat := []EquityPoint{{Equity: 100}, {Equity: 100}, {Equity: 100}}
	assert.Equal(t, 0.0, Sharpe(flat))
}

func TestSharpeSignFollowsTrend(t *testing.T) {
	up := []EquityPoint{{Equity: 100}, {Equity: 102}, {Equity: 103}, {Equity: 106}}
	assert.Greater(t, Sharpe(up), 0.0)

	down := []EquityPoint{{Equity: 100}, {Equity: 97}, {Equity: 96}, {Equity: 92}}
	assert.Less(t, Sharpe(down), 0.0)
}

func TestMaxDrawdownPct(t *testing.T) {
	curve := []EquityPoint{
		{Equity: 100}, {Equity: 120}, {Equity: 90}, {Equity: 110},
	}
	assert.InDelta(t, -25.0, MaxDrawdownPct(curve), 1e-9)

	rising := []EquityPoint{{Equity: 100}, {Equity: 110}, {Equity: 120}}
	assert.Equal(t, 0.0, MaxDrawdownPct(rising))
	assert.Equal(t, 0.0, MaxDrawdownPct(nil))
}
