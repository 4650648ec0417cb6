package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/store"
	"vela/internal/types"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func filledOrder(id string, side types.Action, price, qty float64, at int64) *types.Order {
	return &types.Order{
		ID:        id,
		Symbol:    "AAPL",
		Side:      side,
		Type:      types.OrderTypeMarket,
		Status:    types.OrderStatusFilled,
		FillPrice: price,
		Quantity:  qty,
		FilledQty: qty,
		At:        at,
	}
}

func TestApplyTradeAveragesSameDirection(t *testing.T) {
	pos := types.Position{Symbol: "AAPL"}
	pos = applyTrade(pos, 100, 10)
	require.Equal(t, 10.0, pos.Quantity)
	require.Equal(t, 100.0, pos.AvgPrice)

	pos = applyTrade(pos, 110, 10)
	assert.Equal(t, 20.0, pos.Quantity)
	assert.InDelta(t, 105.0, pos.AvgPrice, 1e-9)
	assert.Equal(t, 0.0, pos.RealizedPnL)
}

func TestApplyTradeRealizesOnReduce(t *testing.T) {
	pos := types.Position{Symbol: "AAPL", Quantity: 20, AvgPrice: 105}
	pos = applyTrade(pos, 120, -10)
	assert.Equal(t, 10.0, pos.Quantity)
	assert.InDelta(t, 150.0, pos.RealizedPnL, 1e-9)
	// 减仓不改均价
	assert.InDelta(t, 105.0, pos.AvgPrice, 1e-9)
}

func TestApplyTradeFullExitResetsAvg(t *testing.T) {
	pos := types.Position{Symbol: "AAPL", Quantity: 10, AvgPrice: 100}
	pos = applyTrade(pos, 120, -10)
	assert.Equal(t, 0.0, pos.Quantity)
	assert.Equal(t, 0.0, pos.AvgPrice)
	assert.InDelta(t, 200.0, pos.RealizedPnL, 1e-9)
}

func TestApplyTradeFlipUsesFillAsNewBasis(t *testing.T) {
	pos := types.Position{Symbol: "AAPL", Quantity: 10, AvgPrice: 100}
	pos = applyTrade(pos, 120, -25)
	assert.Equal(t, -15.0, pos.Quantity)
	assert.Equal(t, 120.0, pos.AvgPrice)
	// 只有被平掉的 10 股兑现盈亏
	assert.InDelta(t, 200.0, pos.RealizedPnL, 1e-9)
}

func TestApplyTradeShortCoverRealized(t *testing.T) {
	pos := types.Position{Symbol: "AAPL", Quantity: -10, AvgPrice: 100}
	pos = applyTrade(pos, 90, 10)
	assert.Equal(t, 0.0, pos.Quantity)
	assert.InDelta(t, 100.0, pos.RealizedPnL, 1e-9)
}

func TestApplyFillSellAtFlatIsNoOp(t *testing.T) {
	ctx := context.Background()
	led := New(openTestStore(t))

	order := filledOrder("o-1", types.ActionSell, 100, 10, 1)
	pos, err := led.ApplyFill(ctx, order)
	require.NoError(t, err)
	assert.True(t, pos.Flat())

	// 无持仓的卖单被降级为零成交，不留成交记录
	assert.Equal(t, types.OrderStatusRejected, order.Status)
	assert.Equal(t, 0.0, order.FilledQty)
	assert.Equal(t, "No position to sell", order.Notes["reason"])

	trades, err := led.store.ListTrades(ctx, "AAPL", 10)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestApplyFillClampsOversell(t *testing.T) {
	ctx := context.Background()
	led := New(openTestStore(t))

	_, err := led.ApplyFill(ctx, filledOrder("o-1", types.ActionBuy, 100, 5, 1))
	require.NoError(t, err)

	sell := filledOrder("o-2", types.ActionSell, 110, 10, 2)
	pos, err := led.ApplyFill(ctx, sell)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pos.Quantity)
	assert.Equal(t, types.OrderStatusPartial, sell.Status)
	assert.Equal(t, 5.0, sell.FilledQty)
	assert.InDelta(t, 50.0, pos.RealizedPnL, 1e-9)
}

func TestApplyFillAdvancesEquityCheckpoint(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	led := New(st)

	_, err := led.ApplyFill(ctx, filledOrder("o-1", types.ActionBuy, 100, 10, 1))
	require.NoError(t, err)
	equity, err := st.LatestEquity(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1_000_000.0, equity, 1e-6)

	_, err = led.ApplyFill(ctx, filledOrder("o-2", types.ActionSell, 120, 10, 2))
	require.NoError(t, err)
	equity, err = st.LatestEquity(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1_000_200.0, equity, 1e-6)
}

func TestMarkToMarket(t *testing.T) {
	pos := types.Position{Symbol: "AAPL", Quantity: 10, AvgPrice: 100}
	pos = MarkToMarket(pos, 110)
	assert.InDelta(t, 100.0, pos.UnrealizedPnL, 1e-9)

	flat := MarkToMarket(types.Position{Symbol: "AAPL"}, 110)
	assert.Equal(t, 0.0, flat.UnrealizedPnL)
}
