package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/market"
	"vela/internal/types"
)

func flatCandles(n int, price float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		ts := int64(i+1) * 60_000
		out[i] = market.Candle{
			OpenTime:  ts - 60_000,
			CloseTime: ts,
			Open:      price,
			High:      price + 0.5,
			Low:       price - 0.5,
			Close:     price,
			Volume:    10_000,
		}
	}
	return out
}

func TestBuildBookSpreadAroundClose(t *testing.T) {
	book, err := BuildBook(flatCandles(50, 100))
	require.NoError(t, err)
	assert.Less(t, book.Bid, 100.0)
	assert.Greater(t, book.Ask, 100.0)
	assert.InDelta(t, 100.0, book.Mid, 1e-9)
	assert.Greater(t, book.ATR, 0.0)
	assert.InDelta(t, 10_000.0, book.AvgVol, 1e-9)
}

func TestBuildBookNoCandles(t *testing.T) {
	_, err := BuildBook(nil)
	assert.Error(t, err)
}

func TestSlippageCapped(t *testing.T) {
	book := Book{Bid: 99, Ask: 101, Mid: 100, ATR: 50, AvgVol: 1}
	assert.Equal(t, maxSlippageBps, book.SlippageBps(1_000_000))
}

func TestSlippageGrowsWithSize(t *testing.T) {
	book := Book{Bid: 99.9, Ask: 100.1, Mid: 100, ATR: 0.01, AvgVol: 10_000}
	small := book.SlippageBps(10)
	large := book.SlippageBps(5_000)
	assert.Greater(t, large, small)
}

func TestMarketOrderAlwaysFills(t *testing.T) {
	sim := NewSimulator()
	candles := flatCandles(50, 100)

	buy, err := sim.Simulate(Request{Symbol: "AAPL", Side: types.ActionBuy, Type: types.OrderTypeMarket, Quantity: 100}, candles)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFilled, buy.Status)
	assert.Equal(t, 100.0, buy.FilledQty)
	// 买单吃卖价并向上滑
	assert.GreaterOrEqual(t, buy.FillPrice, 100.0)

	sell, err := sim.Simulate(Request{Symbol: "AAPL", Side: types.ActionSell, Type: types.OrderTypeMarket, Quantity: 100}, candles)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFilled, sell.Status)
	assert.LessOrEqual(t, sell.FillPrice, 100.0)
	assert.Less(t, sell.FillPrice, buy.FillPrice)
}

func TestOrderNotesCarryBook(t *testing.T) {
	sim := NewSimulator()
	order, err := sim.Simulate(Request{Symbol: "AAPL", Side: types.ActionBuy, Type: types.OrderTypeMarket, Quantity: 1}, flatCandles(50, 100))
	require.NoError(t, err)
	assert.Contains(t, order.Notes, "bid")
	assert.Contains(t, order.Notes, "ask")
	assert.Contains(t, order.Notes, "atr")
	assert.NotEmpty(t, order.ID)
}

func TestLimitWithoutPriceRejected(t *testing.T) {
	sim := NewSimulator()
	order, err := sim.Simulate(Request{Symbol: "AAPL", Side: types.ActionBuy, Type: types.OrderTypeLimit, Quantity: 10}, flatCandles(50, 100))
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusRejected, order.Status)
	assert.Equal(t, 0.0, order.FilledQty)
	assert.Equal(t, "Limit price required", order.Notes["reason"])
}

func TestLimitBuyBelowAskRejected(t *testing.T) {
	sim := NewSimulator()
	order, err := sim.Simulate(Request{
		Symbol: "AAPL", Side: types.ActionBuy, Type: types.OrderTypeLimit,
		Quantity: 10, LimitPrice: 90,
	}, flatCandles(50, 100))
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusRejected, order.Status)
	assert.Equal(t, "Limit too low", order.Notes["reason"])
}

func TestLimitBuyCrossingCappedAtLimit(t *testing.T) {
	sim := NewSimulator()
	order, err := sim.Simulate(Request{
		Symbol: "AAPL", Side: types.ActionBuy, Type: types.OrderTypeLimit,
		Quantity: 10, LimitPrice: 100.5,
	}, flatCandles(50, 100))
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFilled, order.Status)
	assert.LessOrEqual(t, order.FillPrice, 100.5)
	assert.Equal(t, 10.0, order.FilledQty)
}

func TestLimitSellAboveBidRejected(t *testing.T) {
	sim := NewSimulator()
	order, err := sim.Simulate(Request{
		Symbol: "AAPL", Side: types.ActionSell, Type: types.OrderTypeLimit,
		Quantity: 10, LimitPrice: 110,
	}, flatCandles(50, 100))
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusRejected, order.Status)
	assert.Equal(t, "Limit too high", order.Notes["reason"])
}

func TestLimitSellCrossingFloorsAtLimit(t *testing.T) {
	sim := NewSimulator()
	order, err := sim.Simulate(Request{
		Symbol: "AAPL", Side: types.ActionSell, Type: types.OrderTypeLimit,
		Quantity: 10, LimitPrice: 99,
	}, flatCandles(50, 100))
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFilled, order.Status)
	assert.GreaterOrEqual(t, order.FillPrice, 99.0)
}

func TestSimulateRejectsBadQuantity(t *testing.T) {
	sim := NewSimulator()
	_, err := sim.Simulate(Request{Symbol: "AAPL", Side: types.ActionBuy, Type: types.OrderTypeMarket, Quantity: 0}, flatCandles(5, 100))
	assert.Error(t, err)
}
