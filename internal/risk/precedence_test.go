package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vela/internal/types"
)

func sellSig(tf string) types.Signal {
	return types.Signal{Symbol: "AAPL", Action: types.ActionSell, Timeframe: tf}
}

func buySig(tf string) types.Signal {
	return types.Signal{Symbol: "AAPL", Action: types.ActionBuy, Timeframe: tf}
}

func longPos(tf string) types.Position {
	return types.Position{Symbol: "AAPL", Quantity: 10, AvgPrice: 100, Timeframe: tf}
}

func TestSellWithoutLongRejected(t *testing.T) {
	cfg := DefaultPrecedence()
	ok, reason := ShouldExecuteSignal(cfg, sellSig("15m"), types.Position{Symbol: "AAPL"})
	assert.False(t, ok)
	assert.Equal(t, "no_long_position", reason)

	short := types.Position{Symbol: "AAPL", Quantity: -5}
	ok, reason = ShouldExecuteSignal(cfg, sellSig("15m"), short)
	assert.False(t, ok)
	assert.Equal(t, "no_long_position", reason)
}

func TestSellWithinAllowWindow(t *testing.T) {
	cfg := DefaultPrecedence()
	// 15m 卖出 1h 持仓，相差 1 级
	ok, reason := ShouldExecuteSignal(cfg, sellSig("15m"), longPos("1h"))
	assert.True(t, ok)
	assert.Empty(t, reason)

	// 同周期
	ok, _ = ShouldExecuteSignal(cfg, sellSig("1h"), longPos("1h"))
	assert.True(t, ok)

	// 高周期卖低周期持仓（rankDiff 为负）
	ok, _ = ShouldExecuteSignal(cfg, sellSig("1d"), longPos("15m"))
	assert.True(t, ok)
}

func TestSellFarBelowRejected(t *testing.T) {
	cfg := PrecedenceConfig{AllowWithin: 2, RejectBeyond: 3}
	// 1m(1) 对 1d(5)，相差 4 > 3
	ok, reason := ShouldExecuteSignal(cfg, sellSig("1m"), longPos("1d"))
	assert.False(t, ok)
	assert.Equal(t, "too_low_timeframe_sell_1m_vs_1d", reason)
}

func TestSellInGreyBandAllowed(t *testing.T) {
	cfg := PrecedenceConfig{AllowWithin: 2, RejectBeyond: 4}
	// 相差 3，介于 allow 与 reject 之间
	ok, reason := ShouldExecuteSignal(cfg, sellSig("5m"), longPos("1d"))
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestBuyLowerTimeframeAgainstLongRejected(t *testing.T) {
	cfg := DefaultPrecedence()
	ok, reason := ShouldExecuteSignal(cfg, buySig("5m"), longPos("1h"))
	assert.False(t, ok)
	assert.Equal(t, "lower_timeframe_buy_5m_vs_1h", reason)

	// 同周期或更高周期加仓放行
	ok, _ = ShouldExecuteSignal(cfg, buySig("1h"), longPos("1h"))
	assert.True(t, ok)
	ok, _ = ShouldExecuteSignal(cfg, buySig("1d"), longPos("1h"))
	assert.True(t, ok)
}

func TestBuyOnFlatAlwaysAllowed(t *testing.T) {
	cfg := DefaultPrecedence()
	ok, reason := ShouldExecuteSignal(cfg, buySig("1m"), types.Position{Symbol: "AAPL"})
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestUnknownTimeframePasses(t *testing.T) {
	cfg := DefaultPrecedence()
	ok, _ := ShouldExecuteSignal(cfg, sellSig("weird"), longPos("1d"))
	assert.True(t, ok)

	ok, _ = ShouldExecuteSignal(cfg, sellSig("1m"), longPos(""))
	assert.True(t, ok)
}
