package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vela/internal/types"
)

func TestSuggestSizeFloorsToLots(t *testing.T) {
	limits := types.DefaultRiskLimits()
	limits.MaxCapitalPerTradePct = 5
	limits.KellyFraction = 0.5

	// 1,000,000 * 5% * 0.5 / 3 = 8333.33 -> 83 lots of 100
	got := SuggestSize(limits, 1_000_000, 50, 3, 100)
	assert.Equal(t, 8300.0, got)
}

func TestSuggestSizeATRFallback(t *testing.T) {
	limits := types.DefaultRiskLimits()
	limits.MaxCapitalPerTradePct = 5
	limits.KellyFraction = 1.0

	// 无 ATR 时按 1% 价格兜底：50,000 / 2 = 25,000
	got := SuggestSize(limits, 1_000_000, 200, 0, 1)
	assert.Equal(t, 25000.0, got)
}

func TestSuggestSizeKellyClamp(t *testing.T) {
	limits := types.DefaultRiskLimits()
	limits.MaxCapitalPerTradePct = 5
	limits.KellyFraction = 0.01

	low := SuggestSize(limits, 1_000_000, 100, 2, 1)
	limits.KellyFraction = 0.1
	ref := SuggestSize(limits, 1_000_000, 100, 2, 1)
	assert.Equal(t, ref, low)

	limits.KellyFraction = 5
	high := SuggestSize(limits, 1_000_000, 100, 2, 1)
	limits.KellyFraction = 1.0
	ref = SuggestSize(limits, 1_000_000, 100, 2, 1)
	assert.Equal(t, ref, high)
}

func TestSuggestSizeDegenerateInputs(t *testing.T) {
	limits := types.DefaultRiskLimits()
	assert.Equal(t, 0.0, SuggestSize(limits, 0, 100, 2, 1))
	assert.Equal(t, 0.0, SuggestSize(limits, 1_000_000, 0, 2, 1))
}

func TestBlockOrderPriority(t *testing.T) {
	limits := types.DefaultRiskLimits()
	limits.PauseAll = true

	// 暂停优先于其他所有检查
	blocked, reason := BlockOrder(limits, -99, 50, 100)
	assert.True(t, blocked)
	assert.Equal(t, "Trading paused", reason)

	limits.PauseAll = false
	limits.MaxDailyLossPct = 3
	blocked, reason = BlockOrder(limits, -3.5, 50, 100)
	assert.True(t, blocked)
	assert.Equal(t, "Daily drawdown limit exceeded", reason)

	blocked, reason = BlockOrder(limits, -1, 50, 100)
	assert.True(t, blocked)
	assert.Equal(t, "Circuit breaker 50.00% triggered", reason)
}

func TestBlockOrderCircuitNeedsBothPrices(t *testing.T) {
	limits := types.DefaultRiskLimits()
	limits.CircuitBreakerPct = 20

	blocked, _ := BlockOrder(limits, 0, 0, 100)
	assert.False(t, blocked)

	blocked, _ = BlockOrder(limits, 0, 50, 0)
	assert.False(t, blocked)

	// 涨跌都触发
	blocked, reason := BlockOrder(limits, 0, 125, 100)
	assert.True(t, blocked)
	assert.Equal(t, "Circuit breaker 25.00% triggered", reason)
}

func TestBlockOrderClean(t *testing.T) {
	limits := types.DefaultRiskLimits()
	blocked, reason := BlockOrder(limits, -1, 101, 100)
	assert.False(t, blocked)
	assert.Empty(t, reason)
}
