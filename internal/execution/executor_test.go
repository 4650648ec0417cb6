package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetNotionalScalesWithConfidence(t *testing.T) {
	// 0.5 置信度对应 1% 基础风险
	assert.InDelta(t, 10_000.0, TargetNotional(1_000_000, 0.5, "15m"), 1e-6)
	// 1.0 封顶在 2%
	assert.InDelta(t, 20_000.0, TargetNotional(1_000_000, 1.0, "15m"), 1e-6)
	assert.InDelta(t, 20_000.0, TargetNotional(1_000_000, 2.0, "15m"), 1e-6)
}

func TestTargetNotionalTimeframeMultipliers(t *testing.T) {
	base := TargetNotional(1_000_000, 0.5, "15m")
	assert.InDelta(t, base*0.5, TargetNotional(1_000_000, 0.5, "1m"), 1e-6)
	assert.InDelta(t, base*1.5, TargetNotional(1_000_000, 0.5, "1d"), 1e-6)
	// 未知周期按 0.75
	assert.InDelta(t, base*0.75, TargetNotional(1_000_000, 0.5, "3m"), 1e-6)
}

func TestTargetNotionalFallbackWithoutEquity(t *testing.T) {
	assert.InDelta(t, 8_000.0, TargetNotional(0, 0.9, "15m"), 1e-6)
	assert.InDelta(t, 3_000.0, TargetNotional(0, 0.9, "1m"), 1e-6)
	assert.InDelta(t, 12_000.0, TargetNotional(-1, 0.9, "1d"), 1e-6)
	assert.InDelta(t, 5_000.0, TargetNotional(0, 0.9, "3m"), 1e-6)
}

func TestRoundQuantityByMagnitude(t *testing.T) {
	assert.Equal(t, 248.0, RoundQuantity(247.6))
	assert.Equal(t, 24.8, RoundQuantity(24.76))
	assert.Equal(t, 2.48, RoundQuantity(2.476))
	assert.Equal(t, 0.2477, RoundQuantity(0.24767))
	assert.Equal(t, 0.0, RoundQuantity(0))
}

func TestFloorToLot(t *testing.T) {
	assert.Equal(t, 40.0, FloorToLot(40.5, 5))
	assert.Equal(t, 40.0, FloorToLot(44.9, 5))
	// 不足一手归零
	assert.Equal(t, 0.0, FloorToLot(3, 5))
	assert.Equal(t, 0.0, FloorToLot(-2, 1))
	// 非法手数按 1 处理
	assert.Equal(t, 7.0, FloorToLot(7.9, 0))
}

func TestSizeForNotionalFloorsToLot(t *testing.T) {
	// 无权益回退名义 10000，价格 247：10000/247 = 40.49 → 40.5 → 一手 5 股 → 40
	assert.Equal(t, 40.0, SizeForNotional(0, 0.8, "1h", 247, 5))
	// 一手 1 股退化为整股
	assert.Equal(t, 40.0, SizeForNotional(0, 0.8, "1h", 247, 1))
	// 名义撑不满一手时归零，由上层走风险预算回退
	assert.Equal(t, 0.0, SizeForNotional(0, 0.8, "1h", 9000, 2))
	assert.Equal(t, 0.0, SizeForNotional(0, 0.8, "1h", 0, 1))
}
