package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/types"
)

func scored(strategy string, action types.Action, conf float64) types.ScoredSignal {
	return types.ScoredSignal{
		Signal:     types.Signal{Symbol: "AAPL", Strategy: strategy, Action: action},
		Confidence: conf,
	}
}

func TestCombineEmptyIsPass(t *testing.T) {
	e := NewEnsemble(nil)
	got := e.Combine(nil)
	assert.Equal(t, types.DecisionPass, got.Decision)
	assert.Empty(t, got.Weights)
}

func TestCombinePicksHeavierAction(t *testing.T) {
	e := NewEnsemble(nil)
	got := e.Combine([]types.ScoredSignal{
		scored("trend_follow", types.ActionBuy, 0.6),
		scored("mean_reversion", types.ActionSell, 0.5),
	})
	assert.Equal(t, types.DecisionEnterLong, got.Decision)
	require.Len(t, got.Weights, 2)
	assert.Equal(t, types.ActionBuy, got.Weights[0].Action)
	assert.InDelta(t, 0.6, got.Weights[0].Weight, 1e-9)
}

func TestCombineAccumulatesSameAction(t *testing.T) {
	e := NewEnsemble(nil)
	got := e.Combine([]types.ScoredSignal{
		scored("trend_follow", types.ActionSell, 0.4),
		scored("momentum", types.ActionSell, 0.4),
		scored("mean_reversion", types.ActionBuy, 0.7),
	})
	assert.Equal(t, types.DecisionEnterShort, got.Decision)
	assert.InDelta(t, 0.8, got.WeightMap()["SELL"], 1e-9)
}

func TestCombineTieBreaksByInsertionOrder(t *testing.T) {
	e := NewEnsemble(nil)
	got := e.Combine([]types.ScoredSignal{
		scored("trend_follow", types.ActionSell, 0.5),
		scored("momentum", types.ActionBuy, 0.5),
	})
	// 权重相同，先出现的 SELL 胜出
	assert.Equal(t, types.DecisionEnterShort, got.Decision)
}

func TestCombineAppliesStrategyWeights(t *testing.T) {
	e := NewEnsemble(map[string]float64{"trend_follow": 2.0, "mean_reversion": 0.5})
	got := e.Combine([]types.ScoredSignal{
		scored("trend_follow", types.ActionBuy, 0.5),
		scored("mean_reversion", types.ActionSell, 0.9),
	})
	assert.Equal(t, types.DecisionEnterLong, got.Decision)
	assert.InDelta(t, 1.0, got.WeightMap()["BUY"], 1e-9)
	assert.InDelta(t, 0.45, got.WeightMap()["SELL"], 1e-9)
}

func TestCombineUnknownStrategyDefaultsToOne(t *testing.T) {
	e := NewEnsemble(map[string]float64{"trend_follow": 1.0})
	got := e.Combine([]types.ScoredSignal{scored("custom", types.ActionBuy, 0.3)})
	assert.Equal(t, types.DecisionEnterLong, got.Decision)
	assert.InDelta(t, 0.3, got.WeightMap()["BUY"], 1e-9)
}
