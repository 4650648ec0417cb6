package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/market"
	"vela/internal/types"
)

func val(v float64) market.Value { return market.Value{V: v, OK: true} }

func neutralSnapshot() market.Snapshot {
	return market.Snapshot{
		Close:    100,
		RSI14:    val(50),
		MACDHist: val(0),
		ADX14:    val(10),
		BBWidth:  val(0.05),
		VolZ:     val(0),
	}
}

func buySignal(base float64) types.Signal {
	return types.Signal{
		Symbol:         "AAPL",
		Strategy:       "trend_follow",
		Action:         types.ActionBuy,
		Timeframe:      "15m",
		BaseConfidence: base,
	}
}

func TestScoreBoundsAndDeterminism(t *testing.T) {
	s := NewScorer()
	snap := neutralSnapshot()
	a := s.Score(buySignal(0.8), snap, 0)
	b := s.Score(buySignal(0.8), snap, 0)
	require.Equal(t, a.Confidence, b.Confidence)
	assert.GreaterOrEqual(t, a.Confidence, 0.0)
	assert.LessOrEqual(t, a.Confidence, 1.0)
}

func TestScoreDecomposition(t *testing.T) {
	s := NewScorer()
	got := s.Score(buySignal(0.8), neutralSnapshot(), 0)
	require.NotNil(t, got.Scoring)
	assert.Equal(t, 0.8, got.Scoring["base"])
	assert.Equal(t, "range", got.Scoring["regime"])
	features, ok := got.Scoring["features"].(map[string]float64)
	require.True(t, ok)
	for _, name := range featureOrder {
		assert.Contains(t, features, name)
	}
	contribs, ok := got.Scoring["contribs"].(map[string]float64)
	require.True(t, ok)
	for _, name := range featureOrder {
		assert.Contains(t, contribs, name)
	}
}

func TestScoreRSIExtremeBump(t *testing.T) {
	s := NewScorer()
	snap := neutralSnapshot()
	snap.RSI14 = val(30)
	got := s.Score(buySignal(0.8), snap, 0)
	contribs := got.Scoring["contribs"].(map[string]float64)
	assert.Equal(t, 0.2, contribs["rsi_extreme"])

	sell := buySignal(0.8)
	sell.Action = types.ActionSell
	snap.RSI14 = val(70)
	got = s.Score(sell, snap, 0)
	contribs = got.Scoring["contribs"].(map[string]float64)
	assert.Equal(t, 0.2, contribs["rsi_extreme"])
}

func TestScoreSentimentFlipsForSell(t *testing.T) {
	s := NewScorer()
	snap := neutralSnapshot()
	buy := s.Score(buySignal(0.8), snap, 0.5)
	buyContribs := buy.Scoring["contribs"].(map[string]float64)
	assert.InDelta(t, 0.075, buyContribs["sentiment"], 1e-9)

	sell := buySignal(0.8)
	sell.Action = types.ActionSell
	got := s.Score(sell, snap, 0.5)
	contribs := got.Scoring["contribs"].(map[string]float64)
	assert.InDelta(t, -0.075, contribs["sentiment"], 1e-9)
}

func TestScoreTrendRegimeSwitchesWeights(t *testing.T) {
	s := NewScorer()
	snap := neutralSnapshot()
	snap.ADX14 = val(40)
	snap.MACDHist = val(0.5)
	got := s.Score(buySignal(0.8), snap, 0)
	assert.Equal(t, "trend", got.Scoring["regime"])
}

func TestSigmoidOverflowSafe(t *testing.T) {
	assert.Equal(t, 1.0, sigmoid(1e6))
	assert.InDelta(t, 0.0, sigmoid(-1e6), 1e-12)
	assert.InDelta(t, 0.5, sigmoid(0), 1e-12)
}
