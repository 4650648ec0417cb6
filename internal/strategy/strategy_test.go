package strategy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/market"
	"vela/internal/types"
)

func val(v float64) market.Value { return market.Value{V: v, OK: true} }

// momentumHist builds a history whose last bar clears every momentum gate.
func momentumHist(n int) []market.Snapshot {
	hist := make([]market.Snapshot, n)
	for i := range hist {
		hist[i] = market.Snapshot{
			CloseTime: int64(i+1) * 900_000,
			Close:     100,
			EMA20:     val(100),
			EMA50:     val(100),
			RSI14:     val(50),
			MACDHist:  val(0),
			ADX14:     val(15),
			ATR14:     val(1),
			VWAP:      val(100),
			VolZ:      val(0),
		}
	}
	last := &hist[n-1]
	last.Close = 110
	last.EMA20 = val(105)
	last.EMA50 = val(100)
	last.RSI14 = val(70)
	last.VWAP = val(104)
	last.VolZ = val(3.0)
	last.ATR14 = val(2)
	return hist
}

func TestLoadParamsMissingFileReturnsDefaults(t *testing.T) {
	p, err := LoadParams(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultParams(), p)

	p, err = LoadParams("")
	require.NoError(t, err)
	assert.Equal(t, DefaultParams(), p)
}

func TestLoadParamsOverridesSingleKnob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("momentum:\n  vol_z_floor: 1.0\n"), 0o644))

	p, err := LoadParams(path)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Momentum.VolZFloor)
	// 未覆盖的保持默认
	assert.Equal(t, DefaultParams().TrendFollow, p.TrendFollow)
}

func TestLoadParamsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("momentum: [not a map"), 0o644))
	_, err := LoadParams(path)
	assert.Error(t, err)
}

func TestRegistryEnabledSelection(t *testing.T) {
	params := DefaultParams()

	all := NewRegistry(params, nil)
	assert.Equal(t, []string{StrategyTrendFollow, StrategyMeanReversion, StrategyMomentum}, all.Enabled())

	one := NewRegistry(params, []string{StrategyMomentum})
	assert.Equal(t, []string{StrategyMomentum}, one.Enabled())
}

func TestDetectorsNeedHistory(t *testing.T) {
	params := DefaultParams()
	short := momentumHist(10)

	assert.Nil(t, TrendFollow(params.TrendFollow)("AAPL", "15m", short, len(short)-1))
	assert.Nil(t, MeanReversion(params.MeanReversion)("AAPL", "15m", short, len(short)-1))
	assert.Nil(t, Momentum(params.Momentum)("AAPL", "15m", short, len(short)-1))
}

func TestMomentumFiresAndPassesFilter(t *testing.T) {
	params := DefaultParams()
	hist := momentumHist(params.Momentum.MinHistory)

	reg := NewRegistry(params, []string{StrategyMomentum})
	got := reg.RunLatest("AAPL", "15m", hist)
	require.Len(t, got, 1)
	sig := got[0]
	assert.Equal(t, StrategyMomentum, sig.Strategy)
	assert.Equal(t, types.ActionBuy, sig.Action)
	assert.Equal(t, 110.0, sig.Entry)
	assert.Less(t, sig.Stop, sig.Entry)
	assert.Greater(t, sig.Target, sig.Entry)
	assert.Equal(t, hist[len(hist)-1].CloseTime, sig.At)
	assert.Equal(t, true, sig.Rationale["improved"])
	assert.Equal(t, "range", sig.Rationale["regime"])
}

func TestMomentumQuietTapeStaysSilent(t *testing.T) {
	params := DefaultParams()
	hist := momentumHist(params.Momentum.MinHistory)
	hist[len(hist)-1].VolZ = val(1.0)

	assert.Nil(t, Momentum(params.Momentum)("AAPL", "15m", hist, len(hist)-1))
}

func TestQualityFilterConfidenceFloor(t *testing.T) {
	hist := momentumHist(60)
	sig := &types.Signal{
		Strategy:       StrategyMomentum,
		BaseConfidence: 0.65,
		Rationale:      types.Rationale{"improved": true},
	}
	assert.False(t, QualityFilter(sig, hist, len(hist)-1))

	sig.BaseConfidence = 0.75
	assert.True(t, QualityFilter(sig, hist, len(hist)-1))
}

func TestQualityFilterRequiresImproved(t *testing.T) {
	hist := momentumHist(60)
	sig := &types.Signal{Strategy: StrategyMomentum, BaseConfidence: 0.9}
	assert.False(t, QualityFilter(sig, hist, len(hist)-1))

	sig.Rationale = types.Rationale{"improved": false}
	assert.False(t, QualityFilter(sig, hist, len(hist)-1))
}

func TestQualityFilterTrendFollowBranch(t *testing.T) {
	hist := momentumHist(60)
	last := &hist[len(hist)-1]
	last.ADX14 = val(30)
	last.BBWidth = val(0.05)
	last.RSI14 = val(60)

	sig := &types.Signal{
		Strategy:       StrategyTrendFollow,
		BaseConfidence: 0.9,
		Rationale: types.Rationale{
			"improved":         true,
			"momentum_aligned": true,
			"volume_spike":     true,
		},
	}
	assert.True(t, QualityFilter(sig, hist, len(hist)-1))

	// ADX 不够
	last.ADX14 = val(20)
	assert.False(t, QualityFilter(sig, hist, len(hist)-1))
	last.ADX14 = val(30)

	// RSI 过热
	last.RSI14 = val(85)
	assert.False(t, QualityFilter(sig, hist, len(hist)-1))
	last.RSI14 = val(60)

	// 既无量能也无 MACD 确认
	sig.Rationale["volume_spike"] = false
	assert.False(t, QualityFilter(sig, hist, len(hist)-1))
	sig.Rationale["macd_bullish"] = true
	assert.True(t, QualityFilter(sig, hist, len(hist)-1))
}

func TestQualityFilterMeanReversionBranch(t *testing.T) {
	hist := momentumHist(60)
	last := &hist[len(hist)-1]
	last.ADX14 = val(15)
	last.RSI14 = val(25)

	sig := &types.Signal{
		Strategy:       StrategyMeanReversion,
		BaseConfidence: 0.75,
		Rationale:      types.Rationale{"improved": true},
	}
	assert.True(t, QualityFilter(sig, hist, len(hist)-1))

	// RSI 回到中性区
	last.RSI14 = val(50)
	assert.False(t, QualityFilter(sig, hist, len(hist)-1))

	// 趋势太强不做回归
	last.RSI14 = val(25)
	last.ADX14 = val(30)
	assert.False(t, QualityFilter(sig, hist, len(hist)-1))
}

func TestQualityFilterUnknownStrategyPasses(t *testing.T) {
	hist := momentumHist(60)
	sig := &types.Signal{
		Strategy:       "custom",
		BaseConfidence: 0.8,
		Rationale:      types.Rationale{"improved": true},
	}
	assert.True(t, QualityFilter(sig, hist, len(hist)-1))
}
