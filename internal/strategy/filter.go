package strategy

import (
	"vela/internal/market"
	"vela/internal/types"
)

const qualityConfidenceFloor = 0.7

// QualityFilter re-checks a freshly detected signal against the as-of bar.
// Detectors are intentionally loose about their own confidence; the filter
// is the single place where low-conviction output gets dropped.
func QualityFilter(sig *types.Signal, hist []market.Snapshot, asOf int) bool {
	if sig == nil || asOf < 0 || asOf >= len(hist) {
		return false
	}
	if sig.BaseConfidence < qualityConfidenceFloor {
		return false
	}
	if !rationaleBool(sig.Rationale, "improved") {
		return false
	}
	last := hist[asOf]
	switch sig.Strategy {
	case StrategyTrendFollow:
		adx := last.ADX14.Or(0)
		rsi := last.RSI14.Or(50)
		if adx < 25 || last.BBWidth.Or(0) <= 0.015 {
			return false
		}
		if rsi <= 45 || rsi >= 80 {
			return false
		}
		if !rationaleBool(sig.Rationale, "momentum_aligned") {
			return false
		}
		return rationaleBool(sig.Rationale, "volume_spike") || rationaleBool(sig.Rationale, "macd_bullish")
	case StrategyMeanReversion:
		rsi := last.RSI14.Or(50)
		if last.ADX14.Or(100) >= 25 {
			return false
		}
		return rsi < 30 || rsi > 70
	case StrategyMomentum:
		return last.VolZ.Or(0) > 2.0
	default:
		return true
	}
}

func rationaleBool(r types.Rationale, key string) bool {
	if r == nil {
		return false
	}
	b, _ := r[key].(bool)
	return b
}
