package regime

import (
	"math"

	"vela/internal/market"
)

// Regime tags the instantaneous market state. The same classifier feeds both
// the detectors' rationale and the scorer's weight selection so the
// trending/ranging decision is made in exactly one place.
type Regime string

const (
	Trending Regime = "trend"
	Ranging  Regime = "range"
)

const (
	trendStrengthFloor = 0.6
	momentumFloor      = 0.2
)

// TrendStrength normalizes ADX to [0,1].
func TrendStrength(adx14 market.Value) float64 {
	return clamp(adx14.Or(0)/50.0, 0, 1)
}

// MACDMomentum clamps the MACD histogram to [-1,1].
func MACDMomentum(macdHist market.Value) float64 {
	return clamp(macdHist.Or(0), -1, 1)
}

// Classify returns Trending when the trend is strong and momentum confirms,
// Ranging otherwise. Missing inputs degrade to Ranging.
func Classify(adx14, macdHist market.Value) Regime {
	if TrendStrength(adx14) > trendStrengthFloor && math.Abs(MACDMomentum(macdHist)) > momentumFloor {
		return Trending
	}
	return Ranging
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
