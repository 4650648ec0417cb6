package score

import (
	"math"

	"vela/internal/market"
	"vela/internal/regime"
	"vela/internal/types"
)

// featureWeight carries the per-action weight of one normalized feature.
type featureWeight struct {
	Buy  float64
	Sell float64
}

func (w featureWeight) for_(action types.Action) float64 {
	if action == types.ActionSell {
		return w.Sell
	}
	return w.Buy
}

// Feature names are part of the persisted scoring rationale.
const (
	featRSIBias     = "rsi_bias"
	featMACD        = "macd_momentum"
	featTrend       = "trend_strength"
	featVWAPPremium = "vwap_premium_atr"
	featBBRegime    = "bb_regime"
	featVolumeZ     = "volume_z"
)

var featureOrder = []string{featRSIBias, featMACD, featTrend, featVWAPPremium, featBBRegime, featVolumeZ}

var rangeWeights = map[string]featureWeight{
	featRSIBias:     {Buy: 0.6, Sell: -0.5},
	featMACD:        {Buy: 0.5, Sell: -0.6},
	featTrend:       {Buy: -0.3, Sell: -0.3},
	featVWAPPremium: {Buy: 0.25, Sell: 0.25},
	featBBRegime:    {Buy: 0.4, Sell: 0.4},
	featVolumeZ:     {Buy: 0.3, Sell: 0.3},
}

var trendWeights = map[string]featureWeight{
	featRSIBias:     {Buy: 0.3, Sell: -0.3},
	featMACD:        {Buy: 0.9, Sell: -0.9},
	featTrend:       {Buy: 0.8, Sell: 0.8},
	featVWAPPremium: {Buy: 0.4, Sell: 0.4},
	featBBRegime:    {Buy: 0.2, Sell: 0.2},
	featVolumeZ:     {Buy: 0.6, Sell: 0.6},
}

// Scorer turns a detector's base confidence into a calibrated probability.
// The decomposition (features, per-feature contributions, regime) is stored
// alongside the score so every number is reproducible after the fact.
type Scorer struct{}

func NewScorer() *Scorer { return &Scorer{} }

// Score computes the final confidence for sig given the feature snapshot at
// the as-of bar and an exogenous sentiment bias in [-1,1].
func (s *Scorer) Score(sig types.Signal, snap market.Snapshot, sentimentBias float64) types.ScoredSignal {
	features := extractFeatures(snap)
	mktRegime := regime.Classify(snap.ADX14, snap.MACDHist)
	weights := rangeWeights
	if mktRegime == regime.Trending {
		weights = trendWeights
	}

	logits := sig.BaseConfidence * 1.2
	contribs := make(map[string]float64, len(featureOrder)+2)
	for _, name := range featureOrder {
		c := weights[name].for_(sig.Action) * features[name]
		contribs[name] = c
		logits += c
	}

	rsi := snap.RSI14.Or(50)
	if (sig.Action == types.ActionBuy && rsi < 35) || (sig.Action == types.ActionSell && rsi > 65) {
		contribs["rsi_extreme"] = 0.2
		logits += 0.2
	}
	if sentimentBias != 0 {
		c := sentimentBias * 0.15
		if sig.Action == types.ActionSell {
			c = -c
		}
		contribs["sentiment"] = c
		logits += c
	}

	conf := clamp01(sigmoid(logits))
	return types.ScoredSignal{
		Signal:     sig,
		Confidence: conf,
		Scoring: types.Rationale{
			"base":     sig.BaseConfidence,
			"regime":   string(mktRegime),
			"features": features,
			"contribs": contribs,
		},
	}
}

func extractFeatures(snap market.Snapshot) map[string]float64 {
	f := map[string]float64{
		featRSIBias:  (snap.RSI14.Or(50) - 50) / 50,
		featMACD:     clamp(snap.MACDHist.Or(0), -1, 1),
		featTrend:    regime.TrendStrength(snap.ADX14),
		featBBRegime: clamp(snap.BBWidth.Or(0.05)/0.1, 0, 1),
		featVolumeZ:  snap.VolZ.Or(0),
	}
	f[featVWAPPremium] = 0
	if snap.VWAP.OK && snap.ATR14.OK && snap.ATR14.V > 0 {
		f[featVWAPPremium] = (snap.Close - snap.VWAP.V) / snap.ATR14.V
	}
	return f
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	if math.IsInf(e, 0) || math.IsNaN(e) {
		return 0
	}
	return e / (1 + e)
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
