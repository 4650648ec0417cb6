package strategy

import (
	"math"

	"vela/internal/market"
	"vela/internal/regime"
	"vela/internal/types"
)

// MeanReversion fades RSI extremes outside the Bollinger bands when trend
// strength is low. The thresholds are deliberately restrictive so it only
// triggers in quiet, clearly range-bound conditions.
func MeanReversion(p MeanReversionParams) DetectFunc {
	return func(symbol, timeframe string, hist []market.Snapshot, asOf int) *types.Signal {
		if asOf < 0 || asOf >= len(hist) || asOf+1 < p.MinHistory {
			return nil
		}
		last := hist[asOf]
		for _, v := range []market.Value{last.RSI14, last.BBUpper, last.BBLower, last.ADX14, last.ATR14, last.VolAvg20} {
			if !v.OK {
				return nil
			}
		}
		quiet := last.ADX14.V < p.ADXCeiling &&
			last.ATR14.V < last.Close*p.ATRCeilPct &&
			last.Volume > last.VolAvg20.V*p.VolumeMult
		if !quiet {
			return nil
		}
		mktRegime := regime.Classify(last.ADX14, last.MACDHist)

		if last.RSI14.V < p.RSIOversold && last.Close < last.BBLower.V*0.995 {
			entry := last.Close
			target := entry * 1.05
			if last.BBMid.OK {
				target = last.BBMid.V
			}
			return &types.Signal{
				Symbol:         symbol,
				Strategy:       StrategyMeanReversion,
				Action:         types.ActionBuy,
				Timeframe:      timeframe,
				Entry:          entry,
				Stop:           entry - p.StopATRMult*last.ATR14.V,
				Target:         target,
				BaseConfidence: math.Min(0.8, 0.6+(p.RSIOversold-last.RSI14.V)*0.02),
				Rationale: types.Rationale{
					"rsi":               last.RSI14.V,
					"bb_breakout":       true,
					"adx":               last.ADX14.V,
					"ultra_restrictive": true,
					"regime":            string(mktRegime),
					"improved":          true,
				},
				At: last.CloseTime,
			}
		}

		if last.RSI14.V > p.RSIOverbuy && last.Close > last.BBUpper.V*1.005 {
			entry := last.Close
			target := entry * 0.95
			if last.BBMid.OK {
				target = last.BBMid.V
			}
			return &types.Signal{
				Symbol:         symbol,
				Strategy:       StrategyMeanReversion,
				Action:         types.ActionSell,
				Timeframe:      timeframe,
				Entry:          entry,
				Stop:           entry + p.StopATRMult*last.ATR14.V,
				Target:         target,
				BaseConfidence: math.Min(0.8, 0.6+(last.RSI14.V-p.RSIOverbuy)*0.02),
				Rationale: types.Rationale{
					"rsi":               last.RSI14.V,
					"bb_breakout":       true,
					"adx":               last.ADX14.V,
					"ultra_restrictive": true,
					"regime":            string(mktRegime),
					"improved":          true,
				},
				At: last.CloseTime,
			}
		}
		return nil
	}
}
