package strategy

import (
	"math"

	"vela/internal/market"
	"vela/internal/regime"
	"vela/internal/types"
)

// Momentum chases volume-z breakouts through VWAP in the direction of the
// EMA stack.
func Momentum(p MomentumParams) DetectFunc {
	return func(symbol, timeframe string, hist []market.Snapshot, asOf int) *types.Signal {
		if asOf < 0 || asOf >= len(hist) || asOf+1 < p.MinHistory {
			return nil
		}
		last := hist[asOf]
		for _, v := range []market.Value{last.VWAP, last.EMA20, last.EMA50, last.VolZ, last.RSI14, last.ATR14} {
			if !v.OK {
				return nil
			}
		}
		volZ := last.VolZ.V
		if volZ <= p.VolZFloor || last.ATR14.V <= last.Close*p.ATRFloorPct {
			return nil
		}
		mktRegime := regime.Classify(last.ADX14, last.MACDHist)
		conf := math.Min(0.9, 0.7+math.Min(volZ-p.VolZFloor, 1.5)*0.1)

		if last.Close > last.VWAP.V && last.EMA20.V > last.EMA50.V &&
			last.Close > last.EMA20.V*1.005 && last.RSI14.V > p.RSIFloor {
			entry := last.Close
			stop := entry - p.StopATRMult*last.ATR14.V
			return &types.Signal{
				Symbol:         symbol,
				Strategy:       StrategyMomentum,
				Action:         types.ActionBuy,
				Timeframe:      timeframe,
				Entry:          entry,
				Stop:           stop,
				Target:         entry + p.RewardMult*(entry-stop),
				BaseConfidence: conf,
				Rationale: types.Rationale{
					"vol_z":             volZ,
					"vwap_breakout":     true,
					"ultra_restrictive": true,
					"regime":            string(mktRegime),
					"improved":          true,
				},
				At: last.CloseTime,
			}
		}

		if last.Close < last.VWAP.V && last.EMA20.V < last.EMA50.V &&
			last.Close < last.EMA20.V*0.995 && last.RSI14.V < p.RSICeiling {
			entry := last.Close
			stop := entry + p.StopATRMult*last.ATR14.V
			return &types.Signal{
				Symbol:         symbol,
				Strategy:       StrategyMomentum,
				Action:         types.ActionSell,
				Timeframe:      timeframe,
				Entry:          entry,
				Stop:           stop,
				Target:         entry - p.RewardMult*(stop-entry),
				BaseConfidence: conf,
				Rationale: types.Rationale{
					"vol_z":             volZ,
					"vwap_breakout":     true,
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
