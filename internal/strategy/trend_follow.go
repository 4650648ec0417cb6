package strategy

import (
	"math"

	"vela/internal/market"
	"vela/internal/regime"
	"vela/internal/types"
)

// TrendFollow fires on an EMA20/EMA50 cross confirmed by ADX, RSI, MACD,
// VWAP, volume and band width. Every condition must hold at the as-of bar,
// so the detector stays quiet most of the time.
func TrendFollow(p TrendFollowParams) DetectFunc {
	return func(symbol, timeframe string, hist []market.Snapshot, asOf int) *types.Signal {
		if asOf < 1 || asOf >= len(hist) || asOf+1 < p.MinHistory {
			return nil
		}
		last, prev := hist[asOf], hist[asOf-1]
		for _, v := range []market.Value{
			last.EMA20, last.EMA50, prev.EMA20, prev.EMA50,
			last.ADX14, last.RSI14, prev.RSI14,
			last.MACD, last.MACDSignal, last.MACDHist,
			last.VWAP, last.BBWidth, last.ATR14,
		} {
			if !v.OK {
				return nil
			}
		}

		crossedUp := prev.EMA20.V <= prev.EMA50.V && last.EMA20.V > last.EMA50.V
		crossedDn := prev.EMA20.V >= prev.EMA50.V && last.EMA20.V < last.EMA50.V
		adxStrong := last.ADX14.V >= p.ADXFloor
		rsiRising := last.RSI14.V > prev.RSI14.V && last.RSI14.V >= 55 && last.RSI14.V <= 75
		macdBullish := last.MACD.V > last.MACDSignal.V && last.MACDHist.V > 0
		macdBearish := last.MACD.V < last.MACDSignal.V && last.MACDHist.V < 0
		volumeSpike := last.VolAvg20.OK && last.Volume > last.VolAvg20.V*p.VolumeSpikeMult
		bandsWide := last.BBWidth.V > p.BBWidthFloor
		atrAlive := last.ATR14.V > last.Close*p.ATRFloorPct
		mktRegime := regime.Classify(last.ADX14, last.MACDHist)

		if crossedUp && adxStrong && rsiRising && macdBullish &&
			last.Close > last.VWAP.V &&
			last.BBUpper.OK && last.Close >= last.BBUpper.V*0.995 &&
			volumeSpike && bandsWide && atrAlive {
			entry := last.Close
			stop := entry - p.StopATRMult*last.ATR14.V
			conf := 0.8 + (last.ADX14.V-p.ADXFloor)*0.005
			if volumeSpike {
				conf += 0.1
			}
			if macdBullish {
				conf += 0.1
			}
			return &types.Signal{
				Symbol:         symbol,
				Strategy:       StrategyTrendFollow,
				Action:         types.ActionBuy,
				Timeframe:      timeframe,
				Entry:          entry,
				Stop:           stop,
				Target:         entry + p.RewardMult*(entry-stop),
				BaseConfidence: math.Min(0.95, conf),
				Rationale: types.Rationale{
					"ema_cross":        "20>50",
					"adx":              last.ADX14.V,
					"rsi":              last.RSI14.V,
					"macd_bullish":     true,
					"vwap_breakout":    true,
					"volume_spike":     volumeSpike,
					"bb_breakout":      true,
					"momentum_aligned": true,
					"regime":           string(mktRegime),
					"improved":         true,
				},
				At: last.CloseTime,
			}
		}

		if crossedDn && adxStrong && rsiRising && macdBearish &&
			last.Close < last.VWAP.V &&
			volumeSpike && bandsWide && atrAlive {
			entry := last.Close
			stop := entry + p.StopATRMult*last.ATR14.V
			conf := 0.8 + (last.ADX14.V-p.ADXFloor)*0.005
			if volumeSpike {
				conf += 0.1
			}
			return &types.Signal{
				Symbol:         symbol,
				Strategy:       StrategyTrendFollow,
				Action:         types.ActionSell,
				Timeframe:      timeframe,
				Entry:          entry,
				Stop:           stop,
				Target:         entry - p.RewardMult*(stop-entry),
				BaseConfidence: math.Min(0.95, conf),
				Rationale: types.Rationale{
					"ema_cross":        "20<50",
					"adx":              last.ADX14.V,
					"rsi":              last.RSI14.V,
					"macd_bearish":     true,
					"vwap_breakout":    false,
					"volume_spike":     volumeSpike,
					"momentum_aligned": true,
					"regime":           string(mktRegime),
					"improved":         true,
				},
				At: last.CloseTime,
			}
		}
		return nil
	}
}
