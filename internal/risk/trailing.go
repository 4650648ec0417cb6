package risk

import (
	"context"

	"github.com/shopspring/decimal"

	"vela/internal/logger"
	"vela/internal/market"
	"vela/internal/store"
)

const (
	trailingLookbackBars = 100
	trailingATRPeriod    = 14
	trailingChanWindow   = 20
	trailingATRMult      = "2.0"
	trailingDefaultTF    = "15m"
)

// ExitFunc closes a position at market. qty is signed as held (>0 long).
// Wired to the order simulator + ledger by the app, which keeps this package
// free of an execution dependency.
type ExitFunc func(ctx context.Context, symbol string, qty float64, timeframe string, candles []market.Candle) error

// TrailingStops sweeps open positions and exits any that have fallen through
// a chandelier-style trailing level: highest close of the last 20 bars minus
// 2 ATR for longs, mirrored for shorts.
type TrailingStops struct {
	store   *store.Store
	candles *market.CandleStore
	exit    ExitFunc
}

func NewTrailingStops(st *store.Store, candles *market.CandleStore, exit ExitFunc) *TrailingStops {
	return &TrailingStops{store: st, candles: candles, exit: exit}
}

// Apply runs one sweep and returns the number of positions exited.
// Per-symbol failures are logged and skipped so one bad symbol cannot stall
// the rest of the sweep.
func (t *TrailingStops) Apply(ctx context.Context) (int, error) {
	positions, err := t.store.ListPositions(ctx)
	if err != nil {
		return 0, err
	}
	exits := 0
	for _, pos := range positions {
		if pos.Flat() {
			continue
		}
		tf := pos.Timeframe
		if tf == "" {
			tf = trailingDefaultTF
		}
		candles, err := t.candles.LatestCandles(ctx, pos.Symbol, tf, trailingLookbackBars)
		if err != nil {
			logger.Warnf("trailing: load candles %s@%s: %v", pos.Symbol, tf, err)
			continue
		}
		level, ok := TrailingLevel(candles, pos.Quantity > 0)
		if !ok {
			continue
		}
		lastClose := decimal.NewFromFloat(candles[len(candles)-1].Close)
		hit := false
		if pos.Quantity > 0 {
			hit = lastClose.LessThanOrEqual(level)
		} else {
			hit = lastClose.GreaterThanOrEqual(level)
		}
		if !hit {
			continue
		}
		if err := t.exit(ctx, pos.Symbol, pos.Quantity, tf, candles); err != nil {
			logger.Errorf("trailing: exit %s: %v", pos.Symbol, err)
			continue
		}
		lvl, _ := level.Float64()
		logger.Infof("trailing: %s stopped out at level %.4f", pos.Symbol, lvl)
		exits++
	}
	return exits, nil
}

// TrailingLevel computes the stop level at the latest bar, or ok=false when
// the windows have not warmed up yet.
func TrailingLevel(candles []market.Candle, long bool) (decimal.Decimal, bool) {
	n := len(candles)
	if n == 0 {
		return decimal.Decimal{}, false
	}
	atrs := market.TrueRangeATR(candles, trailingATRPeriod)
	closes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
	}
	var chans []market.Value
	if long {
		chans = market.RollingMax(closes, trailingChanWindow)
	} else {
		chans = market.RollingMin(closes, trailingChanWindow)
	}
	last := n - 1
	if !atrs[last].OK || !chans[last].OK {
		return decimal.Decimal{}, false
	}
	mult := decimal.RequireFromString(trailingATRMult)
	atr := decimal.NewFromFloat(atrs[last].V)
	anchor := decimal.NewFromFloat(chans[last].V)
	if long {
		return anchor.Sub(mult.Mul(atr)), true
	}
	return anchor.Add(mult.Mul(atr)), true
}
