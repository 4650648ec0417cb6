package risk

import (
	"context"
	"fmt"
	"math"

	"vela/internal/market"
	"vela/internal/store"
	"vela/internal/types"
)

// Engine evaluates risk limits against live portfolio and market state.
// The arithmetic lives in pure functions; Engine only assembles their inputs
// from the stores.
type Engine struct {
	store   *store.Store
	candles *market.CandleStore
}

func NewEngine(st *store.Store, candles *market.CandleStore) *Engine {
	return &Engine{store: st, candles: candles}
}

func (e *Engine) Limits(ctx context.Context) (types.RiskLimits, error) {
	return e.store.GetRiskLimits(ctx)
}

func (e *Engine) UpdateLimits(ctx context.Context, l types.RiskLimits) error {
	return e.store.UpdateRiskLimits(ctx, l)
}

func (e *Engine) Pause(ctx context.Context) error  { return e.store.SetPaused(ctx, true) }
func (e *Engine) Resume(ctx context.Context) error { return e.store.SetPaused(ctx, false) }

// SuggestSize computes a kelly-damped quantity from the per-trade capital
// cap. ATR is the per-share risk proxy; without one, 1% of price stands in.
// The result is floored to a whole number of lots and never negative.
func SuggestSize(limits types.RiskLimits, equity, price, atr, lotSize float64) float64 {
	if equity <= 0 || price <= 0 {
		return 0
	}
	if lotSize <= 0 {
		lotSize = 1
	}
	perTradeCap := equity * limits.MaxCapitalPerTradePct / 100
	riskPerShare := atr
	if riskPerShare <= 0 {
		riskPerShare = price * 0.01
	}
	kelly := clamp(limits.KellyFraction, 0.1, 1.0)
	qty := perTradeCap * kelly / math.Max(1e-6, riskPerShare)
	lots := math.Floor(qty / lotSize)
	if lots < 0 {
		lots = 0
	}
	return lots * lotSize
}

// SuggestPositionSize resolves equity, limits and lot size from the stores
// and delegates to SuggestSize.
func (e *Engine) SuggestPositionSize(ctx context.Context, symbol string, price, atr float64) (float64, error) {
	limits, err := e.Limits(ctx)
	if err != nil {
		return 0, err
	}
	equity, err := e.store.LatestEquity(ctx)
	if err != nil {
		return 0, err
	}
	inst, err := e.store.GetInstrument(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return SuggestSize(limits, equity, price, atr, inst.LotSize), nil
}

// BlockOrder applies the kill-switch checks in priority order: manual pause,
// then daily drawdown, then the per-symbol circuit breaker. The first hit
// wins and its reason is returned verbatim for the API layer.
func BlockOrder(limits types.RiskLimits, dailyPnLPct, lastPrice, prevDailyClose float64) (bool, string) {
	if limits.PauseAll {
		return true, "Trading paused"
	}
	if limits.MaxDailyLossPct > 0 && dailyPnLPct <= -limits.MaxDailyLossPct {
		return true, "Daily drawdown limit exceeded"
	}
	if limits.CircuitBreakerPct > 0 && prevDailyClose > 0 && lastPrice > 0 {
		movePct := math.Abs((lastPrice-prevDailyClose)/prevDailyClose) * 100
		if movePct >= limits.CircuitBreakerPct {
			return true, fmt.Sprintf("Circuit breaker %.2f%% triggered", movePct)
		}
	}
	return false, ""
}

// ShouldBlockOrder gathers daily PnL and the previous daily close for symbol
// and runs BlockOrder. Missing market data degrades to "no circuit check"
// rather than blocking.
func (e *Engine) ShouldBlockOrder(ctx context.Context, symbol string) (bool, string, error) {
	limits, err := e.Limits(ctx)
	if err != nil {
		return false, "", err
	}
	dailyPnLPct := e.dailyPnLPct(ctx)

	var lastPrice, prevClose float64
	if e.candles != nil {
		if daily, err := e.candles.LatestCandles(ctx, symbol, "1d", 2); err == nil && len(daily) >= 2 {
			prevClose = daily[len(daily)-2].Close
		}
		if intraday, err := e.candles.LatestCandles(ctx, symbol, "1m", 1); err == nil && len(intraday) == 1 {
			lastPrice = intraday[0].Close
		}
	}
	blocked, reason := BlockOrder(limits, dailyPnLPct, lastPrice, prevClose)
	return blocked, reason, nil
}

// dailyPnLPct compares the latest equity checkpoint against the first one of
// the current day. No checkpoints means no measurable drawdown.
func (e *Engine) dailyPnLPct(ctx context.Context) float64 {
	latest, err := e.store.LatestEquity(ctx)
	if err != nil || latest <= 0 {
		return 0
	}
	open, err := e.store.DayOpenEquity(ctx)
	if err != nil || open <= 0 {
		return 0
	}
	return (latest - open) / open * 100
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
