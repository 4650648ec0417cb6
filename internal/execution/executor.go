package execution

import (
	"context"
	"fmt"
	"math"

	"vela/internal/ledger"
	"vela/internal/logger"
	"vela/internal/market"
	"vela/internal/risk"
	"vela/internal/store"
	"vela/internal/types"
)

// MaxOrderQty caps a single simulated order. Shared by the live path and the
// backtest replay.
const MaxOrderQty = 10000

// Per-timeframe risk multipliers. Shorter timeframes get smaller allocations
// since their signals churn more.
var portfolioTFMult = map[string]float64{
	"1m": 0.5, "5m": 0.75, "15m": 1.0, "1h": 1.25, "1d": 1.5,
}

// Fallback notional multipliers when no equity figure is available.
var fallbackTFMult = map[string]float64{
	"1m": 0.3, "5m": 0.5, "15m": 0.8, "1h": 1.0, "1d": 1.2,
}

// TargetNotional sizes the capital to commit. With a known equity the
// base risk scales with confidence (1% at 0.5, capped at 2%); without one a
// flat 10k notional is scaled by timeframe.
func TargetNotional(equity, confidence float64, timeframe string) float64 {
	if equity > 0 {
		base := 0.01 + (confidence-0.5)*0.01
		if base > 0.02 {
			base = 0.02
		}
		if base < 0 {
			base = 0
		}
		mult, ok := portfolioTFMult[timeframe]
		if !ok {
			mult = 0.75
		}
		return equity * base * mult
	}
	mult, ok := fallbackTFMult[timeframe]
	if !ok {
		mult = 0.5
	}
	return 10000 * mult
}

// RoundQuantity rounds with magnitude-dependent precision: whole shares in
// the hundreds, down to 4dp for fractional quantities.
func RoundQuantity(q float64) float64 {
	abs := math.Abs(q)
	switch {
	case abs >= 100:
		return math.Round(q)
	case abs >= 10:
		return math.Round(q*10) / 10
	case abs >= 1:
		return math.Round(q*100) / 100
	default:
		return math.Round(q*10000) / 10000
	}
}

// FloorToLot rounds qty down to a whole number of lots. A lot size of zero or
// less counts as 1; anything below one lot comes back as 0.
func FloorToLot(qty, lotSize float64) float64 {
	if lotSize <= 0 {
		lotSize = 1
	}
	if qty <= 0 {
		return 0
	}
	return math.Floor(qty/lotSize) * lotSize
}

// SizeForNotional is the primary sizing path shared by live execution and the
// backtest replay: confidence-scaled notional, magnitude rounding, lot floor.
func SizeForNotional(equity, confidence float64, timeframe string, price, lotSize float64) float64 {
	if price <= 0 {
		return 0
	}
	return FloorToLot(RoundQuantity(TargetNotional(equity, confidence, timeframe)/price), lotSize)
}

// Executor runs the live execution path: precedence check, kill switches,
// sizing, simulated fill, ledger update. The backtest loop composes the same
// pieces directly against historical candles.
type Executor struct {
	store      *store.Store
	candles    *market.CandleStore
	riskEngine *risk.Engine
	sim        *Simulator
	book       *ledger.Ledger
	precedence risk.PrecedenceConfig
}

func NewExecutor(st *store.Store, candles *market.CandleStore, riskEngine *risk.Engine, sim *Simulator, book *ledger.Ledger, precedence risk.PrecedenceConfig) *Executor {
	return &Executor{
		store:      st,
		candles:    candles,
		riskEngine: riskEngine,
		sim:        sim,
		book:       book,
		precedence: precedence,
	}
}

// SizeOrder converts a scored signal into a lot-aligned order quantity.
// A non-positive or oversized primary result falls back to the kelly-damped
// risk-budget suggestion, which never comes back below one lot.
func (x *Executor) SizeOrder(ctx context.Context, sig types.ScoredSignal, price, atr float64) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("price must be positive")
	}
	equity, err := x.store.LatestEquity(ctx)
	if err != nil {
		return 0, err
	}
	inst, err := x.store.GetInstrument(ctx, sig.Symbol)
	if err != nil {
		return 0, err
	}
	lot := inst.LotSize
	if lot <= 0 {
		lot = 1
	}

	qty := SizeForNotional(equity, sig.Confidence, sig.Timeframe, price, lot)
	if qty <= 0 || qty > MaxOrderQty {
		suggested, err := x.riskEngine.SuggestPositionSize(ctx, sig.Symbol, price, atr)
		if err != nil {
			return 0, err
		}
		qty = FloorToLot(math.Min(suggested, MaxOrderQty), lot)
		if qty < lot {
			qty = lot
		}
	}
	return qty, nil
}

// ApplyFillForOrder books a fill that was simulated elsewhere (manual orders
// from the API). The ledger may clamp the fill; callers get the updated
// position back.
func (x *Executor) ApplyFillForOrder(ctx context.Context, order *types.Order) (types.Position, error) {
	return x.book.ApplyFill(ctx, order)
}

// ExitAtMarket closes a held quantity (signed, >0 long) at market against
// the supplied candles. Matches the trailing-stop exit hook signature.
func (x *Executor) ExitAtMarket(ctx context.Context, symbol string, qty float64, timeframe string, candles []market.Candle) error {
	side := types.ActionSell
	absQty := qty
	if qty < 0 {
		side = types.ActionBuy
		absQty = -qty
	}
	order, err := x.sim.Simulate(Request{
		Symbol:    symbol,
		Side:      side,
		Type:      types.OrderTypeMarket,
		Quantity:  absQty,
		Timeframe: timeframe,
	}, candles)
	if err != nil {
		return err
	}
	// 先入账再落单，账本可能钳制成交量或降级状态。
	if order.Status != types.OrderStatusRejected {
		if _, err := x.book.ApplyFill(ctx, &order); err != nil {
			return err
		}
	}
	return x.store.InsertOrder(ctx, order)
}

// Result describes what happened to one signal.
type Result struct {
	Executed bool         `json:"executed"`
	Reason   string       `json:"reason,omitempty"`
	Order    *types.Order `json:"order,omitempty"`
}

// ExecuteSignal pushes one scored signal through the whole live path.
// A skip (blocked, precedence, rejection) is not an error.
func (x *Executor) ExecuteSignal(ctx context.Context, sig types.ScoredSignal) (Result, error) {
	blocked, reason, err := x.riskEngine.ShouldBlockOrder(ctx, sig.Symbol)
	if err != nil {
		return Result{}, err
	}
	if blocked {
		return Result{Reason: reason}, nil
	}

	pos, _, err := x.store.GetPosition(ctx, sig.Symbol)
	if err != nil {
		return Result{}, err
	}
	if ok, why := risk.ShouldExecuteSignal(x.precedence, sig.Signal, pos); !ok {
		return Result{Reason: why}, nil
	}

	candles, err := x.candles.LatestCandles(ctx, sig.Symbol, sig.Timeframe, bookDepthBars)
	if err != nil {
		return Result{}, err
	}
	if len(candles) == 0 {
		return Result{Reason: "no_market_data"}, nil
	}
	price := candles[len(candles)-1].Close
	atr := lastATR(candles)

	qty, err := x.SizeOrder(ctx, sig, price, atr)
	if err != nil {
		return Result{}, err
	}
	if sig.Action == types.ActionSell && qty > pos.Quantity {
		qty = pos.Quantity
	}
	if qty <= 0 {
		return Result{Reason: "zero_quantity"}, nil
	}

	order, err := x.sim.Simulate(Request{
		Symbol:    sig.Symbol,
		Side:      sig.Action,
		Type:      types.OrderTypeMarket,
		Quantity:  qty,
		Timeframe: sig.Timeframe,
	}, candles)
	if err != nil {
		return Result{}, err
	}
	// Book the fill before persisting: the ledger may clamp the quantity or
	// downgrade the status, and the stored row must reflect the final state.
	if order.Status != types.OrderStatusRejected {
		if _, err := x.book.ApplyFill(ctx, &order); err != nil {
			return Result{}, err
		}
	}
	if err := x.store.InsertOrder(ctx, order); err != nil {
		return Result{}, err
	}
	if order.Status == types.OrderStatusRejected {
		reason, _ := order.Notes["reason"].(string)
		return Result{Reason: reason, Order: &order}, nil
	}
	logger.Infof("executed %s %s x%.4f @ %.4f (%s)", sig.Action, sig.Symbol, order.FilledQty, order.FillPrice, sig.Strategy)
	return Result{Executed: true, Order: &order}, nil
}
