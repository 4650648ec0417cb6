package ledger

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"vela/internal/logger"
	"vela/internal/store"
	"vela/internal/types"
)

const pnlScale = 8

// Ledger owns all position mutation. Every fill flows through ApplyFill so
// average price and realized PnL can never drift apart. Cost-basis math runs
// on decimals and is rounded to 8dp before persisting.
type Ledger struct {
	store *store.Store

	// AllowShort permits a sell to flip a long into a short. When false,
	// sells are clamped to current holdings and the order is downgraded to
	// a partial fill.
	AllowShort bool

	locks [64]sync.Mutex
}

func New(st *store.Store) *Ledger {
	return &Ledger{store: st}
}

func (l *Ledger) lockFor(symbol string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return &l.locks[h.Sum32()%uint32(len(l.locks))]
}

// ApplyFill folds one filled (or partially filled) order into the position
// for its symbol, records the resulting trade, and returns the updated
// position. The order may be mutated: sells without shorting enabled are
// clamped to holdings (zero-filled when flat), so callers must persist the
// order only after this returns.
func (l *Ledger) ApplyFill(ctx context.Context, order *types.Order) (types.Position, error) {
	if order == nil {
		return types.Position{}, fmt.Errorf("ledger: order is nil")
	}
	if order.Status == types.OrderStatusRejected || order.FilledQty <= 0 {
		return types.Position{}, fmt.Errorf("ledger: order %s has no fill to apply", order.ID)
	}

	mu := l.lockFor(order.Symbol)
	mu.Lock()
	defer mu.Unlock()

	pos, _, err := l.store.GetPosition(ctx, order.Symbol)
	if err != nil {
		return types.Position{}, err
	}
	if pos.Symbol == "" {
		pos.Symbol = order.Symbol
	}

	fillQty := order.FilledQty
	if order.Side == types.ActionSell && !l.AllowShort {
		// Clamp the sell to what we actually hold. Nothing held means the
		// whole order zero-fills; that is a recorded no-op, not an error.
		if pos.Quantity <= 0 {
			logger.Warnf("ledger: sell %s with no long position, zero-filled", order.Symbol)
			order.FilledQty = 0
			order.FillPrice = 0
			order.SlippageBps = 0
			order.Status = types.OrderStatusRejected
			if order.Notes == nil {
				order.Notes = map[string]any{}
			}
			order.Notes["reason"] = "No position to sell"
			return pos, nil
		}
		if fillQty > pos.Quantity {
			logger.Warnf("ledger: sell %s qty %.4f clamped to holdings %.4f", order.Symbol, fillQty, pos.Quantity)
			fillQty = pos.Quantity
			order.FilledQty = fillQty
			order.Status = types.OrderStatusPartial
		}
	}

	tradeQty := fillQty
	if order.Side == types.ActionSell {
		tradeQty = -fillQty
	}
	next := applyTrade(pos, order.FillPrice, tradeQty)
	next.Timeframe = pos.Timeframe
	if order.Side == types.ActionBuy && order.Timeframe != "" {
		next.Timeframe = order.Timeframe
	}
	if next.Flat() {
		next.Timeframe = ""
	}
	next.UpdatedAt = order.At
	if next.UpdatedAt == 0 {
		next.UpdatedAt = time.Now().UnixMilli()
	}

	if err := l.store.UpsertPosition(ctx, next); err != nil {
		return types.Position{}, err
	}
	trade := types.Trade{
		OrderID:  order.ID,
		Symbol:   order.Symbol,
		Side:     order.Side,
		Price:    order.FillPrice,
		Quantity: fillQty,
		At:       next.UpdatedAt,
	}
	if err := l.store.InsertTrade(ctx, trade); err != nil {
		return types.Position{}, err
	}
	// 每笔成交后推进权益检查点，日内回撤闸门依赖它。
	if equity, err := l.store.LatestEquity(ctx); err == nil {
		equity += next.RealizedPnL - pos.RealizedPnL
		if err := l.store.SaveEquityCheckpoint(ctx, equity, next.UpdatedAt); err != nil {
			logger.Warnf("ledger: equity checkpoint for %s failed: %v", order.Symbol, err)
		}
	}
	return next, nil
}

// applyTrade is the pure cost-basis transition. tradeQty is signed
// (buys positive, sells negative).
func applyTrade(pos types.Position, fillPrice, tradeQty float64) types.Position {
	curr := decimal.NewFromFloat(pos.Quantity)
	avg := decimal.NewFromFloat(pos.AvgPrice)
	realized := decimal.NewFromFloat(pos.RealizedPnL)
	fill := decimal.NewFromFloat(fillPrice)
	trade := decimal.NewFromFloat(tradeQty)

	next := pos
	switch {
	case curr.IsZero():
		next.Quantity = tradeQty
		next.AvgPrice = fillPrice
	case curr.Sign() == trade.Sign():
		// Adding in the same direction re-averages the entry.
		newQty := curr.Add(trade)
		denom := newQty.Abs()
		if denom.IsZero() {
			denom = decimal.NewFromInt(1)
		}
		newAvg := avg.Mul(curr.Abs()).Add(fill.Mul(trade.Abs())).Div(denom)
		next.Quantity, _ = newQty.Float64()
		next.AvgPrice, _ = newAvg.Round(pnlScale).Float64()
	default:
		// Reducing or flipping: realize PnL on the closed portion.
		closed := decimal.Min(curr.Abs(), trade.Abs())
		perUnit := fill.Sub(avg)
		if curr.Sign() < 0 {
			perUnit = perUnit.Neg()
		}
		realized = realized.Add(perUnit.Mul(closed))
		next.RealizedPnL, _ = realized.Round(pnlScale).Float64()

		remaining := curr.Add(trade)
		next.Quantity, _ = remaining.Float64()
		if remaining.IsZero() {
			next.AvgPrice = 0
		} else if remaining.Sign() != curr.Sign() {
			// Flipped through flat: the surviving exposure was opened at
			// this fill.
			next.AvgPrice = fillPrice
		}
	}
	return next
}

// MarkToMarket refreshes the unrealized PnL column on a position snapshot.
func MarkToMarket(pos types.Position, lastPrice float64) types.Position {
	if pos.Flat() || lastPrice <= 0 {
		pos.UnrealizedPnL = 0
		return pos
	}
	diff := decimal.NewFromFloat(lastPrice).Sub(decimal.NewFromFloat(pos.AvgPrice))
	upnl := diff.Mul(decimal.NewFromFloat(pos.Quantity))
	pos.UnrealizedPnL, _ = upnl.Round(pnlScale).Float64()
	return pos
}
