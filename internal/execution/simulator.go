package execution

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"vela/internal/market"
	"vela/internal/types"
)

const (
	bookDepthBars  = 100
	volWindowBars  = 30
	maxSlippageBps = 150.0
)

// Book is the synthetic top-of-book derived from recent candles. There is no
// real order book in paper trading, so spread and impact are reconstructed
// from volatility and traded volume.
type Book struct {
	Bid    float64
	Ask    float64
	Mid    float64
	ATR    float64
	AvgVol float64
}

// BuildBook derives a synthetic book from the last candles of a series.
func BuildBook(candles []market.Candle) (Book, error) {
	if len(candles) == 0 {
		return Book{}, fmt.Errorf("no candles to build a book from")
	}
	if len(candles) > bookDepthBars {
		candles = candles[len(candles)-bookDepthBars:]
	}
	last := candles[len(candles)-1]
	close := last.Close

	atr := lastATR(candles)
	if atr <= 0 {
		atr = math.Max(0.005*close, 0.01)
	}
	spread := math.Max(0.1*atr, 0.0005*close)
	bid := close - spread/2
	ask := close + spread/2

	var volSum float64
	n := 0
	start := len(candles) - volWindowBars
	if start < 0 {
		start = 0
	}
	for _, c := range candles[start:] {
		volSum += c.Volume
		n++
	}
	avgVol := 0.0
	if n > 0 {
		avgVol = volSum / float64(n)
	}
	return Book{Bid: bid, Ask: ask, Mid: (bid + ask) / 2, ATR: atr, AvgVol: avgVol}, nil
}

func lastATR(candles []market.Candle) float64 {
	series := market.TrueRangeATR(candles, 14)
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].OK {
			return series[i].V
		}
	}
	// Not enough bars for the rolling window: fall back to the plain mean
	// of the true ranges seen so far.
	var sum float64
	for i, c := range candles {
		if i == 0 {
			sum += c.High - c.Low
			continue
		}
		prev := candles[i-1].Close
		sum += math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prev), math.Abs(c.Low-prev)))
	}
	if len(candles) == 0 {
		return 0
	}
	return sum / float64(len(candles))
}

// SlippageBps models impact as volatility scaled by participation, capped at
// maxSlippageBps.
func (b Book) SlippageBps(qty float64) float64 {
	if b.Mid <= 0 {
		return 0
	}
	notional := math.Abs(qty) * b.Mid
	impact := 3.0
	if b.AvgVol > 0 {
		impact = math.Min(3.0, notional/(b.AvgVol*b.Mid))
	}
	bps := 5.0 * (b.ATR / b.Mid) * 10000 * (1 + impact)
	return math.Min(maxSlippageBps, bps)
}

// Request is one simulated execution attempt.
type Request struct {
	Symbol     string
	Side       types.Action
	Type       types.OrderType
	Quantity   float64
	LimitPrice float64
	Timeframe  string
	At         int64
}

// Simulator fills orders against a synthetic book. Fills are all-or-nothing:
// a limit order that does not cross is rejected outright, never queued.
type Simulator struct{}

func NewSimulator() *Simulator { return &Simulator{} }

// Simulate prices req against the book implied by candles and returns the
// resulting order record. The order is always returned, including rejects,
// so every attempt leaves an audit row.
func (s *Simulator) Simulate(req Request, candles []market.Candle) (types.Order, error) {
	if req.Quantity <= 0 {
		return types.Order{}, fmt.Errorf("order quantity must be positive")
	}
	book, err := BuildBook(candles)
	if err != nil {
		return types.Order{}, err
	}
	at := req.At
	if at == 0 {
		if len(candles) > 0 {
			at = candles[len(candles)-1].CloseTime
		} else {
			at = time.Now().UnixMilli()
		}
	}
	order := types.Order{
		ID:         uuid.NewString(),
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		LimitPrice: req.LimitPrice,
		Quantity:   req.Quantity,
		Timeframe:  req.Timeframe,
		At:         at,
		Notes: map[string]any{
			"bid": book.Bid,
			"ask": book.Ask,
			"atr": book.ATR,
		},
	}
	bps := book.SlippageBps(req.Quantity)

	switch req.Type {
	case types.OrderTypeMarket:
		base := book.Ask
		if req.Side == types.ActionSell {
			base = book.Bid
		}
		slip := base * bps / 10000
		fill := base + slip
		if req.Side == types.ActionSell {
			fill = base - slip
		}
		order.Status = types.OrderStatusFilled
		order.FillPrice = fill
		order.FilledQty = req.Quantity
		order.SlippageBps = bps
		return order, nil

	case types.OrderTypeLimit:
		if req.LimitPrice <= 0 {
			return rejected(order, "Limit price required"), nil
		}
		if req.Side == types.ActionBuy {
			if req.LimitPrice < book.Ask {
				return rejected(order, "Limit too low"), nil
			}
			order.FillPrice = math.Min(req.LimitPrice, book.Ask+book.Ask*bps/10000)
		} else {
			if req.LimitPrice > book.Bid {
				return rejected(order, "Limit too high"), nil
			}
			order.FillPrice = math.Max(req.LimitPrice, book.Bid-book.Bid*bps/10000)
		}
		order.Status = types.OrderStatusFilled
		order.FilledQty = req.Quantity
		order.SlippageBps = bps
		return order, nil

	default:
		return types.Order{}, fmt.Errorf("unsupported order type %q", req.Type)
	}
}

func rejected(order types.Order, reason string) types.Order {
	order.Status = types.OrderStatusRejected
	order.FilledQty = 0
	order.FillPrice = 0
	order.SlippageBps = 0
	order.Notes["reason"] = reason
	return order
}
