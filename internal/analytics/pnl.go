package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"vela/internal/store"
	"vela/internal/types"
)

const tradingDaysPerYear = 252

// EquityPoint is one day on the equity curve.
type EquityPoint struct {
	Date   string  `json:"date"`
	Equity float64 `json:"equity"`
}

// Summary is the portfolio PnL report for a date range.
type Summary struct {
	Curve          []EquityPoint `json:"equity_curve"`
	StartEquity    float64       `json:"start_equity"`
	EndEquity      float64       `json:"end_equity"`
	ReturnPct      float64       `json:"return_pct"`
	Sharpe         float64       `json:"sharpe"`
	MaxDrawdownPct float64       `json:"max_drawdown_pct"`
}

// Service derives performance numbers from the filled-order history. Orders
// are the single source of truth: sells add cash, buys consume it.
type Service struct {
	store *store.Store
}

func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// PnLSummary builds the daily equity curve over [start, end] (unix ms) from
// filled orders and the latest starting equity.
func (s *Service) PnLSummary(ctx context.Context, start, end int64) (Summary, error) {
	startEquity, err := s.store.LatestEquity(ctx)
	if err != nil {
		return Summary{}, err
	}
	orders, err := s.store.FilledOrdersBetween(ctx, start, end)
	if err != nil {
		return Summary{}, err
	}
	curve := EquityCurve(startEquity, orders)
	sum := Summary{
		Curve:       curve,
		StartEquity: startEquity,
		EndEquity:   startEquity,
	}
	if len(curve) > 0 {
		sum.EndEquity = curve[len(curve)-1].Equity
	}
	if startEquity > 0 {
		sum.ReturnPct = (sum.EndEquity - startEquity) / startEquity * 100
	}
	sum.Sharpe = Sharpe(curve)
	sum.MaxDrawdownPct = MaxDrawdownPct(curve)
	return sum, nil
}

// EquityCurve folds daily cash flows onto the starting equity. Days without
// fills carry the previous value forward implicitly (they just don't appear).
func EquityCurve(startEquity float64, orders []types.Order) []EquityPoint {
	if len(orders) == 0 {
		return nil
	}
	flows := make(map[string]float64)
	for _, o := range orders {
		if o.FilledQty <= 0 {
			continue
		}
		day := time.UnixMilli(o.At).UTC().Format("2006-01-02")
		cash := o.FillPrice * o.FilledQty
		if o.Side == types.ActionBuy {
			cash = -cash
		}
		flows[day] += cash
	}
	days := make([]string, 0, len(flows))
	for d := range flows {
		days = append(days, d)
	}
	sort.Strings(days)

	curve := make([]EquityPoint, 0, len(days))
	running := startEquity
	for _, d := range days {
		running += flows[d]
		curve = append(curve, EquityPoint{Date: d, Equity: running})
	}
	return curve
}

// Sharpe annualizes the mean/std of daily equity returns. Fewer than two
// points, or zero variance, yields 0.
func Sharpe(curve []EquityPoint) float64 {
	rets := dailyReturns(curve)
	if len(rets) < 2 {
		return 0
	}
	var sum float64
	for _, r := range rets {
		sum += r
	}
	mean := sum / float64(len(rets))
	var sq float64
	for _, r := range rets {
		d := r - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(rets)-1))
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear)
}

// MaxDrawdownPct is the deepest peak-to-trough fall of the curve, in percent
// (negative or zero).
func MaxDrawdownPct(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0].Equity
	worst := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (p.Equity - peak) / peak
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst * 100
}

func dailyReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		rets = append(rets, (curve[i].Equity-prev)/prev)
	}
	return rets
}
