package backtest

import (
	"context"
	"math"
	"sort"

	"vela/internal/execution"
	"vela/internal/logger"
	"vela/internal/market"
	"vela/internal/risk"
	"vela/internal/strategy"
	"vela/internal/types"
)

// event 是回放队列中的一个候选成交：某策略在某周期的某根 K 线上发出的
// 已打分信号，连同该时刻可见的历史切片。
type event struct {
	at      int64
	price   float64
	scored  types.ScoredSignal
	candles []market.Candle // 截止信号 bar 的历史（含当根）
}

// replaySymbol 先在每个周期上独立生成信号，再把全部信号按时间戳归并成
// 一条时间线逐笔回放。任何一笔的失败只计入 errored。
func (r *Runner) replaySymbol(ctx context.Context, runID string, cfg RunConfig,
	registry *strategy.Registry, equity float64, symbol string) (SymbolStats, error) {

	stats := SymbolStats{Symbol: symbol}

	// 手数来自 instruments 表，缺省记录回退为一手一股。
	inst, err := r.store.GetInstrument(ctx, symbol)
	if err != nil {
		return stats, err
	}

	var events []event
	for _, tfKey := range cfg.Timeframes {
		candles, err := r.candles.RangeCandles(ctx, symbol, tfKey, cfg.Start, cfg.End)
		if err != nil {
			return stats, err
		}
		if len(candles) < 2 {
			continue
		}
		hist := market.ComputeFeatures(candles)
		for asOf := 1; asOf < len(hist); asOf++ {
			for _, sig := range registry.Run(symbol, tfKey, hist, asOf) {
				// 历史情绪不可得，回测一律中性。
				scored := r.scorer.Score(sig, hist[asOf], 0)
				if err := r.store.InsertSignal(ctx, runID, scored); err != nil {
					return stats, err
				}
				events = append(events, event{
					at:      sig.At,
					price:   hist[asOf].Close,
					scored:  scored,
					candles: candles[:asOf+1],
				})
			}
		}
	}
	stats.Signals = len(events)
	if len(events) == 0 {
		return stats, nil
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].at < events[j].at })

	var pending []sizedEvent
	flush := func() {
		if len(pending) == 0 {
			return
		}
		r.executeGroup(ctx, runID, pending, &stats)
		pending = nil
	}

	for _, ev := range events {
		pos, _, err := r.store.GetPosition(ctx, symbol)
		if err != nil {
			stats.Errored++
			continue
		}
		if ok, reason := risk.ShouldExecuteSignal(r.precedence, ev.scored.Signal, pos); !ok {
			logger.Debugf("backtest %s: %s 跳过: %s", runID, symbol, reason)
			stats.Skipped++
			continue
		}
		if !r.profitable(cfg, ev) {
			stats.Skipped++
			continue
		}
		// 与实盘共用同一条主路径：名义 → 精度取整 → 手数向下取整。
		qty := execution.SizeForNotional(equity, ev.scored.Confidence, ev.scored.Timeframe, ev.price, inst.LotSize)
		if qty > execution.MaxOrderQty {
			qty = execution.FloorToLot(execution.MaxOrderQty, inst.LotSize)
		}
		if ev.scored.Action == types.ActionSell && qty > pos.Quantity {
			qty = pos.Quantity
		}
		if qty <= 0 {
			stats.Skipped++
			continue
		}
		se := sizedEvent{event: ev, qty: qty}

		if cfg.AggregationWindowMs <= 0 {
			r.executeGroup(ctx, runID, []sizedEvent{se}, &stats)
			continue
		}
		// 窗口内同向信号合并为一笔，跨窗口或反向先落盘再重新开窗。
		if len(pending) > 0 &&
			(ev.scored.Action != pending[0].scored.Action ||
				ev.at-pending[0].at > cfg.AggregationWindowMs) {
			flush()
		}
		pending = append(pending, se)
	}
	flush()
	return stats, nil
}

type sizedEvent struct {
	event
	qty float64
}

// profitable 过滤预期收益覆盖不了交易成本的信号：目标价距离必须大于
// (佣金 + 双边滑点) * 安全系数。
func (r *Runner) profitable(cfg RunConfig, ev event) bool {
	entry := ev.scored.Entry
	expected := math.Abs(ev.scored.Target - entry)
	if ev.scored.Target == 0 {
		expected = math.Abs(entry - ev.scored.Stop)
	}
	book, err := execution.BuildBook(ev.candles)
	if err != nil {
		return false
	}
	slipPerShare := ev.price * book.SlippageBps(1) / 10000
	cost := cfg.CommissionPerShare + 2*slipPerShare
	return expected > cost*cfg.SafetyFactor
}

// executeGroup 把一组（可能只有一个）已定量的事件作为单笔市价单成交。
// 合并时成交价取各事件价格的量加权均值，滑点沿用末事件订单簿的模拟结果。
func (r *Runner) executeGroup(ctx context.Context, runID string, group []sizedEvent, stats *SymbolStats) {
	if len(group) == 0 {
		return
	}
	last := group[len(group)-1]
	var totalQty, notional float64
	for _, se := range group {
		totalQty += se.qty
		notional += se.price * se.qty
	}
	if totalQty <= 0 {
		stats.Skipped++
		return
	}
	order, err := r.sim.Simulate(execution.Request{
		Symbol:    last.scored.Symbol,
		Side:      last.scored.Action,
		Type:      types.OrderTypeMarket,
		Quantity:  totalQty,
		Timeframe: last.scored.Timeframe,
		At:        last.at,
	}, last.candles)
	if err != nil {
		stats.Errored++
		return
	}
	order.Notes["run_id"] = runID
	order.Notes["strategy"] = last.scored.Strategy
	if len(group) > 1 && order.Status == types.OrderStatusFilled {
		vwap := notional / totalQty
		slip := vwap * order.SlippageBps / 10000
		if last.scored.Action == types.ActionSell {
			slip = -slip
		}
		order.FillPrice = vwap + slip
		order.Notes["aggregated"] = len(group)
		order.Notes["vwap"] = vwap
	}
	// 先入账再落单，账本可能钳制或降级这笔订单。
	if order.Status != types.OrderStatusRejected {
		if _, err := r.book.ApplyFill(ctx, &order); err != nil {
			logger.Warnf("backtest %s: %s 入账失败: %v", runID, last.scored.Symbol, err)
			stats.Errored++
			return
		}
	}
	if err := r.store.InsertOrder(ctx, order); err != nil {
		stats.Errored++
		return
	}
	if order.Status == types.OrderStatusRejected {
		stats.Skipped++
		return
	}
	stats.Executed++
}
