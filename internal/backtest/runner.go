package backtest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vela/internal/execution"
	"vela/internal/ledger"
	"vela/internal/logger"
	"vela/internal/market"
	"vela/internal/risk"
	"vela/internal/score"
	"vela/internal/store"
	"vela/internal/strategy"
)

const (
	defaultSafetyFactor = 1.5
	defaultConcurrency  = 4
)

// Runner 负责回测 run 的生命周期：校验、落库、后台执行、统计回写。
// symbol 之间可以并行，单个 symbol 内严格按时间回放。
type Runner struct {
	store      *store.Store
	candles    *market.CandleStore
	scorer     *score.Scorer
	sim        *execution.Simulator
	book       *ledger.Ledger
	params     strategy.Params
	precedence risk.PrecedenceConfig

	// onDone 在 run 成功后执行（生成报告等），失败不影响 run 状态。
	onDone func(ctx context.Context, runID string, cfg RunConfig, stats *RunStats)
}

func NewRunner(st *store.Store, candles *market.CandleStore, scorer *score.Scorer,
	sim *execution.Simulator, book *ledger.Ledger, params strategy.Params,
	precedence risk.PrecedenceConfig) *Runner {
	return &Runner{
		store:      st,
		candles:    candles,
		scorer:     scorer,
		sim:        sim,
		book:       book,
		params:     params,
		precedence: precedence,
	}
}

// SetOnDone 注册 run 完成后的回调。
func (r *Runner) SetOnDone(fn func(ctx context.Context, runID string, cfg RunConfig, stats *RunStats)) {
	r.onDone = fn
}

// StartRun 校验请求、写入 pending 记录并在后台启动回放，立即返回 run_id。
func (r *Runner) StartRun(ctx context.Context, req RunRequest) (string, error) {
	cfg, err := r.normalize(req)
	if err != nil {
		return "", err
	}
	runID := uuid.NewString()
	if err := r.store.InsertBacktestRun(ctx, runID, cfg); err != nil {
		return "", err
	}
	go r.execute(runID, cfg)
	return runID, nil
}

func (r *Runner) normalize(req RunRequest) (RunConfig, error) {
	if len(req.Symbols) == 0 {
		return RunConfig{}, fmt.Errorf("symbols 不能为空")
	}
	if req.Start <= 0 || req.End <= 0 || req.End <= req.Start {
		return RunConfig{}, fmt.Errorf("start/end 区间非法")
	}
	cfg := RunConfig{
		CommissionPerShare:  req.CommissionPerShare,
		SafetyFactor:        req.SafetyFactor,
		AggregationWindowMs: req.AggregationWindowMs,
		Concurrency:         req.Concurrency,
		Strategies:          req.Strategies,
	}
	if cfg.SafetyFactor <= 0 {
		cfg.SafetyFactor = defaultSafetyFactor
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	for _, s := range req.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			cfg.Symbols = append(cfg.Symbols, s)
		}
	}
	// 每个周期都对齐到自身边界，避免半根 K 线进入回放。
	for _, tfKey := range req.Timeframes {
		tf, err := market.ParseTimeframe(tfKey)
		if err != nil {
			return RunConfig{}, err
		}
		cfg.Timeframes = append(cfg.Timeframes, tf.Key)
	}
	cfg.Start, cfg.End = req.Start, req.End
	if len(cfg.Timeframes) > 0 {
		tf, _ := market.ParseTimeframe(cfg.Timeframes[0])
		cfg.Start, cfg.End = tf.AlignRange(req.Start, req.End)
	}
	return cfg, nil
}

// execute 在独立 goroutine 中运行，自己管理超时与状态回写。
func (r *Runner) execute(runID string, cfg RunConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := r.store.SetBacktestRunStatus(ctx, runID, store.RunStatusRunning, ""); err != nil {
		logger.Errorf("backtest %s: 标记 running 失败: %v", runID, err)
		return
	}
	started := time.Now()
	logger.InfoBlock(fmt.Sprintf("backtest run=%s symbols=%d timeframes=%v", runID, len(cfg.Symbols), cfg.Timeframes))

	registry := strategy.NewRegistry(r.params, cfg.Strategies)
	equity, err := r.store.LatestEquity(ctx)
	if err != nil {
		r.fail(ctx, runID, err)
		return
	}

	stats := RunStats{Symbols: make([]SymbolStats, len(cfg.Symbols))}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for i, symbol := range cfg.Symbols {
		i, symbol := i, symbol
		// 每个 goroutine 只写自己下标的槽位，无需加锁。
		g.Go(func() error {
			sym, err := r.replaySymbol(gctx, runID, cfg, registry, equity, symbol)
			if err != nil {
				// 单 symbol 失败只计数，不终止整个 run。
				logger.Errorf("backtest %s: symbol %s 失败: %v", runID, symbol, err)
				sym = SymbolStats{Symbol: symbol, Errored: sym.Errored + 1}
			}
			stats.Symbols[i] = sym
			return nil
		})
	}
	_ = g.Wait()

	for _, sym := range stats.Symbols {
		stats.Signals += sym.Signals
		stats.Executed += sym.Executed
		stats.Skipped += sym.Skipped
		stats.Errored += sym.Errored
	}
	if r.onDone != nil {
		r.onDone(ctx, runID, cfg, &stats)
	}
	if err := r.store.SaveBacktestStats(ctx, runID, stats); err != nil {
		r.fail(ctx, runID, err)
		return
	}
	if err := r.store.SetBacktestRunStatus(ctx, runID, store.RunStatusDone, ""); err != nil {
		logger.Errorf("backtest %s: 标记 done 失败: %v", runID, err)
		return
	}
	logger.Infof("backtest %s 完成: signals=%d executed=%d skipped=%d errored=%d 耗时=%s",
		runID, stats.Signals, stats.Executed, stats.Skipped, stats.Errored, time.Since(started).Round(time.Millisecond))
}

func (r *Runner) fail(ctx context.Context, runID string, err error) {
	logger.Errorf("backtest %s 失败: %v", runID, err)
	if e := r.store.SetBacktestRunStatus(ctx, runID, store.RunStatusFailed, err.Error()); e != nil {
		logger.Errorf("backtest %s: 标记 failed 失败: %v", runID, e)
	}
}
