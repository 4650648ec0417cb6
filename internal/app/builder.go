package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vela/internal/analytics"
	"vela/internal/backtest"
	velacfg "vela/internal/config"
	"vela/internal/execution"
	"vela/internal/ledger"
	"vela/internal/logger"
	"vela/internal/market"
	"vela/internal/risk"
	"vela/internal/scanner"
	"vela/internal/score"
	"vela/internal/sentiment"
	"vela/internal/store"
	"vela/internal/strategy"
	velahttp "vela/internal/transport/http"
)

// AppBuilder 将配置翻译成一棵可运行的依赖树。构建顺序：持久层 → 行情 →
// 策略/打分 → 风控/执行 → 扫描/回测 → HTTP。
type AppBuilder struct {
	cfg *velacfg.Config
}

func NewAppBuilder(cfg *velacfg.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

func (b *AppBuilder) Build() (*App, error) {
	cfg := b.cfg
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	st, err := store.Open(cfg.App.DBPath)
	if err != nil {
		return nil, fmt.Errorf("打开持久层失败: %w", err)
	}
	candles, err := market.NewCandleStore(cfg.Market.CandleDir)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("打开 K 线库失败: %w", err)
	}

	var source market.Source
	if strings.EqualFold(cfg.Market.Source, "binance") {
		source = market.NewGuardedSource(market.NewBinanceSource(cfg.Market.RESTBase), 5, time.Minute)
	}

	params, err := strategy.LoadParams(cfg.Strategy.ProfilePath)
	if err != nil {
		return nil, err
	}
	registry := strategy.NewRegistry(params, cfg.Strategy.Enabled)
	scorer := score.NewScorer()
	ensemble := score.NewEnsemble(cfg.Strategy.Weights)

	var provider sentiment.Provider = sentiment.Noop{}
	if cfg.Sentiment.Provider == "file" {
		provider = sentiment.NewFileProvider(cfg.Sentiment.Path, cfg.Sentiment.Window,
			time.Duration(cfg.Sentiment.TTLSeconds)*time.Second)
	}
	senti := sentiment.NewService(provider, time.Duration(cfg.Sentiment.TTLSeconds)*time.Second)

	book := ledger.New(st)
	sim := execution.NewSimulator()
	riskEngine := risk.NewEngine(st, candles)
	precedence := risk.PrecedenceConfig{
		AllowWithin:  cfg.Risk.PrecedenceAllowWithin,
		RejectBeyond: cfg.Risk.PrecedenceRejectBeyond,
	}
	executor := execution.NewExecutor(st, candles, riskEngine, sim, book, precedence)
	trailing := risk.NewTrailingStops(st, candles, executor.ExitAtMarket)

	scan := scanner.New(st, candles, source, registry, scorer, ensemble, senti, scanner.Config{
		SymbolLimit:  cfg.Scan.SymbolLimit,
		MinBars:      cfg.Scan.MinBars,
		LookbackBars: cfg.Scan.LookbackBars,
		Timeframes:   cfg.Scan.Timeframes,
	})

	pnl := analytics.NewService(st)
	runner := backtest.NewRunner(st, candles, scorer, sim, book, params, precedence)
	reportDir := cfg.Backtest.ReportDir
	runner.SetOnDone(func(ctx context.Context, runID string, rc backtest.RunConfig, stats *backtest.RunStats) {
		sum, err := pnl.PnLSummary(ctx, rc.Start, rc.End)
		if err != nil {
			logger.Warnf("backtest %s: 汇总失败: %v", runID, err)
			return
		}
		path, err := analytics.WriteEquityReport(reportDir, runID, sum)
		if err != nil {
			logger.Warnf("backtest %s: 报告生成失败: %v", runID, err)
			return
		}
		stats.ReportURI = path
	})

	server, err := velahttp.NewServer(velahttp.Config{
		Addr:      cfg.App.HTTPAddr,
		Store:     st,
		Candles:   candles,
		Scanner:   scan,
		Risk:      riskEngine,
		Trailing:  trailing,
		Executor:  executor,
		Simulator: sim,
		Analytics: pnl,
		Runner:    runner,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		store:    st,
		candles:  candles,
		scanner:  scan,
		trailing: trailing,
		server:   server,
	}, nil
}
