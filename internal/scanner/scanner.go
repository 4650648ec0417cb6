package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vela/internal/logger"
	"vela/internal/market"
	"vela/internal/score"
	"vela/internal/sentiment"
	"vela/internal/store"
	"vela/internal/strategy"
	"vela/internal/types"
)

// Config bounds one scan sweep.
type Config struct {
	SymbolLimit  int
	MinBars      int
	LookbackBars int
	Timeframes   []string
}

func (c Config) withDefaults() Config {
	if c.SymbolLimit <= 0 {
		c.SymbolLimit = 50
	}
	if c.MinBars <= 0 {
		c.MinBars = 60
	}
	if c.LookbackBars < c.MinBars {
		c.LookbackBars = 300
	}
	if len(c.Timeframes) == 0 {
		c.Timeframes = []string{"15m"}
	}
	return c
}

// Scanner sweeps the active symbol universe, runs every enabled detector,
// scores what fires and records the per-symbol ensemble verdict. Each sweep
// is one strategy run row; per-symbol failures degrade to a skip.
type Scanner struct {
	store     *store.Store
	candles   *market.CandleStore
	source    market.Source
	registry  *strategy.Registry
	scorer    *score.Scorer
	ensemble  *score.Ensemble
	sentiment *sentiment.Service
	cfg       Config
}

func New(st *store.Store, candles *market.CandleStore, source market.Source,
	registry *strategy.Registry, scorer *score.Scorer, ensemble *score.Ensemble,
	senti *sentiment.Service, cfg Config) *Scanner {
	return &Scanner{
		store:     st,
		candles:   candles,
		source:    source,
		registry:  registry,
		scorer:    scorer,
		ensemble:  ensemble,
		sentiment: senti,
		cfg:       cfg.withDefaults(),
	}
}

// Result is the outcome of one sweep.
type Result struct {
	RunID     string                            `json:"run_id"`
	Signals   []types.ScoredSignal              `json:"signals"`
	Decisions map[string]types.EnsembleDecision `json:"decisions"`
	Skipped   int                               `json:"skipped"`
}

// ScanOnce runs a single sweep. mode is recorded on the run row
// ("manual", "scheduled", ...).
func (s *Scanner) ScanOnce(ctx context.Context, mode string) (Result, error) {
	runID := uuid.NewString()
	if err := s.store.InsertStrategyRun(ctx, runID, mode); err != nil {
		return Result{}, err
	}
	res := Result{RunID: runID, Decisions: make(map[string]types.EnsembleDecision)}

	instruments, err := s.store.ActiveInstruments(ctx, s.cfg.SymbolLimit)
	if err != nil {
		_ = s.store.CompleteStrategyRun(ctx, runID, 0, store.RunStatusFailed)
		return Result{}, err
	}

	for _, inst := range instruments {
		perSymbol, err := s.scanSymbol(ctx, runID, inst)
		if err != nil {
			logger.Warnf("scan: %s skipped: %v", inst.Ticker, err)
			res.Skipped++
			continue
		}
		if len(perSymbol) == 0 {
			continue
		}
		res.Signals = append(res.Signals, perSymbol...)
		decision := s.ensemble.Combine(perSymbol)
		res.Decisions[inst.Ticker] = decision
		logger.Infof("scan: %s -> %s (%d signals)", inst.Ticker, decision.Decision, len(perSymbol))
	}

	if err := s.store.CompleteStrategyRun(ctx, runID, len(res.Signals), store.RunStatusDone); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Scanner) scanSymbol(ctx context.Context, runID string, inst types.Instrument) ([]types.ScoredSignal, error) {
	var out []types.ScoredSignal
	for _, tf := range s.cfg.Timeframes {
		candles, err := s.loadCandles(ctx, inst, tf)
		if err != nil {
			return nil, err
		}
		if len(candles) < s.cfg.MinBars {
			logger.Debugf("scan: %s@%s only %d bars (<%d), skipping", inst.Ticker, tf, len(candles), s.cfg.MinBars)
			continue
		}
		hist := market.ComputeFeatures(candles)
		raw := s.registry.RunLatest(inst.Ticker, tf, hist)
		if len(raw) == 0 {
			continue
		}
		bias := s.sentiment.Bias(ctx, inst.Ticker)
		for _, sig := range raw {
			scored := s.scorer.Score(sig, hist[len(hist)-1], bias)
			if err := s.store.InsertSignal(ctx, runID, scored); err != nil {
				return nil, err
			}
			out = append(out, scored)
		}
	}
	return out, nil
}

// loadCandles reads local history and falls back to the remote feed when the
// store is empty and the instrument carries a feed mapping.
func (s *Scanner) loadCandles(ctx context.Context, inst types.Instrument, tf string) ([]market.Candle, error) {
	candles, err := s.candles.LatestCandles(ctx, inst.Ticker, tf, s.cfg.LookbackBars)
	if err != nil {
		return nil, err
	}
	if len(candles) >= s.cfg.MinBars || s.source == nil || inst.FeedSymbol == "" {
		return candles, nil
	}
	fetched, err := s.source.Fetch(ctx, market.FetchRequest{
		Symbol:   strings.ToUpper(inst.FeedSymbol),
		Interval: tf,
		Limit:    s.cfg.LookbackBars,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s via %s: %w", inst.FeedSymbol, s.source.Name(), err)
	}
	if len(fetched) > 0 {
		if _, err := s.candles.InsertCandles(ctx, inst.Ticker, tf, fetched); err != nil {
			return nil, err
		}
	}
	return s.candles.LatestCandles(ctx, inst.Ticker, tf, s.cfg.LookbackBars)
}

// Loop runs scheduled sweeps until ctx is canceled.
func (s *Scanner) Loop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ScanOnce(ctx, "scheduled"); err != nil {
				logger.Errorf("scheduled scan failed: %v", err)
			}
		}
	}
}
