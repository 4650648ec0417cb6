package strategy

import (
	"vela/internal/market"
	"vela/internal/types"
)

// Strategy identifiers. These are persisted with every signal, so they are
// part of the storage contract and must not change casually.
const (
	StrategyTrendFollow   = "trend_follow"
	StrategyMeanReversion = "mean_reversion"
	StrategyMomentum      = "momentum"
)

// DetectFunc inspects history up to and including hist[asOf] and returns a
// signal or nil. Implementations must not look past asOf.
type DetectFunc func(symbol, timeframe string, hist []market.Snapshot, asOf int) *types.Signal

// Entry is one registered detector. Enabled is driven by config; the table
// order is fixed and determines evaluation (and downstream tie-break) order.
type Entry struct {
	ID      string
	Detect  DetectFunc
	Enabled bool
}

// Registry holds the detector table plus the shared quality filter.
type Registry struct {
	entries []Entry
}

// NewRegistry builds the full detector table and enables the ids listed in
// enabled. An empty list enables every detector.
func NewRegistry(params Params, enabled []string) *Registry {
	want := make(map[string]bool, len(enabled))
	for _, id := range enabled {
		want[id] = true
	}
	all := len(enabled) == 0
	entries := []Entry{
		{ID: StrategyTrendFollow, Detect: TrendFollow(params.TrendFollow)},
		{ID: StrategyMeanReversion, Detect: MeanReversion(params.MeanReversion)},
		{ID: StrategyMomentum, Detect: Momentum(params.Momentum)},
	}
	for i := range entries {
		entries[i].Enabled = all || want[entries[i].ID]
	}
	return &Registry{entries: entries}
}

// Enabled returns the enabled detector ids in table order.
func (r *Registry) Enabled() []string {
	var ids []string
	for _, e := range r.entries {
		if e.Enabled {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// Run evaluates every enabled detector at the as-of bar and applies the
// quality filter. Detectors fire independently; the result can contain
// conflicting actions, which the ensemble resolves later.
func (r *Registry) Run(symbol, timeframe string, hist []market.Snapshot, asOf int) []types.Signal {
	var out []types.Signal
	for _, e := range r.entries {
		if !e.Enabled {
			continue
		}
		sig := e.Detect(symbol, timeframe, hist, asOf)
		if sig == nil {
			continue
		}
		if !QualityFilter(sig, hist, asOf) {
			continue
		}
		out = append(out, *sig)
	}
	return out
}

// RunLatest evaluates detectors at the newest bar.
func (r *Registry) RunLatest(symbol, timeframe string, hist []market.Snapshot) []types.Signal {
	if len(hist) == 0 {
		return nil
	}
	return r.Run(symbol, timeframe, hist, len(hist)-1)
}
