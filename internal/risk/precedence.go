package risk

import (
	"fmt"

	"vela/internal/market"
	"vela/internal/types"
)

// PrecedenceConfig tunes how far apart (in timeframe rank) a signal and the
// position it targets may be.
type PrecedenceConfig struct {
	// AllowWithin: a sell whose timeframe is at most this many ranks below
	// the position's timeframe is always allowed.
	AllowWithin int
	// RejectBeyond: a sell more than this many ranks below is rejected.
	// The band in between is allowed but logged by callers.
	RejectBeyond int
}

func DefaultPrecedence() PrecedenceConfig {
	return PrecedenceConfig{AllowWithin: 2, RejectBeyond: 4}
}

// ShouldExecuteSignal decides whether a signal may act on the current
// position. Sells need an existing long; a sell from a much lower timeframe
// than the one that opened the position is noise and gets rejected. Buys
// from a lower timeframe than an existing long are ignored so the higher
// timeframe keeps ownership of the exposure.
func ShouldExecuteSignal(cfg PrecedenceConfig, sig types.Signal, pos types.Position) (bool, string) {
	sigRank := market.RankOf(sig.Timeframe)

	if sig.Action == types.ActionSell {
		if pos.Quantity <= 0 {
			return false, "no_long_position"
		}
		posRank := market.RankOf(pos.Timeframe)
		if posRank == 0 || sigRank == 0 {
			return true, ""
		}
		rankDiff := posRank - sigRank
		if rankDiff <= cfg.AllowWithin {
			return true, ""
		}
		if rankDiff > cfg.RejectBeyond {
			return false, fmt.Sprintf("too_low_timeframe_sell_%s_vs_%s", sig.Timeframe, pos.Timeframe)
		}
		return true, ""
	}

	// BUY
	if pos.Quantity > 0 {
		posRank := market.RankOf(pos.Timeframe)
		if posRank > 0 && sigRank > 0 && sigRank < posRank {
			return false, fmt.Sprintf("lower_timeframe_buy_%s_vs_%s", sig.Timeframe, pos.Timeframe)
		}
	}
	return true, ""
}
