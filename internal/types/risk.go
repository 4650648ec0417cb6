package types

// RiskLimits is the operator-owned risk configuration. It is loaded once per
// operation and passed explicitly; nothing reads it through a global.
type RiskLimits struct {
	MaxCapitalPerTradePct   float64 `json:"max_capital_per_trade_pct"`
	MaxDailyLossPct         float64 `json:"max_daily_loss_pct"`
	MaxPortfolioDrawdownPct float64 `json:"max_portfolio_drawdown_pct"`
	MaxSectorExposurePct    float64 `json:"max_sector_exposure_pct"`
	CircuitBreakerPct       float64 `json:"circuit_breaker_pct"`
	KellyFraction           float64 `json:"kelly_fraction"`
	PauseAll                bool    `json:"pause_all"`
}

// DefaultRiskLimits are used when no risk_limits row exists yet.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxCapitalPerTradePct:   5,
		MaxDailyLossPct:         3,
		MaxPortfolioDrawdownPct: 15,
		MaxSectorExposurePct:    25,
		CircuitBreakerPct:       20,
		KellyFraction:           0.5,
		PauseAll:                false,
	}
}
