package config

import (
	"fmt"
	"strings"

	"vela/internal/market"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Scan.validate(); err != nil {
		return err
	}
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Sentiment.validate(); err != nil {
		return err
	}
	return nil
}

func (s *ScanConfig) validate() error {
	for _, tf := range s.Timeframes {
		if _, err := market.ParseTimeframe(tf); err != nil {
			return fmt.Errorf("scan.timeframes: %w", err)
		}
	}
	if s.LookbackBars < s.MinBars {
		return fmt.Errorf("scan.lookback_bars (%d) must be >= scan.min_bars (%d)", s.LookbackBars, s.MinBars)
	}
	return nil
}

func (s *StrategyConfig) validate() error {
	known := map[string]bool{"trend_follow": true, "mean_reversion": true, "momentum": true}
	for _, id := range s.Enabled {
		if !known[strings.TrimSpace(id)] {
			return fmt.Errorf("strategy.enabled contains unknown strategy: %s", id)
		}
	}
	for id, w := range s.Weights {
		if !known[id] {
			return fmt.Errorf("strategy.weights contains unknown strategy: %s", id)
		}
		if w < 0 {
			return fmt.Errorf("strategy.weights.%s must be >= 0", id)
		}
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.PrecedenceRejectBeyond < r.PrecedenceAllowWithin {
		return fmt.Errorf("risk.precedence_reject_beyond must be >= risk.precedence_allow_within")
	}
	return nil
}

func (s *SentimentConfig) validate() error {
	switch strings.TrimSpace(s.Provider) {
	case "", "noop":
		return nil
	case "file":
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("sentiment.path is required when provider is file")
		}
		return nil
	default:
		return fmt.Errorf("sentiment.provider must be noop or file, got %q", s.Provider)
	}
}
