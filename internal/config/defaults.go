package config

import "strings"

// 默认值常量
const (
	defaultAppEnv       = "dev"
	defaultAppLogLevel  = "info"
	defaultAppHTTPAddr  = ":9992"
	defaultAppLogPath   = "/data/logs/vela.log"
	defaultAppDBPath    = "/data/vela/vela.db"
	defaultCandleDir    = "/data/vela/candles"
	defaultMarketName   = "binance"
	defaultMarketREST   = "https://fapi.binance.com"
	defaultScanInterval = 300
	defaultSymbolLimit  = 50
	defaultMinBars      = 60
	defaultLookback     = 300
	defaultProfilePath  = "configs/strategies.yaml"
	defaultAllowWithin  = 2
	defaultRejectBeyond = 4
	defaultTrailingSecs = 300
	defaultSafetyFactor = 1.5
	defaultConcurrency  = 4
	defaultReportDir    = "/data/vela/reports"
	defaultSentiment    = "noop"
	defaultSentiWindow  = 5
	defaultSentiTTL     = 300
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Scan.applyDefaults(keys)
	c.Strategy.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Backtest.applyDefaults(keys)
	c.Sentiment.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.db_path", &a.DBPath, defaultAppDBPath),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.candle_dir", &m.CandleDir, defaultCandleDir),
		stringFieldDefault("market.source", &m.Source, defaultMarketName),
		stringFieldDefault("market.rest_base", &m.RESTBase, defaultMarketREST),
	)
}

func (s *ScanConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "scan.interval_seconds",
			need:  func() bool { return s.IntervalSeconds <= 0 },
			apply: func() { s.IntervalSeconds = defaultScanInterval },
		},
		fieldDefault{
			key:   "scan.symbol_limit",
			need:  func() bool { return s.SymbolLimit <= 0 },
			apply: func() { s.SymbolLimit = defaultSymbolLimit },
		},
		fieldDefault{
			key:   "scan.min_bars",
			need:  func() bool { return s.MinBars <= 0 },
			apply: func() { s.MinBars = defaultMinBars },
		},
		fieldDefault{
			key:   "scan.lookback_bars",
			need:  func() bool { return s.LookbackBars <= 0 },
			apply: func() { s.LookbackBars = defaultLookback },
		},
		fieldDefault{
			key:   "scan.timeframes",
			need:  func() bool { return len(s.Timeframes) == 0 },
			apply: func() { s.Timeframes = []string{"15m"} },
		},
	)
}

func (s *StrategyConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("strategy.profile_path", &s.ProfilePath, defaultProfilePath),
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "risk.precedence_allow_within",
			need:  func() bool { return r.PrecedenceAllowWithin <= 0 },
			apply: func() { r.PrecedenceAllowWithin = defaultAllowWithin },
		},
		fieldDefault{
			key:   "risk.precedence_reject_beyond",
			need:  func() bool { return r.PrecedenceRejectBeyond <= 0 },
			apply: func() { r.PrecedenceRejectBeyond = defaultRejectBeyond },
		},
		fieldDefault{
			key:   "risk.trailing_interval_seconds",
			need:  func() bool { return r.TrailingIntervalSeconds <= 0 },
			apply: func() { r.TrailingIntervalSeconds = defaultTrailingSecs },
		},
	)
}

func (b *BacktestConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "backtest.safety_factor",
			need:  func() bool { return b.SafetyFactor <= 0 },
			apply: func() { b.SafetyFactor = defaultSafetyFactor },
		},
		fieldDefault{
			key:   "backtest.concurrency",
			need:  func() bool { return b.Concurrency <= 0 },
			apply: func() { b.Concurrency = defaultConcurrency },
		},
		stringFieldDefault("backtest.report_dir", &b.ReportDir, defaultReportDir),
	)
}

func (s *SentimentConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("sentiment.provider", &s.Provider, defaultSentiment),
		fieldDefault{
			key:   "sentiment.window",
			need:  func() bool { return s.Window <= 0 },
			apply: func() { s.Window = defaultSentiWindow },
		},
		fieldDefault{
			key:   "sentiment.ttl_seconds",
			need:  func() bool { return s.TTLSeconds <= 0 },
			apply: func() { s.TTLSeconds = defaultSentiTTL },
		},
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
