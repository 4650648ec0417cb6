package config

import "strings"

// Config 是 Vela 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Market    MarketConfig    `toml:"market"`
	Scan      ScanConfig      `toml:"scan"`
	Strategy  StrategyConfig  `toml:"strategy"`
	Risk      RiskConfig      `toml:"risk"`
	Backtest  BacktestConfig  `toml:"backtest"`
	Sentiment SentimentConfig `toml:"sentiment"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
	// DBPath 统一持久层（信号/订单/持仓）所在的 sqlite 文件。
	DBPath string `toml:"db_path"`
}

type MarketConfig struct {
	// CandleDir 每个 symbol@timeframe 一个 sqlite 文件的根目录。
	CandleDir string `toml:"candle_dir"`
	Source    string `toml:"source"`
	RESTBase  string `toml:"rest_base"`
}

type ScanConfig struct {
	IntervalSeconds int      `toml:"interval_seconds"`
	SymbolLimit     int      `toml:"symbol_limit"`
	MinBars         int      `toml:"min_bars"`
	LookbackBars    int      `toml:"lookback_bars"`
	Timeframes      []string `toml:"timeframes"`
}

type StrategyConfig struct {
	// Enabled 为空表示启用全部已注册策略。
	Enabled     []string           `toml:"enabled"`
	ProfilePath string             `toml:"profile_path"`
	Weights     map[string]float64 `toml:"weights"`
}

type RiskConfig struct {
	PrecedenceAllowWithin   int `toml:"precedence_allow_within"`
	PrecedenceRejectBeyond  int `toml:"precedence_reject_beyond"`
	TrailingIntervalSeconds int `toml:"trailing_interval_seconds"`
}

type BacktestConfig struct {
	SafetyFactor        float64 `toml:"safety_factor"`
	CommissionPerShare  float64 `toml:"commission_per_share"`
	AggregationWindowMs int64   `toml:"aggregation_window_ms"`
	Concurrency         int     `toml:"concurrency"`
	ReportDir           string  `toml:"report_dir"`
}

type SentimentConfig struct {
	// Provider: noop 或 file。
	Provider   string `toml:"provider"`
	Path       string `toml:"path"`
	Window     int    `toml:"window"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
