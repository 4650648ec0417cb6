package backtest

// RunRequest 是 POST /api/backtest/run 的请求体。
type RunRequest struct {
	Symbols    []string `json:"symbols" binding:"required,min=1"`
	Timeframes []string `json:"timeframes" binding:"required,min=1"`
	Start      int64    `json:"start" binding:"required"`
	End        int64    `json:"end" binding:"required"`
	Strategies []string `json:"strategies"`
	// CommissionPerShare 每股固定佣金（默认 0）。
	CommissionPerShare float64 `json:"commission_per_share"`
	// SafetyFactor 最小盈利门槛的安全系数（默认 1.5）。
	SafetyFactor float64 `json:"safety_factor"`
	// AggregationWindowMs >0 时合并窗口内同向信号为一笔成交。
	AggregationWindowMs int64 `json:"aggregation_window_ms"`
	// Concurrency 同时回测的 symbol 数（默认 4）。单个 symbol 内
	// 始终按时间串行。
	Concurrency int `json:"concurrency"`
}

// RunConfig 是校验、对齐后的回测配置，随 run 落库。
type RunConfig struct {
	Symbols             []string `json:"symbols"`
	Timeframes          []string `json:"timeframes"`
	Start               int64    `json:"start"`
	End                 int64    `json:"end"`
	Strategies          []string `json:"strategies"`
	CommissionPerShare  float64  `json:"commission_per_share"`
	SafetyFactor        float64  `json:"safety_factor"`
	AggregationWindowMs int64    `json:"aggregation_window_ms"`
	Concurrency         int      `json:"concurrency"`
}

// SymbolStats 单 symbol 的回放统计。
type SymbolStats struct {
	Symbol   string `json:"symbol"`
	Signals  int    `json:"signals"`
	Executed int    `json:"executed"`
	Skipped  int    `json:"skipped"`
	Errored  int    `json:"errored"`
}

// RunStats 整个 run 的汇总统计。
type RunStats struct {
	Signals   int           `json:"signals"`
	Executed  int           `json:"executed"`
	Skipped   int           `json:"skipped"`
	Errored   int           `json:"errored"`
	Symbols   []SymbolStats `json:"symbols"`
	ReportURI string        `json:"report_uri,omitempty"`
}
