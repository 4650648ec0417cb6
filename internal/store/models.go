package store

import (
	"encoding/json"

	"gorm.io/datatypes"

	"vela/internal/types"
)

// SignalModel 持久化一条经过打分的信号。rationale/scoring 以 JSON 存储，
// 便于事后逐项复盘打分分解。
type SignalModel struct {
	ID             int64          `gorm:"column:id;primaryKey"`
	RunID          string         `gorm:"column:run_id;index"`
	Symbol         string         `gorm:"column:symbol;index"`
	Strategy       string         `gorm:"column:strategy;index"`
	Action         string         `gorm:"column:action"`
	Timeframe      string         `gorm:"column:timeframe"`
	Entry          float64        `gorm:"column:entry"`
	Stop           float64        `gorm:"column:stop"`
	Target         float64        `gorm:"column:target"`
	BaseConfidence float64        `gorm:"column:base_confidence"`
	Confidence     float64        `gorm:"column:confidence"`
	Rationale      datatypes.JSON `gorm:"column:rationale;type:TEXT"`
	Scoring        datatypes.JSON `gorm:"column:scoring;type:TEXT"`
	At             int64          `gorm:"column:at;index"`
	CreatedAtUnix  int64          `gorm:"column:created_at"`
}

func (SignalModel) TableName() string { return "signals" }

type OrderModel struct {
	ID            string         `gorm:"column:id;primaryKey"`
	Symbol        string         `gorm:"column:symbol;index"`
	Side          string         `gorm:"column:side"`
	Type          string         `gorm:"column:type"`
	LimitPrice    float64        `gorm:"column:limit_price"`
	Quantity      float64        `gorm:"column:quantity"`
	Status        string         `gorm:"column:status;index"`
	FillPrice     float64        `gorm:"column:fill_price"`
	FilledQty     float64        `gorm:"column:filled_qty"`
	SlippageBps   float64        `gorm:"column:slippage_bps"`
	Timeframe     string         `gorm:"column:timeframe"`
	Notes         datatypes.JSON `gorm:"column:notes;type:TEXT"`
	At            int64          `gorm:"column:at;index"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
}

func (OrderModel) TableName() string { return "orders" }

type TradeModel struct {
	ID            int64   `gorm:"column:id;primaryKey"`
	OrderID       string  `gorm:"column:order_id;index"`
	Symbol        string  `gorm:"column:symbol;index"`
	Side          string  `gorm:"column:side"`
	Price         float64 `gorm:"column:price"`
	Quantity      float64 `gorm:"column:quantity"`
	At            int64   `gorm:"column:at;index"`
	CreatedAtUnix int64   `gorm:"column:created_at"`
}

func (TradeModel) TableName() string { return "trades" }

type PositionModel struct {
	Symbol        string  `gorm:"column:symbol;primaryKey"`
	Quantity      float64 `gorm:"column:quantity"`
	AvgPrice      float64 `gorm:"column:avg_price"`
	RealizedPnL   float64 `gorm:"column:realized_pnl"`
	Timeframe     string  `gorm:"column:timeframe"`
	UpdatedAtUnix int64   `gorm:"column:updated_at"`
}

func (PositionModel) TableName() string { return "positions" }

// RiskLimitsModel 单行表（id=1），保存操作员配置的风控参数。
type RiskLimitsModel struct {
	ID                      int64   `gorm:"column:id;primaryKey"`
	MaxCapitalPerTradePct   float64 `gorm:"column:max_capital_per_trade_pct"`
	MaxDailyLossPct         float64 `gorm:"column:max_daily_loss_pct"`
	MaxPortfolioDrawdownPct float64 `gorm:"column:max_portfolio_drawdown_pct"`
	MaxSectorExposurePct    float64 `gorm:"column:max_sector_exposure_pct"`
	CircuitBreakerPct       float64 `gorm:"column:circuit_breaker_pct"`
	KellyFraction           float64 `gorm:"column:kelly_fraction"`
	PauseAll                bool    `gorm:"column:pause_all"`
	UpdatedAtUnix           int64   `gorm:"column:updated_at"`
}

func (RiskLimitsModel) TableName() string { return "risk_limits" }

type StrategyRunModel struct {
	RunID            string `gorm:"column:run_id;primaryKey"`
	Mode             string `gorm:"column:mode"`
	Status           string `gorm:"column:status"`
	SignalsGenerated int    `gorm:"column:signals_generated"`
	StartedAtUnix    int64  `gorm:"column:started_at"`
	CompletedAtUnix  int64  `gorm:"column:completed_at"`
}

func (StrategyRunModel) TableName() string { return "strategy_runs" }

type BacktestRunModel struct {
	RunID           string         `gorm:"column:run_id;primaryKey"`
	Status          string         `gorm:"column:status;index"`
	Config          datatypes.JSON `gorm:"column:config;type:TEXT"`
	Stats           datatypes.JSON `gorm:"column:stats;type:TEXT"`
	Error           string         `gorm:"column:error"`
	StartedAtUnix   int64          `gorm:"column:started_at"`
	CompletedAtUnix int64          `gorm:"column:completed_at"`
}

func (BacktestRunModel) TableName() string { return "backtest_runs" }

type InstrumentModel struct {
	Ticker     string  `gorm:"column:ticker;primaryKey"`
	Exchange   string  `gorm:"column:exchange"`
	Sector     string  `gorm:"column:sector"`
	LotSize    float64 `gorm:"column:lot_size"`
	Active     bool    `gorm:"column:active;index"`
	FeedSymbol string  `gorm:"column:feed_symbol"`
}

func (InstrumentModel) TableName() string { return "symbols" }

type EquityCheckpointModel struct {
	ID     int64   `gorm:"column:id;primaryKey"`
	Equity float64 `gorm:"column:equity"`
	At     int64   `gorm:"column:at;index"`
}

func (EquityCheckpointModel) TableName() string { return "equity_checkpoints" }

func marshalJSON(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}

func unmarshalRationale(data datatypes.JSON) types.Rationale {
	if len(data) == 0 {
		return nil
	}
	var r types.Rationale
	if err := json.Unmarshal(data, &r); err != nil {
		return nil
	}
	return r
}

func unmarshalNotes(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}
