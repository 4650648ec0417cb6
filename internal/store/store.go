package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	_ "modernc.org/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"vela/internal/types"
)

// Run 状态流转：pending → running → done/failed。
const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

const defaultEquity = 1_000_000

// Store 基于 Gorm + SQLite 的统一持久层：信号、订单、成交、持仓、
// 风控参数与运行记录都落在同一个文件。
type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store: 数据库路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&SignalModel{},
		&OrderModel{},
		&TradeModel{},
		&PositionModel{},
		&RiskLimitsModel{},
		&StrategyRunModel{},
		&BacktestRunModel{},
		&InstrumentModel{},
		&EquityCheckpointModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL：保留少量并发给 HTTP 读查询，同时压低锁竞争。
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store 未初始化")
	}
	return nil
}

// --------------------- signals -------------------------

func (s *Store) InsertSignal(ctx context.Context, runID string, sig types.ScoredSignal) error {
	if err := s.ready(); err != nil {
		return err
	}
	m := SignalModel{
		RunID:          runID,
		Symbol:         sig.Symbol,
		Strategy:       sig.Strategy,
		Action:         string(sig.Action),
		Timeframe:      sig.Timeframe,
		Entry:          sig.Entry,
		Stop:           sig.Stop,
		Target:         sig.Target,
		BaseConfidence: sig.BaseConfidence,
		Confidence:     sig.Confidence,
		Rationale:      marshalJSON(sig.Rationale),
		Scoring:        marshalJSON(sig.Scoring),
		At:             sig.At,
		CreatedAtUnix:  time.Now().UnixMilli(),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// SignalFilter 为空的字段不参与过滤。
type SignalFilter struct {
	Symbol   string
	Strategy string
	RunID    string
	Limit    int
}

func (s *Store) ListSignals(ctx context.Context, f SignalFilter) ([]types.ScoredSignal, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Model(&SignalModel{}).Order("at DESC, id DESC")
	if f.Symbol != "" {
		q = q.Where("symbol = ?", strings.ToUpper(f.Symbol))
	}
	if f.Strategy != "" {
		q = q.Where("strategy = ?", f.Strategy)
	}
	if f.RunID != "" {
		q = q.Where("run_id = ?", f.RunID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []SignalModel
	if err := q.Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.ScoredSignal, 0, len(models))
	for _, m := range models {
		out = append(out, types.ScoredSignal{
			Signal: types.Signal{
				Symbol:         m.Symbol,
				Strategy:       m.Strategy,
				Action:         types.Action(m.Action),
				Timeframe:      m.Timeframe,
				Entry:          m.Entry,
				Stop:           m.Stop,
				Target:         m.Target,
				BaseConfidence: m.BaseConfidence,
				Rationale:      unmarshalRationale(m.Rationale),
				At:             m.At,
			},
			Confidence: m.Confidence,
			Scoring:    unmarshalRationale(m.Scoring),
		})
	}
	return out, nil
}

// --------------------- orders / trades -------------------------

func (s *Store) InsertOrder(ctx context.Context, o types.Order) error {
	if err := s.ready(); err != nil {
		return err
	}
	m := OrderModel{
		ID:            o.ID,
		Symbol:        o.Symbol,
		Side:          string(o.Side),
		Type:          string(o.Type),
		LimitPrice:    o.LimitPrice,
		Quantity:      o.Quantity,
		Status:        string(o.Status),
		FillPrice:     o.FillPrice,
		FilledQty:     o.FilledQty,
		SlippageBps:   o.SlippageBps,
		Timeframe:     o.Timeframe,
		Notes:         marshalJSON(o.Notes),
		At:            o.At,
		CreatedAtUnix: time.Now().UnixMilli(),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

type OrderFilter struct {
	Symbol string
	Status string
	Limit  int
}

func (s *Store) ListOrders(ctx context.Context, f OrderFilter) ([]types.Order, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Model(&OrderModel{}).Order("at DESC, created_at DESC")
	if f.Symbol != "" {
		q = q.Where("symbol = ?", strings.ToUpper(f.Symbol))
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []OrderModel
	if err := q.Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	return ordersFromModels(models), nil
}

// FilledOrdersBetween 返回 [start, end] 内全部 FILLED/PARTIAL 订单，升序。
// 权益曲线与盈亏汇总以此为唯一数据源。
func (s *Store) FilledOrdersBetween(ctx context.Context, start, end int64) ([]types.Order, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var models []OrderModel
	err := s.db.WithContext(ctx).
		Where("status IN ? AND at BETWEEN ? AND ?",
			[]string{string(types.OrderStatusFilled), string(types.OrderStatusPartial)}, start, end).
		Order("at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return ordersFromModels(models), nil
}

func ordersFromModels(models []OrderModel) []types.Order {
	out := make([]types.Order, 0, len(models))
	for _, m := range models {
		out = append(out, types.Order{
			ID:          m.ID,
			Symbol:      m.Symbol,
			Side:        types.Action(m.Side),
			Type:        types.OrderType(m.Type),
			LimitPrice:  m.LimitPrice,
			Quantity:    m.Quantity,
			Status:      types.OrderStatus(m.Status),
			FillPrice:   m.FillPrice,
			FilledQty:   m.FilledQty,
			SlippageBps: m.SlippageBps,
			Timeframe:   m.Timeframe,
			Notes:       unmarshalNotes(m.Notes),
			At:          m.At,
		})
	}
	return out
}

func (s *Store) InsertTrade(ctx context.Context, t types.Trade) error {
	if err := s.ready(); err != nil {
		return err
	}
	m := TradeModel{
		OrderID:       t.OrderID,
		Symbol:        t.Symbol,
		Side:          string(t.Side),
		Price:         t.Price,
		Quantity:      t.Quantity,
		At:            t.At,
		CreatedAtUnix: time.Now().UnixMilli(),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

func (s *Store) ListTrades(ctx context.Context, symbol string, limit int) ([]types.Trade, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Model(&TradeModel{}).Order("at DESC, id DESC")
	if symbol != "" {
		q = q.Where("symbol = ?", strings.ToUpper(symbol))
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []TradeModel
	if err := q.Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.Trade, 0, len(models))
	for _, m := range models {
		out = append(out, types.Trade{
			OrderID:  m.OrderID,
			Symbol:   m.Symbol,
			Side:     types.Action(m.Side),
			Price:    m.Price,
			Quantity: m.Quantity,
			At:       m.At,
		})
	}
	return out, nil
}

// --------------------- positions -------------------------

func (s *Store) UpsertPosition(ctx context.Context, p types.Position) error {
	if err := s.ready(); err != nil {
		return err
	}
	m := PositionModel{
		Symbol:        strings.ToUpper(p.Symbol),
		Quantity:      p.Quantity,
		AvgPrice:      p.AvgPrice,
		RealizedPnL:   p.RealizedPnL,
		Timeframe:     p.Timeframe,
		UpdatedAtUnix: p.UpdatedAt,
	}
	if m.UpdatedAtUnix == 0 {
		m.UpdatedAtUnix = time.Now().UnixMilli()
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			UpdateAll: true,
		}).
		Create(&m).Error
}

func (s *Store) GetPosition(ctx context.Context, symbol string) (types.Position, bool, error) {
	if err := s.ready(); err != nil {
		return types.Position{}, false, err
	}
	var m PositionModel
	err := s.db.WithContext(ctx).Where("symbol = ?", strings.ToUpper(symbol)).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Position{}, false, nil
	}
	if err != nil {
		return types.Position{}, false, err
	}
	return positionFromModel(m), true, nil
}

func (s *Store) ListPositions(ctx context.Context) ([]types.Position, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var models []PositionModel
	if err := s.db.WithContext(ctx).Order("symbol ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.Position, 0, len(models))
	for _, m := range models {
		out = append(out, positionFromModel(m))
	}
	return out, nil
}

func positionFromModel(m PositionModel) types.Position {
	return types.Position{
		Symbol:      m.Symbol,
		Quantity:    m.Quantity,
		AvgPrice:    m.AvgPrice,
		RealizedPnL: m.RealizedPnL,
		Timeframe:   m.Timeframe,
		UpdatedAt:   m.UpdatedAtUnix,
	}
}

// --------------------- risk limits -------------------------

// GetRiskLimits 不存在时返回默认值（不落库，首次更新才写入）。
func (s *Store) GetRiskLimits(ctx context.Context) (types.RiskLimits, error) {
	if err := s.ready(); err != nil {
		return types.RiskLimits{}, err
	}
	var m RiskLimitsModel
	err := s.db.WithContext(ctx).Where("id = 1").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.DefaultRiskLimits(), nil
	}
	if err != nil {
		return types.RiskLimits{}, err
	}
	return types.RiskLimits{
		MaxCapitalPerTradePct:   m.MaxCapitalPerTradePct,
		MaxDailyLossPct:         m.MaxDailyLossPct,
		MaxPortfolioDrawdownPct: m.MaxPortfolioDrawdownPct,
		MaxSectorExposurePct:    m.MaxSectorExposurePct,
		CircuitBreakerPct:       m.CircuitBreakerPct,
		KellyFraction:           m.KellyFraction,
		PauseAll:                m.PauseAll,
	}, nil
}

func (s *Store) UpdateRiskLimits(ctx context.Context, l types.RiskLimits) error {
	if err := s.ready(); err != nil {
		return err
	}
	m := RiskLimitsModel{
		ID:                      1,
		MaxCapitalPerTradePct:   l.MaxCapitalPerTradePct,
		MaxDailyLossPct:         l.MaxDailyLossPct,
		MaxPortfolioDrawdownPct: l.MaxPortfolioDrawdownPct,
		MaxSectorExposurePct:    l.MaxSectorExposurePct,
		CircuitBreakerPct:       l.CircuitBreakerPct,
		KellyFraction:           l.KellyFraction,
		PauseAll:                l.PauseAll,
		UpdatedAtUnix:           time.Now().UnixMilli(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&m).Error
}

func (s *Store) SetPaused(ctx context.Context, paused bool) error {
	limits, err := s.GetRiskLimits(ctx)
	if err != nil {
		return err
	}
	limits.PauseAll = paused
	return s.UpdateRiskLimits(ctx, limits)
}

// --------------------- runs -------------------------

func (s *Store) InsertStrategyRun(ctx context.Context, runID, mode string) error {
	if err := s.ready(); err != nil {
		return err
	}
	m := StrategyRunModel{
		RunID:         runID,
		Mode:          mode,
		Status:        RunStatusRunning,
		StartedAtUnix: time.Now().UnixMilli(),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

func (s *Store) CompleteStrategyRun(ctx context.Context, runID string, signalsGenerated int, status string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&StrategyRunModel{}).
		Where("run_id = ?", runID).
		Updates(map[string]interface{}{
			"signals_generated": signalsGenerated,
			"status":            status,
			"completed_at":      time.Now().UnixMilli(),
		}).Error
}

func (s *Store) InsertBacktestRun(ctx context.Context, runID string, config any) error {
	if err := s.ready(); err != nil {
		return err
	}
	m := BacktestRunModel{
		RunID:         runID,
		Status:        RunStatusPending,
		Config:        marshalJSON(config),
		StartedAtUnix: time.Now().UnixMilli(),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

func (s *Store) SetBacktestRunStatus(ctx context.Context, runID, status, errMsg string) error {
	if err := s.ready(); err != nil {
		return err
	}
	updates := map[string]interface{}{"status": status, "error": errMsg}
	if status == RunStatusDone || status == RunStatusFailed {
		updates["completed_at"] = time.Now().UnixMilli()
	}
	return s.db.WithContext(ctx).Model(&BacktestRunModel{}).
		Where("run_id = ?", runID).Updates(updates).Error
}

func (s *Store) SaveBacktestStats(ctx context.Context, runID string, stats any) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&BacktestRunModel{}).
		Where("run_id = ?", runID).
		Update("stats", marshalJSON(stats)).Error
}

func (s *Store) GetBacktestRun(ctx context.Context, runID string) (BacktestRunModel, bool, error) {
	if err := s.ready(); err != nil {
		return BacktestRunModel{}, false, err
	}
	var m BacktestRunModel
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return BacktestRunModel{}, false, nil
	}
	if err != nil {
		return BacktestRunModel{}, false, err
	}
	return m, true, nil
}

// --------------------- instruments -------------------------

func (s *Store) UpsertInstruments(ctx context.Context, list []types.Instrument) error {
	if err := s.ready(); err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}
	models := make([]InstrumentModel, 0, len(list))
	for _, in := range list {
		lot := in.LotSize
		if lot <= 0 {
			lot = 1
		}
		models = append(models, InstrumentModel{
			Ticker:     strings.ToUpper(in.Ticker),
			Exchange:   in.Exchange,
			Sector:     in.Sector,
			LotSize:    lot,
			Active:     in.Active,
			FeedSymbol: in.FeedSymbol,
		})
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticker"}},
			UpdateAll: true,
		}).
		Create(&models).Error
}

// ActiveInstruments 返回启用的标的，按 ticker 排序，最多 limit 个。
func (s *Store) ActiveInstruments(ctx context.Context, limit int) ([]types.Instrument, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	var models []InstrumentModel
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("ticker ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.Instrument, 0, len(models))
	for _, m := range models {
		out = append(out, instrumentFromModel(m))
	}
	return out, nil
}

// GetInstrument 未登记的 symbol 返回 lot=1 的缺省元数据。
func (s *Store) GetInstrument(ctx context.Context, symbol string) (types.Instrument, error) {
	if err := s.ready(); err != nil {
		return types.Instrument{}, err
	}
	var m InstrumentModel
	err := s.db.WithContext(ctx).Where("ticker = ?", strings.ToUpper(symbol)).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Instrument{Ticker: strings.ToUpper(symbol), LotSize: 1, Active: true}, nil
	}
	if err != nil {
		return types.Instrument{}, err
	}
	return instrumentFromModel(m), nil
}

func instrumentFromModel(m InstrumentModel) types.Instrument {
	lot := m.LotSize
	if lot <= 0 {
		lot = 1
	}
	return types.Instrument{
		Ticker:     m.Ticker,
		Exchange:   m.Exchange,
		Sector:     m.Sector,
		LotSize:    lot,
		Active:     m.Active,
		FeedSymbol: m.FeedSymbol,
	}
}

// --------------------- equity -------------------------

// LatestEquity 没有任何快照时返回默认初始资金。
func (s *Store) LatestEquity(ctx context.Context) (float64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var m EquityCheckpointModel
	err := s.db.WithContext(ctx).Order("at DESC, id DESC").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultEquity, nil
	}
	if err != nil {
		return 0, err
	}
	return m.Equity, nil
}

// DayOpenEquity 返回今日第一笔权益快照；当天没有快照时回退到最近一笔，
// 仍然没有则返回默认初始资金。
func (s *Store) DayOpenEquity(ctx context.Context) (float64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).UnixMilli()
	var m EquityCheckpointModel
	err := s.db.WithContext(ctx).
		Where("at >= ?", dayStart).
		Order("at ASC, id ASC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.LatestEquity(ctx)
	}
	if err != nil {
		return 0, err
	}
	return m.Equity, nil
}

func (s *Store) SaveEquityCheckpoint(ctx context.Context, equity float64, at int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	if at == 0 {
		at = time.Now().UnixMilli()
	}
	return s.db.WithContext(ctx).Create(&EquityCheckpointModel{Equity: equity, At: at}).Error
}
