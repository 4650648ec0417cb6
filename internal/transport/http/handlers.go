package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"vela/internal/backtest"
	"vela/internal/execution"
	"vela/internal/market"
	"vela/internal/store"
	"vela/internal/types"
)

// candleBatchSchema 校验外部推送的 K 线批次，坏数据挡在入库之前。
const candleBatchSchema = `{
	"type": "object",
	"required": ["symbol", "timeframe", "candles"],
	"properties": {
		"symbol": {"type": "string", "minLength": 1},
		"timeframe": {"type": "string", "minLength": 1},
		"candles": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["open_time", "close_time", "open", "high", "low", "close", "volume"],
				"properties": {
					"open_time": {"type": "integer", "minimum": 1},
					"close_time": {"type": "integer", "minimum": 1},
					"open": {"type": "number"},
					"high": {"type": "number"},
					"low": {"type": "number"},
					"close": {"type": "number"},
					"volume": {"type": "number", "minimum": 0}
				}
			}
		}
	}
}`

var candleSchema = jsonschema.MustCompileString("candles.json", candleBatchSchema)

func remarshal(from any, to any) error {
	data, err := json.Marshal(from)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, to)
}

func (s *Server) handleScan(c *gin.Context) {
	var req struct {
		Mode string `json:"mode"`
	}
	_ = c.ShouldBindJSON(&req)
	if strings.TrimSpace(req.Mode) == "" {
		req.Mode = "manual"
	}
	res, err := s.scan.ScanOnce(c.Request.Context(), req.Mode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCreateOrder(c *gin.Context) {
	var req struct {
		Symbol     string  `json:"symbol" binding:"required"`
		Side       string  `json:"side" binding:"required,oneof=BUY SELL"`
		Type       string  `json:"type" binding:"required,oneof=MARKET LIMIT"`
		Quantity   float64 `json:"quantity" binding:"required,gt=0"`
		LimitPrice float64 `json:"limit_price"`
		Timeframe  string  `json:"timeframe"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	symbol := strings.ToUpper(req.Symbol)
	blocked, reason, err := s.riskEng.ShouldBlockOrder(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if blocked {
		c.JSON(http.StatusForbidden, gin.H{"error": reason})
		return
	}
	tf := req.Timeframe
	if tf == "" {
		tf = "15m"
	}
	candles, err := s.candles.LatestCandles(c.Request.Context(), symbol, tf, 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(candles) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no market data for " + symbol})
		return
	}
	order, err := s.sim.Simulate(execution.Request{
		Symbol:     symbol,
		Side:       types.Action(req.Side),
		Type:       types.OrderType(req.Type),
		Quantity:   req.Quantity,
		LimitPrice: req.LimitPrice,
		Timeframe:  tf,
	}, candles)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// 先入账：账本可能钳制数量或把无持仓的卖单降级为零成交。
	if order.Status != types.OrderStatusRejected {
		if _, err := s.executor.ApplyFillForOrder(c.Request.Context(), &order); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	if err := s.store.InsertOrder(c.Request.Context(), order); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) handleListOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	orders, err := s.store.ListOrders(c.Request.Context(), store.OrderFilter{
		Symbol: c.Query("symbol"),
		Status: c.Query("status"),
		Limit:  limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *Server) handleListPositions(c *gin.Context) {
	positions, err := s.store.ListPositions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (s *Server) handleListSignals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	signals, err := s.store.ListSignals(c.Request.Context(), store.SignalFilter{
		Symbol:   c.Query("symbol"),
		Strategy: c.Query("strategy"),
		RunID:    c.Query("run_id"),
		Limit:    limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals})
}

func (s *Server) handleGetRiskLimits(c *gin.Context) {
	limits, err := s.riskEng.Limits(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, limits)
}

func (s *Server) handleUpdateRiskLimits(c *gin.Context) {
	var limits types.RiskLimits
	if err := c.ShouldBindJSON(&limits); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.riskEng.UpdateLimits(c.Request.Context(), limits); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, limits)
}

func (s *Server) handleSuggestSize(c *gin.Context) {
	var req struct {
		Symbol string  `json:"symbol" binding:"required"`
		Price  float64 `json:"price" binding:"required,gt=0"`
		ATR    float64 `json:"atr"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	qty, err := s.riskEng.SuggestPositionSize(c.Request.Context(), strings.ToUpper(req.Symbol), req.Price, req.ATR)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": strings.ToUpper(req.Symbol), "quantity": qty})
}

func (s *Server) handleTrailing(c *gin.Context) {
	exits, err := s.trailing.Apply(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exits": exits})
}

func (s *Server) handlePause(c *gin.Context) {
	var req struct {
		Paused *bool `json:"paused" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var err error
	if *req.Paused {
		err = s.riskEng.Pause(c.Request.Context())
	} else {
		err = s.riskEng.Resume(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": *req.Paused})
}

func (s *Server) handlePnLSummary(c *gin.Context) {
	end, _ := strconv.ParseInt(c.DefaultQuery("end", "0"), 10, 64)
	if end <= 0 {
		end = time.Now().UnixMilli()
	}
	start, _ := strconv.ParseInt(c.DefaultQuery("start", "0"), 10, 64)
	if start <= 0 {
		start = end - 90*24*int64(time.Hour/time.Millisecond)
	}
	sum, err := s.analytics.PnLSummary(c.Request.Context(), start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) handleIngestCandles(c *gin.Context) {
	var payload any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := candleSchema.Validate(payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req struct {
		Symbol    string          `json:"symbol"`
		Timeframe string          `json:"timeframe"`
		Candles   []market.Candle `json:"candles"`
	}
	if err := remarshal(payload, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := market.ParseTimeframe(req.Timeframe); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := s.candles.InsertCandles(c.Request.Context(), req.Symbol, req.Timeframe, req.Candles)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"inserted": n})
}

func (s *Server) handleGetCandles(c *gin.Context) {
	symbol := c.Query("symbol")
	tf := c.Query("timeframe")
	if symbol == "" || tf == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol/timeframe 不能为空"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	candles, err := s.candles.LatestCandles(c.Request.Context(), symbol, tf, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"candles": candles})
}

func (s *Server) handleBacktestRun(c *gin.Context) {
	var req backtest.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	runID, err := s.runner.StartRun(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "status": store.RunStatusPending})
}

func (s *Server) handleBacktestRunDetail(c *gin.Context) {
	run, ok, err := s.store.GetBacktestRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run 不存在"})
		return
	}
	c.JSON(http.StatusOK, run)
}
