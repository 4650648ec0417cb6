package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vela/internal/analytics"
	"vela/internal/backtest"
	"vela/internal/execution"
	"vela/internal/market"
	"vela/internal/risk"
	"vela/internal/scanner"
	"vela/internal/store"
)

// Server 提供信号/订单/持仓/风控/回测的 HTTP API。
type Server struct {
	addr      string
	store     *store.Store
	candles   *market.CandleStore
	scan      *scanner.Scanner
	riskEng   *risk.Engine
	trailing  *risk.TrailingStops
	executor  *execution.Executor
	sim       *execution.Simulator
	analytics *analytics.Service
	runner    *backtest.Runner
	router    *gin.Engine
}

// Config 描述 HTTP Server 的依赖。
type Config struct {
	Addr      string
	Store     *store.Store
	Candles   *market.CandleStore
	Scanner   *scanner.Scanner
	Risk      *risk.Engine
	Trailing  *risk.TrailingStops
	Executor  *execution.Executor
	Simulator *execution.Simulator
	Analytics *analytics.Service
	Runner    *backtest.Runner
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("store 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9992"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:      cfg.Addr,
		store:     cfg.Store,
		candles:   cfg.Candles,
		scan:      cfg.Scanner,
		riskEng:   cfg.Risk,
		trailing:  cfg.Trailing,
		executor:  cfg.Executor,
		sim:       cfg.Simulator,
		analytics: cfg.Analytics,
		runner:    cfg.Runner,
		router:    router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	api.POST("/scan", s.handleScan)

	api.POST("/orders", s.handleCreateOrder)
	api.GET("/orders", s.handleListOrders)
	api.GET("/positions", s.handleListPositions)
	api.GET("/signals", s.handleListSignals)

	riskGroup := api.Group("/risk")
	riskGroup.GET("/limits", s.handleGetRiskLimits)
	riskGroup.PUT("/limits", s.handleUpdateRiskLimits)
	riskGroup.POST("/size", s.handleSuggestSize)
	riskGroup.POST("/trailing", s.handleTrailing)
	riskGroup.POST("/pause", s.handlePause)

	api.GET("/pnl/summary", s.handlePnLSummary)

	api.POST("/candles", s.handleIngestCandles)
	api.GET("/candles", s.handleGetCandles)

	bt := api.Group("/backtest")
	bt.POST("/run", s.handleBacktestRun)
	bt.GET("/runs/:id", s.handleBacktestRunDetail)
}

// Start 阻塞运行直到 ctx 取消，随后 5 秒内优雅关停。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
