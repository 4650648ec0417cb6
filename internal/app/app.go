package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	velacfg "vela/internal/config"
	"vela/internal/logger"
	"vela/internal/market"
	"vela/internal/risk"
	"vela/internal/scanner"
	"vela/internal/store"
	velahttp "vela/internal/transport/http"
)

// App 负责应用级编排：加载配置→初始化依赖→启动扫描循环与 HTTP 服务。
type App struct {
	cfg      *velacfg.Config
	store    *store.Store
	candles  *market.CandleStore
	scanner  *scanner.Scanner
	trailing *risk.TrailingStops
	server   *velahttp.Server
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *velacfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(cfg)
}

// Run 启动 HTTP 服务、定时扫描与追踪止损巡检，阻塞到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		a.scanner.Loop(ctx, time.Duration(a.cfg.Scan.IntervalSeconds)*time.Second)
		return nil
	})

	group.Go(func() error {
		a.trailingLoop(ctx, time.Duration(a.cfg.Risk.TrailingIntervalSeconds)*time.Second)
		return nil
	})

	return group.Wait()
}

func (a *App) trailingLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			exits, err := a.trailing.Apply(ctx)
			if err != nil {
				logger.Errorf("追踪止损巡检失败: %v", err)
				continue
			}
			if exits > 0 {
				logger.Infof("追踪止损触发 %d 笔离场", exits)
			}
		}
	}
}

func (a *App) close() {
	if a.candles != nil {
		_ = a.candles.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
