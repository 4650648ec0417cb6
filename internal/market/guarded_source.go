package market

import (
	"context"
	"fmt"
	"time"

	"vela/internal/pkg/circuit"
)

// GuardedSource 在远程行情源外面套一层熔断：连续失败后短路快速返回，
// 避免每次扫描都等一个挂掉的上游超时。
type GuardedSource struct {
	inner   Source
	breaker *circuit.CircuitBreaker
}

func NewGuardedSource(inner Source, threshold int, cooldown time.Duration) *GuardedSource {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &GuardedSource{
		inner:   inner,
		breaker: circuit.NewCircuitBreaker(inner.Name(), threshold, cooldown),
	}
}

func (g *GuardedSource) Name() string { return g.inner.Name() }

func (g *GuardedSource) Fetch(ctx context.Context, req FetchRequest) ([]Candle, error) {
	if !g.breaker.Allow() {
		return nil, fmt.Errorf("行情源 %s 熔断中", g.inner.Name())
	}
	candles, err := g.inner.Fetch(ctx, req)
	if err != nil {
		g.breaker.RecordFailure()
		return nil, err
	}
	g.breaker.RecordSuccess()
	return candles, nil
}
