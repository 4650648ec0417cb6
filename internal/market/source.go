package market

import "context"

// FetchRequest 描述一次远程 K 线抓取。
type FetchRequest struct {
	Symbol    string
	Interval  string
	Start     int64
	End       int64
	Limit     int
}

// Source 提供远程 K 线抓取能力。实现方的失败只影响当前
// symbol/周期，调用方按 "no data" 降级处理。
type Source interface {
	Name() string
	Fetch(ctx context.Context, req FetchRequest) ([]Candle, error)
}
