package market

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Timeframe 描述信号周期。Rank 为优先级：持仓归属于开仓周期，
// 低优先级周期的信号受其约束。
type Timeframe struct {
	Key      string
	Duration time.Duration
	Rank     int
}

var supportedTimeframes = map[string]Timeframe{
	"1m":  {Key: "1m", Duration: time.Minute, Rank: 1},
	"5m":  {Key: "5m", Duration: 5 * time.Minute, Rank: 2},
	"15m": {Key: "15m", Duration: 15 * time.Minute, Rank: 3},
	"1h":  {Key: "1h", Duration: time.Hour, Rank: 4},
	"1d":  {Key: "1d", Duration: 24 * time.Hour, Rank: 5},
}

// ParseTimeframe 返回标准化周期定义。
func ParseTimeframe(input string) (Timeframe, error) {
	key := strings.ToLower(strings.TrimSpace(input))
	tf, ok := supportedTimeframes[key]
	if !ok {
		return Timeframe{}, fmt.Errorf("不支持的周期: %s", input)
	}
	return tf, nil
}

// SupportedTimeframes 返回所有支持的 key（按优先级升序）。
func SupportedTimeframes() []string {
	keys := make([]string, 0, len(supportedTimeframes))
	for k := range supportedTimeframes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return supportedTimeframes[keys[i]].Rank < supportedTimeframes[keys[j]].Rank
	})
	return keys
}

// RankOf 返回周期优先级；未知周期返回 0。
func RankOf(key string) int {
	tf, ok := supportedTimeframes[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return 0
	}
	return tf.Rank
}

func (tf Timeframe) durationMillis() int64 {
	return tf.Duration.Milliseconds()
}

func alignDown(ts, step int64) int64 {
	if step <= 0 {
		return ts
	}
	rem := ts % step
	if rem < 0 {
		rem += step
	}
	return ts - rem
}

// AlignRange 将毫秒时间对齐到周期网格，保证 start<=end。
func (tf Timeframe) AlignRange(start, end int64) (int64, int64) {
	step := tf.durationMillis()
	if end < start {
		start, end = end, start
	}
	alStart := alignDown(start, step)
	alEnd := alignDown(end, step)
	if alEnd < alStart {
		alEnd = alStart
	}
	return alStart, alEnd
}

// ExpectedBars 计算 start~end（含）区间应有的 K 线数量。
func (tf Timeframe) ExpectedBars(start, end int64) int64 {
	if end < start {
		return 0
	}
	step := tf.durationMillis()
	if step == 0 {
		return 0
	}
	return ((end - start) / step) + 1
}
