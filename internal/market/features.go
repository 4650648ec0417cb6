package market

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

// Value is one indicator reading. OK=false means the feature is unavailable
// at that bar (warmup window, missing input, or a NaN from the math), which
// callers must treat as "no data" rather than zero.
type Value struct {
	V  float64
	OK bool
}

// Or returns the reading or def when unavailable.
func (v Value) Or(def float64) float64 {
	if v.OK {
		return v.V
	}
	return def
}

// Snapshot 是一根 K 线加上在该 bar 收盘时可见的全部衍生指标。
type Snapshot struct {
	OpenTime  int64
	CloseTime int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64

	EMA20      Value
	EMA50      Value
	RSI14      Value
	MACD       Value
	MACDSignal Value
	MACDHist   Value
	BBUpper    Value
	BBMid      Value
	BBLower    Value
	BBWidth    Value
	ATR14      Value
	ADX14      Value
	VWAP       Value
	VolAvg20   Value
	VolStd20   Value
	VolZ       Value
}

const (
	emaFastPeriod = 20
	emaSlowPeriod = 50
	rsiPeriod     = 14
	macdFast      = 12
	macdSlow      = 26
	macdSignal    = 9
	bbPeriod      = 20
	bbDeviation   = 2.0
	atrPeriod     = 14
	adxPeriod     = 14
	volWindow     = 20
)

// ComputeFeatures derives the full indicator set for a candle series.
// The output is index-aligned with the input so detectors can replay
// history with an explicit as-of index.
func ComputeFeatures(candles []Candle) []Snapshot {
	n := len(candles)
	if n == 0 {
		return nil
	}
	cl := closes(candles)
	hi := highs(candles)
	lo := lows(candles)
	vol := volumes(candles)

	out := make([]Snapshot, n)
	for i, c := range candles {
		out[i] = Snapshot{
			OpenTime:  c.OpenTime,
			CloseTime: c.CloseTime,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		}
	}

	if n >= emaFastPeriod {
		assign(out, talib.Ema(cl, emaFastPeriod), emaFastPeriod-1, func(s *Snapshot, v Value) { s.EMA20 = v })
	}
	if n >= emaSlowPeriod {
		assign(out, talib.Ema(cl, emaSlowPeriod), emaSlowPeriod-1, func(s *Snapshot, v Value) { s.EMA50 = v })
	}
	if n > rsiPeriod {
		assign(out, talib.Rsi(cl, rsiPeriod), rsiPeriod, func(s *Snapshot, v Value) { s.RSI14 = v })
	}
	if n >= macdSlow+macdSignal {
		macd, sig, hist := talib.Macd(cl, macdFast, macdSlow, macdSignal)
		warm := macdSlow + macdSignal - 2
		assign(out, macd, warm, func(s *Snapshot, v Value) { s.MACD = v })
		assign(out, sig, warm, func(s *Snapshot, v Value) { s.MACDSignal = v })
		assign(out, hist, warm, func(s *Snapshot, v Value) { s.MACDHist = v })
	}
	if n >= bbPeriod {
		upper, mid, lower := talib.BBands(cl, bbPeriod, bbDeviation, bbDeviation, talib.SMA)
		warm := bbPeriod - 1
		assign(out, upper, warm, func(s *Snapshot, v Value) { s.BBUpper = v })
		assign(out, mid, warm, func(s *Snapshot, v Value) { s.BBMid = v })
		assign(out, lower, warm, func(s *Snapshot, v Value) { s.BBLower = v })
		for i := warm; i < n; i++ {
			u, m, l := out[i].BBUpper, out[i].BBMid, out[i].BBLower
			if u.OK && m.OK && l.OK && m.V != 0 {
				out[i].BBWidth = Value{V: (u.V - l.V) / m.V, OK: true}
			}
		}
	}
	if n > atrPeriod {
		assign(out, talib.Atr(hi, lo, cl, atrPeriod), atrPeriod, func(s *Snapshot, v Value) { s.ATR14 = v })
	}
	if n > 2*adxPeriod {
		assign(out, talib.Adx(hi, lo, cl, adxPeriod), 2*adxPeriod-1, func(s *Snapshot, v Value) { s.ADX14 = v })
	}

	// VWAP 为区间累计口径：sum(典型价*量)/sum(量)。
	var cumPV, cumV float64
	for i := range out {
		typical := (hi[i] + lo[i] + cl[i]) / 3.0
		cumPV += typical * vol[i]
		cumV += vol[i]
		if cumV > 0 {
			out[i].VWAP = Value{V: cumPV / cumV, OK: true}
		}
	}

	// Rolling volume mean/std and z-score over a 20-bar window.
	for i := volWindow - 1; i < n; i++ {
		var sum float64
		for j := i - volWindow + 1; j <= i; j++ {
			sum += vol[j]
		}
		mean := sum / volWindow
		var sq float64
		for j := i - volWindow + 1; j <= i; j++ {
			d := vol[j] - mean
			sq += d * d
		}
		std := math.Sqrt(sq / (volWindow - 1))
		out[i].VolAvg20 = Value{V: mean, OK: true}
		out[i].VolStd20 = Value{V: std, OK: true}
		out[i].VolZ = Value{V: (vol[i] - mean) / (std + 1e-9), OK: true}
	}
	return out
}

func assign(out []Snapshot, series []float64, warm int, set func(*Snapshot, Value)) {
	for i := range out {
		if i >= len(series) {
			return
		}
		v := series[i]
		if i < warm || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		set(&out[i], Value{V: v, OK: true})
	}
}

// TrueRangeATR 以 rolling-14 均值口径计算 ATR 序列（追踪止损使用该口径，
// 与成交模拟的合成盘口保持一致）。
func TrueRangeATR(candles []Candle, period int) []Value {
	n := len(candles)
	out := make([]Value, n)
	if n == 0 || period <= 0 {
		return out
	}
	tr := make([]float64, n)
	for i, c := range candles {
		if i == 0 {
			tr[i] = c.High - c.Low
			continue
		}
		prevClose := candles[i-1].Close
		tr[i] = math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
	}
	for i := period - 1; i < n; i++ {
		var sum float64
		for j := i - period + 1; j <= i; j++ {
			sum += tr[j]
		}
		out[i] = Value{V: sum / float64(period), OK: true}
	}
	return out
}

// RollingMax 返回 window 窗口内收盘价最大值序列。
func RollingMax(values []float64, window int) []Value {
	return rollingExtreme(values, window, func(a, b float64) bool { return a > b })
}

// RollingMin 返回 window 窗口内收盘价最小值序列。
func RollingMin(values []float64, window int) []Value {
	return rollingExtreme(values, window, func(a, b float64) bool { return a < b })
}

func rollingExtreme(values []float64, window int, better func(a, b float64) bool) []Value {
	n := len(values)
	out := make([]Value, n)
	if window <= 0 {
		return out
	}
	for i := window - 1; i < n; i++ {
		best := values[i-window+1]
		for j := i - window + 2; j <= i; j++ {
			if better(values[j], best) {
				best = values[j]
			}
		}
		out[i] = Value{V: best, OK: true}
	}
	return out
}
