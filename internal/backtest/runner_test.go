package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() RunRequest {
	return RunRequest{
		Symbols:    []string{"aapl", " msft "},
		Timeframes: []string{"15m"},
		Start:      1_700_000_100_000,
		End:        1_700_086_400_000,
	}
}

func TestNormalizeDefaults(t *testing.T) {
	r := &Runner{}
	cfg, err := r.normalize(validRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Symbols)
	assert.Equal(t, []string{"15m"}, cfg.Timeframes)
	assert.Equal(t, defaultSafetyFactor, cfg.SafetyFactor)
	assert.Equal(t, defaultConcurrency, cfg.Concurrency)
}

func TestNormalizeAlignsRangeToFirstTimeframe(t *testing.T) {
	r := &Runner{}
	cfg, err := r.normalize(validRequest())
	require.NoError(t, err)

	step := int64(15 * 60 * 1000)
	assert.Zero(t, cfg.Start%step)
	assert.Zero(t, cfg.End%step)
	assert.LessOrEqual(t, cfg.Start, cfg.End)
}

func TestNormalizeRejectsEmptySymbols(t *testing.T) {
	r := &Runner{}
	req := validRequest()
	req.Symbols = nil
	_, err := r.normalize(req)
	assert.Error(t, err)
}

func TestNormalizeRejectsBadRange(t *testing.T) {
	r := &Runner{}
	req := validRequest()
	req.End = req.Start
	_, err := r.normalize(req)
	assert.Error(t, err)

	req = validRequest()
	req.Start = 0
	_, err = r.normalize(req)
	assert.Error(t, err)
}

func TestNormalizeRejectsUnknownTimeframe(t *testing.T) {
	r := &Runner{}
	req := validRequest()
	req.Timeframes = []string{"15m", "2h"}
	_, err := r.normalize(req)
	assert.Error(t, err)
}

func TestNormalizeKeepsOverrides(t *testing.T) {
	r := &Runner{}
	req := validRequest()
	req.SafetyFactor = 2.0
	req.Concurrency = 8
	req.AggregationWindowMs = 60_000
	req.Strategies = []string{"momentum"}

	cfg, err := r.normalize(req)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.SafetyFactor)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, int64(60_000), cfg.AggregationWindowMs)
	assert.Equal(t, []string{"momentum"}, cfg.Strategies)
}
