package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe(" 15M ")
	require.NoError(t, err)
	assert.Equal(t, "15m", tf.Key)

	_, err = ParseTimeframe("2h")
	assert.Error(t, err)
}

func TestRankOrdering(t *testing.T) {
	assert.Less(t, RankOf("1m"), RankOf("5m"))
	assert.Less(t, RankOf("5m"), RankOf("15m"))
	assert.Less(t, RankOf("15m"), RankOf("1h"))
	assert.Less(t, RankOf("1h"), RankOf("1d"))
	assert.Equal(t, 0, RankOf("3m"))
}

func TestSupportedTimeframesOrder(t *testing.T) {
	assert.Equal(t, []string{"1m", "5m", "15m", "1h", "1d"}, SupportedTimeframes())
}

func TestAlignRange(t *testing.T) {
	tf, err := ParseTimeframe("15m")
	require.NoError(t, err)

	// 12:07 与 12:52 对齐到 12:00 与 12:45
	start, end := tf.AlignRange(7*60_000, 52*60_000)
	assert.Equal(t, int64(0), start)
	assert.Equal(t, int64(45*60_000), end)

	// 颠倒区间自动交换
	start, end = tf.AlignRange(52*60_000, 7*60_000)
	assert.Equal(t, int64(0), start)
	assert.Equal(t, int64(45*60_000), end)
}

func TestExpectedBars(t *testing.T) {
	tf, err := ParseTimeframe("1m")
	require.NoError(t, err)
	assert.Equal(t, int64(61), tf.ExpectedBars(0, 60*60_000))
	assert.Equal(t, int64(0), tf.ExpectedBars(10, 5))
}
