package sentiment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScores(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scores.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestFileProviderWindowAverage(t *testing.T) {
	path := writeScores(t, `{"AAPL": {"scores": [0.9, 0.2, -0.1, 0.4, 0.3]}}`)
	p := NewFileProvider(path, 3, time.Minute)

	// 只取最近 3 个: (-0.1 + 0.4 + 0.3) / 3
	bias, err := p.Bias(context.Background(), "aapl")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, bias, 1e-9)
}

func TestFileProviderUnknownSymbolNeutral(t *testing.T) {
	path := writeScores(t, `{"AAPL": {"scores": [0.5]}}`)
	p := NewFileProvider(path, 5, time.Minute)

	bias, err := p.Bias(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, 0.0, bias)
}

func TestFileProviderInvalidJSON(t *testing.T) {
	path := writeScores(t, `{"AAPL": [broken`)
	p := NewFileProvider(path, 5, time.Minute)

	_, err := p.Bias(context.Background(), "AAPL")
	assert.Error(t, err)
}

func TestFileProviderClampsBias(t *testing.T) {
	path := writeScores(t, `{"AAPL": {"scores": [5, 5, 5]}}`)
	p := NewFileProvider(path, 5, time.Minute)

	bias, err := p.Bias(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1.0, bias)
}

type failingProvider struct{ calls int }

func (f *failingProvider) Name() string { return "failing" }
func (f *failingProvider) Bias(context.Context, string) (float64, error) {
	f.calls++
	return 0, fmt.Errorf("feed down")
}

func TestServiceDegradesToNeutral(t *testing.T) {
	svc := NewService(&failingProvider{}, time.Minute)
	assert.Equal(t, 0.0, svc.Bias(context.Background(), "AAPL"))
}

func TestServiceCachesPerSymbol(t *testing.T) {
	fp := &failingProvider{}
	svc := NewService(fp, time.Minute)

	svc.Bias(context.Background(), "AAPL")
	svc.Bias(context.Background(), "aapl")
	assert.Equal(t, 1, fp.calls)

	svc.Bias(context.Background(), "MSFT")
	assert.Equal(t, 2, fp.calls)
}

func TestNoopNeutral(t *testing.T) {
	bias, err := Noop{}.Bias(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 0.0, bias)
	assert.Equal(t, "noop", Noop{}.Name())
}

func TestClampBias(t *testing.T) {
	assert.Equal(t, -1.0, clampBias(-3))
	assert.Equal(t, 0.25, clampBias(0.25))
	assert.Equal(t, 1.0, clampBias(7))
}
