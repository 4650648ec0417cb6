package analytics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	chartstypes "github.com/go-echarts/go-echarts/v2/types"
)

// WriteEquityReport renders the equity curve of one backtest run as a
// self-contained HTML page and returns the file path.
func WriteEquityReport(dir, runID string, sum Summary) (string, error) {
	if len(sum.Curve) == 0 {
		return "", fmt.Errorf("equity curve is empty, nothing to render")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	x := make([]string, 0, len(sum.Curve))
	y := make([]opts.LineData, 0, len(sum.Curve))
	for _, p := range sum.Curve {
		x = append(x, p.Date)
		y = append(y, opts.LineData{Value: p.Equity})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  chartstypes.ThemeWesteros,
			Width:  "1200px",
			Height: "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("Equity Curve %s", runID),
			Subtitle: fmt.Sprintf("return %.2f%% | sharpe %.2f | max drawdown %.2f%%",
				sum.ReturnPct, sum.Sharpe, sum.MaxDrawdownPct),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	line.SetXAxis(x)
	line.AddSeries("equity", y, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(line)

	path := filepath.Join(dir, fmt.Sprintf("backtest_%s.html", runID))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return "", err
	}
	return path, nil
}
