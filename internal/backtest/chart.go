package backtest

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteEquityChart renders the equity curve as a standalone HTML page.
func WriteEquityChart(path string, result *Result) error {
	if result == nil || len(result.Equity) == 0 {
		return fmt.Errorf("backtest: no equity curve to render")
	}

	xAxis := make([]string, 0, len(result.Equity))
	series := make([]opts.LineData, 0, len(result.Equity))
	for _, p := range result.Equity {
		xAxis = append(xAxis, p.Time.Format("2006-01-02 15:04"))
		series = append(series, opts.LineData{Value: p.Equity})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Equity %s", result.Symbol),
			Subtitle: fmt.Sprintf("%d trades, pnl %.2f", result.Metrics.Trades, result.Metrics.TotalPnL),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("equity", series,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("backtest: creating chart file failed: %w", err)
	}
	defer f.Close()
	return line.Render(f)
}
