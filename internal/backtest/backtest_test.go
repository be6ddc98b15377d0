package backtest

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/internal/ensemble"
	"tessera/internal/market"
	"tessera/internal/risk"
	"tessera/internal/strategy"
)

// scriptedStrategy buys once when the window reaches triggerLen bars.
type scriptedStrategy struct {
	triggerLen int
}

func (s scriptedStrategy) Name() string { return "scripted" }

func (s scriptedStrategy) Evaluate(candles []market.Candle) strategy.Signal {
	if len(candles) == s.triggerLen {
		return strategy.Signal{Direction: strategy.Buy, Confidence: 1}
	}
	return strategy.HoldSignal
}

func candleSeries(closes []float64) []market.Candle {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	candles := make([]market.Candle, len(closes))
	for i, c := range closes {
		candles[i] = market.Candle{
			OpenTime:  base + int64(i)*60_000,
			CloseTime: base + int64(i)*60_000,
			Open:      c, High: c, Low: c, Close: c,
			Volume: 1,
		}
	}
	return candles
}

func testConfig(strats []strategy.Strategy) Config {
	return Config{
		Symbol:         "BTCUSDT",
		InitialBalance: 10000,
		Warmup:         5,
		Strategies:     strats,
		Ensemble:       ensemble.New(map[string]float64{"scripted": 1}, nil, 0.3),
		Risk: risk.Config{
			RiskPct: 2, MaxPositionPct: 10, StopLossPct: 1, TakeProfitPct: 2,
			MaxDailyLossPct: 50, QtyStep: 0.001, MinQty: 0.001,
		},
	}
}

func TestRunTakesProfitOnLong(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100, 100, 102.5, 102.5}
	cfg := testConfig([]strategy.Strategy{scriptedStrategy{triggerLen: 6}})

	result, err := Run(cfg, candleSeries(closes))
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, "take_profit", trade.Reason)
	assert.Equal(t, 100.0, trade.EntryPrice)
	assert.Equal(t, 102.5, trade.ExitPrice)
	// qty = 10000*2%/100 = 2.0
	assert.InDelta(t, 2.0, trade.Quantity, 1e-9)
	assert.InDelta(t, 5.0, trade.RealizedPnL, 1e-9)

	assert.Equal(t, 1, result.Metrics.Trades)
	assert.Equal(t, 1.0, result.Metrics.WinRate)
	assert.True(t, math.IsInf(result.Metrics.ProfitFactor, 1))
	assert.InDelta(t, 10005, result.Equity[len(result.Equity)-1].Equity, 1e-9)
}

func TestRunStopsOutOnDrop(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100, 100, 98.5}
	cfg := testConfig([]strategy.Strategy{scriptedStrategy{triggerLen: 6}})

	result, err := Run(cfg, candleSeries(closes))
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, "stop_loss", result.Trades[0].Reason)
	assert.InDelta(t, (98.5-100)*2.0, result.Trades[0].RealizedPnL, 1e-9)
	assert.Greater(t, result.Metrics.MaxDrawdown, 0.0)
}

func TestRunLiquidatesAtEndOfData(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100, 100, 100.5, 101}
	cfg := testConfig([]strategy.Strategy{scriptedStrategy{triggerLen: 6}})

	result, err := Run(cfg, candleSeries(closes))
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, "end_of_data", result.Trades[0].Reason)
	assert.InDelta(t, 2.0, result.Trades[0].RealizedPnL, 1e-9)
}

func TestRunAppliesCommissionAndSlippage(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100, 100, 102.5, 102.5}
	cfg := testConfig([]strategy.Strategy{scriptedStrategy{triggerLen: 6}})
	cfg.CommissionRate = 0.001
	cfg.SlippageBps = 10 // 0.1%

	result, err := Run(cfg, candleSeries(closes))
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	// Long entry is worsened upward, exit downward.
	assert.InDelta(t, 100.1, trade.EntryPrice, 1e-9)
	assert.InDelta(t, 102.3975, trade.ExitPrice, 1e-9)
	assert.Greater(t, trade.Fees, 0.0)
	assert.Less(t, trade.RealizedPnL, (102.5-100.0)*trade.Quantity)
}

func TestRunTradeTimesComeFromCandles(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100, 100, 102.5, 102.5}
	candles := candleSeries(closes)
	cfg := testConfig([]strategy.Strategy{scriptedStrategy{triggerLen: 6}})

	result, err := Run(cfg, candles)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	trade := result.Trades[0]
	// Entry on bar 5, exit on bar 6 of a 1m series.
	assert.Equal(t, candles[5].Time(), trade.EntryTime)
	assert.Equal(t, candles[6].Time(), trade.ExitTime)
	assert.Equal(t, time.Minute, trade.Duration)
	assert.Equal(t, time.Minute, result.Metrics.AvgDuration)
}

func TestRunRejectsShortSeries(t *testing.T) {
	cfg := testConfig([]strategy.Strategy{scriptedStrategy{triggerLen: 6}})
	_, err := Run(cfg, candleSeries([]float64{100, 100, 100}))
	assert.Error(t, err)
}

func TestReadCSVSkipsHeaderAndScalesSeconds(t *testing.T) {
	input := strings.NewReader(
		"timestamp,open,high,low,close,volume\n" +
			"1740787200,100,101,99,100.5,12.5\n" +
			"1740787260,100.5,102,100,101.5,8.1\n")
	candles, err := ReadCSV(input)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1740787200000), candles[0].OpenTime)
	assert.Equal(t, 100.5, candles[0].Close)
	assert.Equal(t, 8.1, candles[1].Volume)
}

func TestReadCSVRejectsMalformedRow(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("1740787200000,100,101,99\n"))
	assert.Error(t, err)
}

func TestMaxDrawdown(t *testing.T) {
	equity := []EquityPoint{
		{Equity: 100}, {Equity: 120}, {Equity: 90}, {Equity: 110},
	}
	assert.InDelta(t, 0.25, maxDrawdown(equity), 1e-9)
}

func TestWriteEquityChart(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100, 100, 102.5}
	cfg := testConfig([]strategy.Strategy{scriptedStrategy{triggerLen: 6}})
	result, err := Run(cfg, candleSeries(closes))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "equity.html")
	require.NoError(t, WriteEquityChart(path, result))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "echarts")
}
