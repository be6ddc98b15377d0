package backtest

import (
	"fmt"
	"math"
	"strings"
	"time"

	"tessera/internal/position"
)

// Metrics summarizes a run. Sharpe is computed from per-bar equity returns
// without annualization; treat it as a relative score across runs, not an
// absolute figure.
type Metrics struct {
	Trades       int
	Wins         int
	Losses       int
	WinRate      float64
	TotalPnL     float64
	ReturnPct    float64
	ProfitFactor float64
	Sharpe       float64
	MaxDrawdown  float64 // fraction of peak equity
	AvgDuration  time.Duration
}

func computeMetrics(initialBalance float64, trades []position.ClosedTrade, equity []EquityPoint) Metrics {
	var m Metrics
	m.Trades = len(trades)

	var grossProfit, grossLoss float64
	var totalDuration time.Duration
	for _, t := range trades {
		m.TotalPnL += t.RealizedPnL
		totalDuration += t.Duration
		if t.RealizedPnL > 0 {
			m.Wins++
			grossProfit += t.RealizedPnL
		} else {
			m.Losses++
			grossLoss += -t.RealizedPnL
		}
	}
	if m.Trades > 0 {
		m.WinRate = float64(m.Wins) / float64(m.Trades)
		m.AvgDuration = totalDuration / time.Duration(m.Trades)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		m.ProfitFactor = math.Inf(1)
	}
	if initialBalance > 0 {
		m.ReturnPct = m.TotalPnL / initialBalance * 100
	}
	m.Sharpe = sharpe(equity)
	m.MaxDrawdown = maxDrawdown(equity)
	return m
}

func sharpe(equity []EquityPoint) float64 {
	if len(equity) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (equity[i].Equity-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(float64(len(returns)))
}

func maxDrawdown(equity []EquityPoint) float64 {
	var peak, worst float64
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// Report renders the metrics as a human-readable block for the CLI.
func (m Metrics) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Trades:         %d (%d wins / %d losses)\n", m.Trades, m.Wins, m.Losses)
	fmt.Fprintf(&b, "Win rate:       %.1f%%\n", m.WinRate*100)
	fmt.Fprintf(&b, "Total P&L:      %.2f (%.2f%%)\n", m.TotalPnL, m.ReturnPct)
	if math.IsInf(m.ProfitFactor, 1) {
		fmt.Fprintf(&b, "Profit factor:  inf\n")
	} else {
		fmt.Fprintf(&b, "Profit factor:  %.2f\n", m.ProfitFactor)
	}
	fmt.Fprintf(&b, "Sharpe:         %.2f\n", m.Sharpe)
	fmt.Fprintf(&b, "Max drawdown:   %.1f%%\n", m.MaxDrawdown*100)
	fmt.Fprintf(&b, "Avg duration:   %s\n", m.AvgDuration)
	return b.String()
}
