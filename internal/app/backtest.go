package app

import (
	"fmt"

	"tessera/internal/backtest"
	"tessera/internal/config"
	"tessera/internal/ensemble"
	"tessera/internal/logger"
	"tessera/internal/risk"
)

// RunBacktest replays a candle CSV through the configured decision pipeline
// and prints the metrics report. When outPath is non-empty the equity curve
// is rendered there as HTML.
func RunBacktest(cfg *config.Config, dataPath, outPath string) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if dataPath == "" {
		return fmt.Errorf("backtest requires a candle data file (-data)")
	}
	logger.SetLevel(cfg.App.LogLevel)

	candles, err := backtest.LoadCSV(dataPath)
	if err != nil {
		return err
	}

	warmup := cfg.Strategy.MACD.Slow + cfg.Strategy.MACD.Signal
	if rsiNeed := cfg.Strategy.RSI.Period + 1; rsiNeed > warmup {
		warmup = rsiNeed
	}
	balance := cfg.Exchange.PaperBalance
	if balance <= 0 {
		balance = 10000
	}

	result, err := backtest.Run(backtest.Config{
		Symbol:         cfg.Trading.Symbol,
		InitialBalance: balance,
		CommissionRate: cfg.Risk.FeeRate,
		Warmup:         warmup,
		Strategies:     buildStrategies(cfg),
		Ensemble:       ensemble.New(cfg.Strategy.Weights, cfg.Strategy.Floors, cfg.Strategy.MinConfidence),
		Risk: risk.Config{
			RiskPct:         cfg.Risk.RiskPct,
			MaxPositionPct:  cfg.Risk.MaxPositionPct,
			StopLossPct:     cfg.Risk.StopLossPct,
			TakeProfitPct:   cfg.Risk.TakeProfitPct,
			MaxDailyLossPct: cfg.Risk.MaxDailyLossPct,
			QtyStep:         cfg.Risk.QtyStep,
			MinQty:          cfg.Risk.MinQty,
		},
	}, candles)
	if err != nil {
		return err
	}

	fmt.Printf("Backtest %s over %d candles\n\n%s", cfg.Trading.Symbol, len(candles), result.Metrics.Report())

	if outPath != "" {
		if err := backtest.WriteEquityChart(outPath, result); err != nil {
			return err
		}
		logger.Infof("Backtest: equity chart written to %s", outPath)
	}
	return nil
}
