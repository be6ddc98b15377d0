// Package backtest replays historical candles through the same strategy,
// ensemble, risk and position code the live engine runs, with a simple
// commission and slippage model on fills.
package backtest

import (
	"fmt"
	"time"

	"tessera/internal/ensemble"
	"tessera/internal/logger"
	"tessera/internal/market"
	"tessera/internal/position"
	"tessera/internal/risk"
	"tessera/internal/strategy"
)

// Config parameterizes a backtest run.
type Config struct {
	Symbol         string
	InitialBalance float64
	// CommissionRate is the proportional fee per leg (e.g. 0.0004).
	CommissionRate float64
	// SlippageBps worsens every fill by this many basis points.
	SlippageBps float64
	// Warmup is the number of leading candles reserved for indicator
	// lookback before the first decision.
	Warmup int

	Strategies []strategy.Strategy
	Ensemble   *ensemble.Aggregator
	Risk       risk.Config
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Time   time.Time
	Equity float64
}

// Result is the outcome of a run: the realized trades, the equity curve and
// the derived metrics.
type Result struct {
	Symbol  string
	Trades  []position.ClosedTrade
	Equity  []EquityPoint
	Metrics Metrics
}

// Run replays candles through the decision pipeline. The candle series must
// be validated and ascending.
func Run(cfg Config, candles []market.Candle) (*Result, error) {
	if cfg.Symbol == "" {
		cfg.Symbol = "BTCUSDT"
	}
	if cfg.InitialBalance <= 0 {
		return nil, fmt.Errorf("backtest: initial balance must be positive")
	}
	if len(cfg.Strategies) == 0 || cfg.Ensemble == nil {
		return nil, fmt.Errorf("backtest: strategies and ensemble are required")
	}
	if err := market.ValidateSeries(candles); err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	if cfg.Warmup <= 0 {
		cfg.Warmup = 35
	}
	if len(candles) <= cfg.Warmup {
		return nil, fmt.Errorf("backtest: need more than %d candles, got %d", cfg.Warmup, len(candles))
	}

	riskMgr := risk.NewManager(cfg.Risk)
	positions := position.NewManager(cfg.CommissionRate)
	slip := cfg.SlippageBps / 10_000
	realized := 0.0

	// Trade timestamps come from the data, not the wall clock: the position
	// manager's time source tracks the bar under replay.
	clock := candles[cfg.Warmup].Time()
	positions.SetClock(func() time.Time { return clock })

	result := &Result{Symbol: cfg.Symbol}

	for i := cfg.Warmup; i < len(candles); i++ {
		window := candles[:i+1]
		candle := candles[i]
		clock = candle.Time()
		price := candle.Close

		if pos, held := positions.Current(cfg.Symbol); held {
			if trigger := riskMgr.CheckExitTriggers(pos, price); trigger != risk.ExitNone {
				exitPrice := price * (1 - pos.Side.Sign()*slip)
				trade, err := positions.Close(cfg.Symbol, exitPrice, trigger.String())
				if err != nil {
					return nil, fmt.Errorf("backtest: close at bar %d: %w", i, err)
				}
				realized += trade.RealizedPnL
				riskMgr.RecordTradeClose(trade.RealizedPnL, cfg.InitialBalance+realized)
				result.Trades = append(result.Trades, trade)
			}
		} else {
			decision := evaluate(cfg, window)
			if decision.Direction != strategy.Hold {
				openEntry(cfg, riskMgr, positions, decision, candle, realized, slip)
			}
		}

		equity := cfg.InitialBalance + realized + positions.UnrealizedPnL(cfg.Symbol, price)
		result.Equity = append(result.Equity, EquityPoint{Time: candle.Time(), Equity: equity})
	}

	// An open position at the end of data is liquidated at the last close so
	// the metrics cover every entry.
	if pos, held := positions.Current(cfg.Symbol); held {
		last := candles[len(candles)-1].Close
		exitPrice := last * (1 - pos.Side.Sign()*slip)
		trade, err := positions.Close(cfg.Symbol, exitPrice, "end_of_data")
		if err == nil {
			realized += trade.RealizedPnL
			result.Trades = append(result.Trades, trade)
			result.Equity[len(result.Equity)-1].Equity = cfg.InitialBalance + realized
		}
	}

	result.Metrics = computeMetrics(cfg.InitialBalance, result.Trades, result.Equity)
	logger.Infof("Backtest: %s bars=%d trades=%d pnl=%.2f", cfg.Symbol, len(candles), len(result.Trades), result.Metrics.TotalPnL)
	return result, nil
}

func evaluate(cfg Config, window []market.Candle) ensemble.Decision {
	signals := make(map[string]strategy.Signal, len(cfg.Strategies))
	for _, s := range cfg.Strategies {
		signals[s.Name()] = s.Evaluate(window)
	}
	return cfg.Ensemble.Aggregate(signals)
}

func openEntry(cfg Config, riskMgr *risk.Manager, positions *position.Manager, decision ensemble.Decision, candle market.Candle, realized, slip float64) {
	balance := cfg.InitialBalance + realized
	qty, err := riskMgr.SizePosition(balance, candle.Close)
	if err != nil {
		return
	}
	if err := riskMgr.ApproveTrade(qty, candle.Close, balance); err != nil {
		return
	}
	side := position.Long
	if decision.Direction == strategy.Sell {
		side = position.Short
	}
	entryPrice := candle.Close * (1 + side.Sign()*slip)
	if _, err := positions.Open(cfg.Symbol, side, qty, entryPrice, cfg.Risk.StopLossPct, cfg.Risk.TakeProfitPct); err != nil {
		logger.Warnf("Backtest: open failed at %s: %v", candle.Time(), err)
	}
}
