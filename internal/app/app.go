// Package app wires configuration into a runnable trading process: venue
// client, strategies, ensemble, risk/position managers, durability, the
// engine and the HTTP API.
package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"tessera/internal/config"
	"tessera/internal/engine"
	"tessera/internal/ensemble"
	"tessera/internal/gateway/binance"
	"tessera/internal/gateway/exchange"
	"tessera/internal/gateway/notifier"
	"tessera/internal/gateway/paper"
	"tessera/internal/logger"
	"tessera/internal/position"
	"tessera/internal/risk"
	"tessera/internal/store"
	"tessera/internal/strategy"
	httpapi "tessera/internal/transport/http"
)

// App owns the assembled components and their lifecycles.
type App struct {
	cfg       *config.Config
	eng       *engine.Engine
	server    *httpapi.Server
	positions *position.Manager
	risk      *risk.Manager
	db        *store.SQLiteStore
}

// NewApp builds an application from configuration without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	client := buildExchangeClient(cfg)
	strategies := buildStrategies(cfg)
	aggregator := ensemble.New(cfg.Strategy.Weights, cfg.Strategy.Floors, cfg.Strategy.MinConfidence)

	riskMgr := risk.NewManager(risk.Config{
		RiskPct:         cfg.Risk.RiskPct,
		MaxPositionPct:  cfg.Risk.MaxPositionPct,
		StopLossPct:     cfg.Risk.StopLossPct,
		TakeProfitPct:   cfg.Risk.TakeProfitPct,
		MaxDailyLossPct: cfg.Risk.MaxDailyLossPct,
		QtyStep:         cfg.Risk.QtyStep,
		MinQty:          cfg.Risk.MinQty,
	})
	positions := position.NewManager(cfg.Risk.FeeRate)

	var db *store.SQLiteStore
	var stateStore engine.StateStore
	if cfg.Store.Path != "" {
		var err error
		db, err = store.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("opening store failed: %w", err)
		}
		stateStore = db
	}

	var notify notifier.TextNotifier = notifier.Noop{}
	if cfg.Notify.Telegram.Enabled {
		notify = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
	}

	eng, err := engine.New(engine.Params{
		Symbol:                 cfg.Trading.Symbol,
		Interval:               cfg.Trading.Interval,
		CandleLimit:            cfg.Trading.CandleLimit,
		MaxConsecutiveFailures: cfg.Engine.MaxConsecutiveFailures,
		RunImmediately:         cfg.Engine.RunImmediately,
		TickOffset:             time.Duration(cfg.Engine.TickOffsetSeconds) * time.Second,
		EventBuffer:            cfg.Engine.EventBuffer,
		Exchange:               client,
		Strategies:             strategies,
		Ensemble:               aggregator,
		Risk:                   riskMgr,
		Positions:              positions,
		Store:                  stateStore,
		Notifier:               notify,
	})
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}

	server, err := httpapi.NewServer(httpapi.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		Engine:    eng,
		Positions: positions,
		Risk:      riskMgr,
	})
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}

	return &App{cfg: cfg, eng: eng, server: server, positions: positions, risk: riskMgr, db: db}, nil
}

// Run starts the engine, the HTTP API and the event fan-out, blocking until
// ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	mode := "live"
	if a.cfg.Exchange.Paper {
		mode = "paper"
	}
	logger.Infof("App: starting mode=%s symbol=%s interval=%s http=%s",
		mode, a.cfg.Trading.Symbol, a.cfg.Trading.Interval, a.cfg.App.HTTPAddr)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	// Fan the engine's tick events into the HTTP event ring. The channel is
	// closed when the engine stops.
	group.Go(func() error {
		for ev := range a.eng.Events() {
			a.server.Record(ev)
		}
		return nil
	})

	group.Go(func() error {
		defer a.close()
		return a.eng.Run(ctx)
	})

	return group.Wait()
}

// Engine exposes the engine instance for testing and replay harnesses.
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.eng
}

func (a *App) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warnf("App: store close failed: %v", err)
		}
	}
}

func buildExchangeClient(cfg *config.Config) exchange.Client {
	source := binance.New(binance.Config{
		RESTBaseURL:   cfg.Exchange.RESTBaseURL,
		APIKey:        cfg.Exchange.APIKey,
		APISecret:     cfg.Exchange.APISecret,
		StakeCurrency: cfg.Exchange.StakeCurrency,
		HTTPTimeout:   time.Duration(cfg.Exchange.HTTPTimeoutSeconds) * time.Second,
	})
	if cfg.Exchange.Paper {
		return paper.New(source, cfg.Exchange.PaperBalance)
	}
	return source
}

func buildStrategies(cfg *config.Config) []strategy.Strategy {
	return []strategy.Strategy{
		strategy.NewRSIStrategy(cfg.Strategy.RSI.Period, cfg.Strategy.RSI.Oversold, cfg.Strategy.RSI.Overbought),
		strategy.NewMACDStrategy(cfg.Strategy.MACD.Fast, cfg.Strategy.MACD.Slow, cfg.Strategy.MACD.Signal, cfg.Strategy.MACD.NormDivisor),
	}
}
