// Package engine owns the serial tick loop: fetch candles, evaluate exit
// triggers, run the strategy ensemble, apply risk gates and mutate the
// position slot. All shared state is mutated by the single tick driver;
// observers read snapshots or consume the event channel.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"tessera/internal/ensemble"
	"tessera/internal/gateway/exchange"
	"tessera/internal/gateway/notifier"
	"tessera/internal/logger"
	"tessera/internal/market"
	"tessera/internal/pkg/circuit"
	"tessera/internal/position"
	"tessera/internal/risk"
	"tessera/internal/scheduler"
	"tessera/internal/strategy"
)

// State is the engine lifecycle state.
type State int32

const (
	StateInit State = iota
	StateRunning
	StateHalted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrFatalStop reports that the loop shut itself down after the
// consecutive-failure breaker tripped, as opposed to an orderly
// context-cancelled stop.
var ErrFatalStop = errors.New("engine stopped after consecutive tick failures")

// TickEvent is the per-tick summary streamed to observers. Delivery is
// fire-and-forget: a full buffer drops the event rather than blocking the
// tick.
type TickEvent struct {
	TraceID   string             `json:"trace_id"`
	Timestamp time.Time          `json:"timestamp"`
	Decision  ensemble.Decision  `json:"decision"`
	Position  *position.Position `json:"position,omitempty"`
	DailyPnL  float64            `json:"daily_pnl"`
	Halted    bool               `json:"halted"`
}

// StateStore is the optional durability collaborator. Payloads are opaque
// versioned snapshots produced by SerializeState.
type StateStore interface {
	SaveSnapshot(ctx context.Context, version int, payload []byte) error
	LoadSnapshot(ctx context.Context) (version int, payload []byte, err error)
	AppendTrade(ctx context.Context, trade position.ClosedTrade) error
}

// Params wires the engine's collaborators. Exchange, Strategies, Ensemble,
// Risk and Positions are required; Store and Notifier are optional.
type Params struct {
	Symbol      string
	Interval    string
	CandleLimit int

	MaxConsecutiveFailures int
	RunImmediately         bool
	TickOffset             time.Duration
	EventBuffer            int

	Exchange   exchange.Client
	Strategies []strategy.Strategy
	Ensemble   *ensemble.Aggregator
	Risk       *risk.Manager
	Positions  *position.Manager
	Store      StateStore
	Notifier   notifier.TextNotifier
}

// Engine executes the tick sequence on an aligned schedule.
type Engine struct {
	p        Params
	interval time.Duration

	state   atomic.Int32
	breaker *circuit.Breaker
	cancel  context.CancelFunc

	events chan TickEvent

	mu        sync.Mutex
	lastEvent *TickEvent
}

// New validates the wiring and builds an engine in the Init state.
func New(p Params) (*Engine, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("engine: symbol is required")
	}
	interval, ok := scheduler.ParseIntervalDuration(p.Interval)
	if !ok {
		return nil, fmt.Errorf("engine: invalid interval %q", p.Interval)
	}
	if p.Exchange == nil {
		return nil, fmt.Errorf("engine: exchange client is required")
	}
	if len(p.Strategies) == 0 {
		return nil, fmt.Errorf("engine: at least one strategy is required")
	}
	if p.Ensemble == nil || p.Risk == nil || p.Positions == nil {
		return nil, fmt.Errorf("engine: ensemble, risk and position managers are required")
	}
	if p.CandleLimit <= 0 {
		p.CandleLimit = 100
	}
	if p.EventBuffer <= 0 {
		p.EventBuffer = 64
	}
	if p.Notifier == nil {
		p.Notifier = notifier.Noop{}
	}
	e := &Engine{
		p:        p,
		interval: interval,
		breaker:  circuit.NewBreaker("tick", p.MaxConsecutiveFailures),
		events:   make(chan TickEvent, p.EventBuffer),
	}
	e.breaker.SetTripHandler(func(name string, streak int) {
		logger.Errorf("Engine: %s breaker tripped after %d consecutive failures, stopping", name, streak)
	})
	e.state.Store(int32(StateInit))
	return e, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Events returns the tick event stream. The channel is closed when Run
// returns.
func (e *Engine) Events() <-chan TickEvent {
	return e.events
}

// LastEvent returns a copy of the most recent tick event.
func (e *Engine) LastEvent() (TickEvent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastEvent == nil {
		return TickEvent{}, false
	}
	return *e.lastEvent, true
}

// Run restores persisted state, then blocks driving the tick loop until ctx
// is cancelled or the failure breaker trips. The in-flight tick always
// completes before Run returns. A breaker-initiated stop returns
// ErrFatalStop so the process exit status reflects the fatal alert.
func (e *Engine) Run(ctx context.Context) error {
	if e.p.Store != nil {
		if err := e.loadState(ctx); err != nil {
			return err
		}
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.cancel = cancel

	e.state.Store(int32(StateRunning))
	logger.Infof("Engine: started symbol=%s interval=%s strategies=%d", e.p.Symbol, e.p.Interval, len(e.p.Strategies))

	sched := scheduler.NewAlignedScheduler(runCtx, e.interval, e.TickOffset())
	sched.RunImmediately = e.p.RunImmediately
	sched.Start(e.tick)

	if e.State() != StateStopped {
		e.state.Store(int32(StateStopped))
	}
	close(e.events)
	if e.breaker.Tripped() {
		logger.Errorf("Engine: stopped fatally symbol=%s after %d consecutive failures", e.p.Symbol, e.breaker.Streak())
		return ErrFatalStop
	}
	logger.Infof("Engine: stopped symbol=%s", e.p.Symbol)
	return nil
}

// TickOffset returns the configured boundary offset, never negative.
func (e *Engine) TickOffset() time.Duration {
	if e.p.TickOffset < 0 {
		return 0
	}
	return e.p.TickOffset
}

// tick runs one full decision cycle. It never panics the loop: every
// failure is logged and folded into the consecutive-failure breaker.
func (e *Engine) tick() {
	if e.State() == StateStopped {
		return
	}
	traceID := uuid.NewString()
	ctx, cancelTick := context.WithTimeout(context.Background(), e.interval)
	defer cancelTick()

	candles, err := e.p.Exchange.FetchCandles(ctx, e.p.Symbol, e.p.Interval, e.p.CandleLimit)
	if err != nil {
		e.failTick(traceID, fmt.Errorf("fetch candles: %w", err))
		return
	}
	if err := market.ValidateSeries(candles); err != nil {
		e.failTick(traceID, fmt.Errorf("candle series invalid: %w", err))
		return
	}
	price := market.LastClose(candles)
	if price <= 0 {
		e.failTick(traceID, fmt.Errorf("candle series empty or last close not positive"))
		return
	}

	decision := ensemble.Decision{Direction: strategy.Hold}

	if pos, held := e.p.Positions.Current(e.p.Symbol); held {
		// Exit-trigger evaluation strictly precedes new-entry evaluation;
		// a position closed this tick is never replaced in the same tick.
		if ok := e.evaluateExit(ctx, traceID, pos, price); !ok {
			return
		}
	} else {
		decision = e.evaluateEntry(ctx, traceID, candles, price)
	}

	e.breaker.RecordSuccess()
	e.syncHaltedState()
	e.emit(traceID, decision)
}

// evaluateExit checks the open position against price and closes it when a
// stop or take level is crossed. Returns false when the tick failed.
func (e *Engine) evaluateExit(ctx context.Context, traceID string, pos position.Position, price float64) bool {
	trigger := e.p.Risk.CheckExitTriggers(pos, price)
	if trigger == risk.ExitNone {
		return true
	}

	exitSide := "SELL"
	if pos.Side == position.Short {
		exitSide = "BUY"
	}
	fill, err := e.p.Exchange.PlaceMarketOrder(ctx, e.p.Symbol, exitSide, pos.Quantity)
	if err != nil {
		e.failTick(traceID, fmt.Errorf("exit order %s %s: %w", exitSide, e.p.Symbol, err))
		return false
	}

	trade, err := e.p.Positions.Close(e.p.Symbol, fill.Price, trigger.String())
	if err != nil {
		// The slot was checked above; losing it mid-tick is a single-writer
		// violation.
		logger.Errorf("Engine: [%s] close after fill failed, state inconsistent: %v", traceID, err)
		e.failTick(traceID, err)
		return false
	}

	balance := e.accountBalanceOr(ctx, trade.EntryPrice*trade.Quantity)
	tripped := e.p.Risk.RecordTradeClose(trade.RealizedPnL, balance)

	logger.Infof("Engine: [%s] closed %s %s qty=%v exit=%v pnl=%.4f reason=%s",
		traceID, pos.Side, trade.Symbol, trade.Quantity, trade.ExitPrice, trade.RealizedPnL, trade.Reason)
	e.notify(fmt.Sprintf("Closed %s %s @ %.2f (%s), pnl %.2f", pos.Side, trade.Symbol, trade.ExitPrice, trade.Reason, trade.RealizedPnL))
	if tripped {
		logger.Warnf("Engine: [%s] daily loss limit reached, entries halted until UTC midnight", traceID)
		e.notify(fmt.Sprintf("Daily loss limit reached (pnl %.2f), halting new entries", e.p.Risk.DailyPnL()))
	}

	e.appendTrade(ctx, trade)
	e.persist(ctx)
	return true
}

// evaluateEntry runs strategies, the ensemble vote and the risk gates, and
// opens a position when everything passes. Venue rejections and risk gates
// skip the entry without failing the tick.
func (e *Engine) evaluateEntry(ctx context.Context, traceID string, candles []market.Candle, price float64) ensemble.Decision {
	signals := make(map[string]strategy.Signal, len(e.p.Strategies))
	for _, s := range e.p.Strategies {
		signals[s.Name()] = s.Evaluate(candles)
	}
	decision := e.p.Ensemble.Aggregate(signals)
	if decision.Direction == strategy.Hold {
		return decision
	}

	balance, err := e.p.Exchange.AccountBalance(ctx)
	if err != nil {
		logger.Warnf("Engine: [%s] balance fetch failed, entry skipped: %v", traceID, err)
		return decision
	}
	qty, err := e.p.Risk.SizePosition(balance, price)
	if err != nil {
		var sizing *risk.SizingError
		if errors.As(err, &sizing) {
			logger.Infof("Engine: [%s] entry skipped, %v", traceID, err)
		} else {
			logger.Warnf("Engine: [%s] sizing failed: %v", traceID, err)
		}
		return decision
	}
	if err := e.p.Risk.ApproveTrade(qty, price, balance); err != nil {
		if errors.Is(err, risk.ErrHalted) {
			logger.Infof("Engine: [%s] entry blocked, risk halted", traceID)
		} else {
			logger.Warnf("Engine: [%s] entry rejected by risk: %v", traceID, err)
		}
		return decision
	}

	side := position.Long
	if decision.Direction == strategy.Sell {
		side = position.Short
	}
	fill, err := e.p.Exchange.PlaceMarketOrder(ctx, e.p.Symbol, string(decision.Direction), qty)
	if err != nil {
		// A rejected entry is abandoned for this tick, not a tick failure.
		logger.Warnf("Engine: [%s] entry order %s %s qty=%v rejected: %v", traceID, decision.Direction, e.p.Symbol, qty, err)
		return decision
	}

	riskCfg := e.p.Risk.Config()
	pos, err := e.p.Positions.Open(e.p.Symbol, side, fill.Quantity, fill.Price, riskCfg.StopLossPct, riskCfg.TakeProfitPct)
	if err != nil {
		logger.Errorf("Engine: [%s] open after fill failed, state inconsistent: %v", traceID, err)
		return decision
	}

	logger.Infof("Engine: [%s] opened %s %s qty=%v entry=%v stop=%.4f take=%.4f confidence=%.3f",
		traceID, side, pos.Symbol, pos.Quantity, pos.EntryPrice, pos.StopLossPrice, pos.TakeProfitPrice, decision.TotalConfidence)
	e.notify(fmt.Sprintf("Opened %s %s qty=%v @ %.2f (confidence %.2f)", side, pos.Symbol, pos.Quantity, pos.EntryPrice, decision.TotalConfidence))

	e.persist(ctx)
	return decision
}

// failTick logs a tick failure and feeds the consecutive-failure breaker;
// a trip stops the loop and raises a fatal alert.
func (e *Engine) failTick(traceID string, err error) {
	logger.Errorf("Engine: [%s] tick failed symbol=%s: %v", traceID, e.p.Symbol, err)
	if e.breaker.RecordFailure() {
		e.state.Store(int32(StateStopped))
		e.notify(fmt.Sprintf("FATAL: %d consecutive tick failures on %s, engine stopped (last: %v)",
			e.breaker.Streak(), e.p.Symbol, err))
		if e.cancel != nil {
			e.cancel()
		}
	}
}

func (e *Engine) syncHaltedState() {
	if e.State() == StateStopped {
		return
	}
	if e.p.Risk.Halted() {
		e.state.Store(int32(StateHalted))
	} else {
		e.state.Store(int32(StateRunning))
	}
}

func (e *Engine) emit(traceID string, decision ensemble.Decision) {
	ev := TickEvent{
		TraceID:   traceID,
		Timestamp: time.Now().UTC(),
		Decision:  decision,
		DailyPnL:  e.p.Risk.DailyPnL(),
		Halted:    e.p.Risk.Halted(),
	}
	if pos, ok := e.p.Positions.Current(e.p.Symbol); ok {
		ev.Position = &pos
	}
	e.mu.Lock()
	e.lastEvent = &ev
	e.mu.Unlock()

	select {
	case e.events <- ev:
	default:
		logger.Debugf("Engine: [%s] event buffer full, tick event dropped", traceID)
	}
}

func (e *Engine) notify(text string) {
	if err := e.p.Notifier.SendText(text); err != nil {
		logger.Warnf("Engine: notification failed: %v", err)
	}
}

func (e *Engine) accountBalanceOr(ctx context.Context, fallback float64) float64 {
	balance, err := e.p.Exchange.AccountBalance(ctx)
	if err != nil || balance <= 0 {
		logger.Warnf("Engine: balance fetch failed, using exposure %.2f for daily-loss check: %v", fallback, err)
		return fallback
	}
	return balance
}

func (e *Engine) appendTrade(ctx context.Context, trade position.ClosedTrade) {
	if e.p.Store == nil {
		return
	}
	if err := e.p.Store.AppendTrade(ctx, trade); err != nil {
		logger.Warnf("Engine: trade append failed: %v", err)
	}
}
