// Package risk sizes positions, gates new exposure and evaluates exit
// triggers on open positions.
//
// Stop-loss/take-profit checks run against the candle close price only;
// intrabar highs and lows are not consulted.
package risk

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tessera/internal/position"
)

// ExitTrigger is the outcome of checking an open position against price.
type ExitTrigger int

const (
	ExitNone ExitTrigger = iota
	ExitStopLoss
	ExitTakeProfit
)

func (t ExitTrigger) String() string {
	switch t {
	case ExitStopLoss:
		return "stop_loss"
	case ExitTakeProfit:
		return "take_profit"
	default:
		return "none"
	}
}

var (
	// ErrHalted blocks new entries while the daily circuit breaker is open.
	// It is expected control flow, not a fault.
	ErrHalted = errors.New("risk halted: daily loss limit reached")
	// ErrExposureExceeded rejects entries that would breach the per-position
	// exposure cap.
	ErrExposureExceeded = errors.New("projected exposure exceeds limit")
)

// SizingError reports a computed quantity below the exchange minimum.
type SizingError struct {
	Quantity float64
	MinQty   float64
}

func (e *SizingError) Error() string {
	return fmt.Sprintf("sized quantity %v is below exchange minimum %v", e.Quantity, e.MinQty)
}

// Config carries the risk percentages and exchange quantity constraints.
type Config struct {
	RiskPct         float64 // % of balance committed per entry
	MaxPositionPct  float64 // exposure cap as % of balance
	StopLossPct     float64
	TakeProfitPct   float64
	MaxDailyLossPct float64 // daily circuit breaker threshold as % of balance
	QtyStep         float64 // exchange quantity increment
	MinQty          float64 // exchange minimum order quantity
}

// State is the persistable daily risk state.
type State struct {
	Day         time.Time `json:"day"` // UTC day the counters belong to
	DailyPnL    float64   `json:"daily_pnl"`
	TradesToday int       `json:"trades_today"`
	Halted      bool      `json:"halted"`
}

// Manager owns the running daily P&L and the halted flag. It is mutated
// only by trade-close events and the lazy daily reset.
type Manager struct {
	cfg Config

	mu          sync.Mutex
	dailyPnL    float64
	tradesToday int
	halted      bool
	day         time.Time

	nowFn func() time.Time
}

// NewManager builds a risk manager for the given limits.
func NewManager(cfg Config) *Manager {
	m := &Manager{cfg: cfg, nowFn: time.Now}
	m.day = m.today()
	return m
}

// SizePosition computes the entry quantity from balance and the configured
// risk percentage, floored to the exchange quantity step. It fails with
// *SizingError when the floored quantity falls under the exchange minimum.
func (m *Manager) SizePosition(balance, entryPrice float64) (float64, error) {
	if balance <= 0 || entryPrice <= 0 {
		return 0, fmt.Errorf("size: balance and entry price must be positive (balance=%v price=%v)", balance, entryPrice)
	}
	riskUSD := balance * m.cfg.RiskPct / 100
	qty := decimal.NewFromFloat(riskUSD).Div(decimal.NewFromFloat(entryPrice))
	if m.cfg.QtyStep > 0 {
		step := decimal.NewFromFloat(m.cfg.QtyStep)
		qty = qty.Div(step).Floor().Mul(step)
	}
	out, _ := qty.Float64()
	if out <= 0 || out < m.cfg.MinQty {
		return 0, &SizingError{Quantity: out, MinQty: m.cfg.MinQty}
	}
	return out, nil
}

// ApproveTrade validates a candidate entry. New exposure is blocked while
// halted; closing existing positions never passes through here, so risk
// reduction stays possible during a halt.
func (m *Manager) ApproveTrade(qty, entryPrice, balance float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDayLocked()

	if m.halted {
		return ErrHalted
	}
	exposure := qty * entryPrice
	limit := balance * m.cfg.MaxPositionPct / 100
	if exposure > limit {
		return fmt.Errorf("%w: exposure=%.2f limit=%.2f", ErrExposureExceeded, exposure, limit)
	}
	return nil
}

// CheckExitTriggers evaluates the open position against the latest close
// price. Stop-loss takes priority when both levels are crossed in one bar.
func (m *Manager) CheckExitTriggers(pos position.Position, price float64) ExitTrigger {
	if pos.StopLossPrice > 0 {
		if (pos.Side == position.Long && price <= pos.StopLossPrice) ||
			(pos.Side == position.Short && price >= pos.StopLossPrice) {
			return ExitStopLoss
		}
	}
	if pos.TakeProfitPrice > 0 {
		if (pos.Side == position.Long && price >= pos.TakeProfitPrice) ||
			(pos.Side == position.Short && price <= pos.TakeProfitPrice) {
			return ExitTakeProfit
		}
	}
	return ExitNone
}

// RecordTradeClose folds a realized P&L into the daily total and trips the
// circuit breaker once cumulative daily loss exceeds the configured share of
// balance. Returns true when this close tripped the halt.
func (m *Manager) RecordTradeClose(realizedPnL, balance float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDayLocked()

	m.dailyPnL += realizedPnL
	m.tradesToday++

	if m.halted {
		return false
	}
	limit := balance * m.cfg.MaxDailyLossPct / 100
	if m.dailyPnL < 0 && -m.dailyPnL > limit {
		m.halted = true
		return true
	}
	return false
}

// Halted reports whether new entries are currently blocked.
func (m *Manager) Halted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDayLocked()
	return m.halted
}

// DailyPnL returns the running realized P&L for the current UTC day.
func (m *Manager) DailyPnL() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDayLocked()
	return m.dailyPnL
}

// State snapshots the daily counters for persistence.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDayLocked()
	return State{Day: m.day, DailyPnL: m.dailyPnL, TradesToday: m.tradesToday, Halted: m.halted}
}

// Restore loads a persisted state. A snapshot from a previous UTC day is
// discarded by the next roll, matching the daily reset boundary.
func (m *Manager) Restore(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.day = s.Day.UTC().Truncate(24 * time.Hour)
	m.dailyPnL = s.DailyPnL
	m.tradesToday = s.TradesToday
	m.halted = s.Halted
	m.rollDayLocked()
}

// Config returns the configured limits.
func (m *Manager) Config() Config { return m.cfg }

func (m *Manager) today() time.Time {
	return m.nowFn().UTC().Truncate(24 * time.Hour)
}

// rollDayLocked resets the counters when the UTC day has advanced. The
// reset also clears the halted flag: the circuit breaker opens at most for
// the remainder of the trading day.
func (m *Manager) rollDayLocked() {
	today := m.today()
	if today.Equal(m.day) {
		return
	}
	m.day = today
	m.dailyPnL = 0
	m.tradesToday = 0
	m.halted = false
}
