package position

import (
	"fmt"
	"sync"
	"time"
)

// Manager enforces the at-most-one-open-position-per-symbol invariant and
// keeps the closed-trade history. All mutation goes through the single tick
// driver; the mutex exists so observers can take consistent snapshots
// without holding anything across a tick boundary.
type Manager struct {
	mu      sync.RWMutex
	open    map[string]*Position
	history []ClosedTrade
	feeRate float64

	nowFn func() time.Time
}

// NewManager builds an empty manager. feeRate is the proportional fee per
// order leg (e.g. 0.001 = 10 bps), charged on both entry and exit notional.
func NewManager(feeRate float64) *Manager {
	if feeRate < 0 {
		feeRate = 0
	}
	return &Manager{
		open:    make(map[string]*Position),
		feeRate: feeRate,
		nowFn:   time.Now,
	}
}

// SetClock replaces the time source for entry/exit stamps. A historical
// replay drives this with candle times so trade durations reflect the data,
// not the wall clock.
func (m *Manager) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	m.mu.Lock()
	m.nowFn = now
	m.mu.Unlock()
}

// Open creates a position for the symbol, computing absolute stop/take
// prices from the percentages and side. It fails with ErrPositionConflict
// when a slot is already occupied; the check-and-set is atomic under the
// manager lock.
func (m *Manager) Open(symbol string, side Side, qty, price, stopLossPct, takeProfitPct float64) (Position, error) {
	if qty <= 0 || price <= 0 {
		return Position{}, fmt.Errorf("open %s: quantity and price must be positive (qty=%v price=%v)", symbol, qty, price)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.open[symbol]; exists {
		return Position{}, fmt.Errorf("open %s: %w", symbol, ErrPositionConflict)
	}

	pos := &Position{
		Symbol:     symbol,
		Side:       side,
		EntryPrice: price,
		Quantity:   qty,
		EntryTime:  m.nowFn().UTC(),
	}
	adverse := side.Sign() * -1
	if stopLossPct > 0 {
		pos.StopLossPrice = price * (1 + adverse*stopLossPct/100)
	}
	if takeProfitPct > 0 {
		pos.TakeProfitPrice = price * (1 + side.Sign()*takeProfitPct/100)
	}
	m.open[symbol] = pos
	return *pos, nil
}

// Close realizes the position at exitPrice, appends the trade to history and
// clears the slot. Realized P&L is direction-signed and net of fees on both
// legs.
func (m *Manager) Close(symbol string, exitPrice float64, reason string) (ClosedTrade, error) {
	if exitPrice <= 0 {
		return ClosedTrade{}, fmt.Errorf("close %s: exit price must be positive, got %v", symbol, exitPrice)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, exists := m.open[symbol]
	if !exists {
		return ClosedTrade{}, fmt.Errorf("close %s: %w", symbol, ErrNoOpenPosition)
	}

	now := m.nowFn().UTC()
	fees := m.feeRate * pos.Quantity * (pos.EntryPrice + exitPrice)
	gross := (exitPrice - pos.EntryPrice) * pos.Quantity * pos.Side.Sign()

	trade := ClosedTrade{
		Symbol:      pos.Symbol,
		Side:        pos.Side,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		Quantity:    pos.Quantity,
		EntryTime:   pos.EntryTime,
		ExitTime:    now,
		RealizedPnL: gross - fees,
		Fees:        fees,
		Reason:      reason,
		Duration:    now.Sub(pos.EntryTime),
	}
	m.history = append(m.history, trade)
	delete(m.open, symbol)
	return trade, nil
}

// Current returns a copy of the open position for the symbol, if any.
func (m *Manager) Current(symbol string) (Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.open[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// UnrealizedPnL values the open position at the given price; 0 when flat.
func (m *Manager) UnrealizedPnL(symbol string, price float64) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.open[symbol]
	if !ok {
		return 0
	}
	return pos.UnrealizedPnL(price)
}

// History returns a copy of the closed-trade history, oldest first.
func (m *Manager) History() []ClosedTrade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ClosedTrade, len(m.history))
	copy(out, m.history)
	return out
}

// Stats derives win-rate and P&L analytics from the history.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{Trades: len(m.history)}
	if s.Trades == 0 {
		return s
	}
	var totalDur time.Duration
	for _, t := range m.history {
		s.TotalPnL += t.RealizedPnL
		totalDur += t.Duration
		if t.RealizedPnL > 0 {
			s.Wins++
		} else {
			s.Losses++
		}
	}
	s.WinRate = float64(s.Wins) / float64(s.Trades)
	s.AvgPnL = s.TotalPnL / float64(s.Trades)
	s.AvgDuration = totalDur / time.Duration(s.Trades)
	return s
}

// OpenPositions snapshots all open slots, for persistence and observers.
func (m *Manager) OpenPositions() []Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Position, 0, len(m.open))
	for _, pos := range m.open {
		out = append(out, *pos)
	}
	return out
}

// Restore replaces the manager state with a persisted snapshot.
func (m *Manager) Restore(open []Position, history []ClosedTrade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = make(map[string]*Position, len(open))
	for i := range open {
		pos := open[i]
		m.open[pos.Symbol] = &pos
	}
	m.history = make([]ClosedTrade, len(history))
	copy(m.history, history)
}
