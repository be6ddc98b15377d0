// Package position owns the authoritative open-position slots and the
// append-only closed-trade history.
package position

import (
	"errors"
	"time"
)

// Side is the direction of an open position.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Sign returns +1 for LONG and -1 for SHORT, the P&L multiplier.
func (s Side) Sign() float64 {
	if s == Short {
		return -1
	}
	return 1
}

var (
	// ErrPositionConflict signals an open slot already exists for the symbol.
	// Hitting it outside of tests indicates a bug in the tick driver.
	ErrPositionConflict = errors.New("position already open for symbol")
	// ErrNoOpenPosition signals a close against an empty slot.
	ErrNoOpenPosition = errors.New("no open position for symbol")
)

// Position is one open position. Stop/take prices are absolute, derived
// from the configured percentages at open time.
type Position struct {
	Symbol          string    `json:"symbol"`
	Side            Side      `json:"side"`
	EntryPrice      float64   `json:"entry_price"`
	Quantity        float64   `json:"quantity"`
	EntryTime       time.Time `json:"entry_time"`
	StopLossPrice   float64   `json:"stop_loss_price"`
	TakeProfitPrice float64   `json:"take_profit_price"`
}

// UnrealizedPnL values the position against the given price, fees excluded.
func (p Position) UnrealizedPnL(price float64) float64 {
	return (price - p.EntryPrice) * p.Quantity * p.Side.Sign()
}

// ClosedTrade is the immutable record derived from a position at close time.
type ClosedTrade struct {
	Symbol      string        `json:"symbol"`
	Side        Side          `json:"side"`
	EntryPrice  float64       `json:"entry_price"`
	ExitPrice   float64       `json:"exit_price"`
	Quantity    float64       `json:"quantity"`
	EntryTime   time.Time     `json:"entry_time"`
	ExitTime    time.Time     `json:"exit_time"`
	RealizedPnL float64       `json:"realized_pnl"`
	Fees        float64       `json:"fees"`
	Reason      string        `json:"reason"`
	Duration    time.Duration `json:"duration"`
}

// Stats are analytics derived from the trade history on demand.
type Stats struct {
	Trades      int           `json:"trades"`
	Wins        int           `json:"wins"`
	Losses      int           `json:"losses"`
	WinRate     float64       `json:"win_rate"` // in [0,1]
	TotalPnL    float64       `json:"total_pnl"`
	AvgPnL      float64       `json:"avg_pnl"`
	AvgDuration time.Duration `json:"avg_duration"`
}
