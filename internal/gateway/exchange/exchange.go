// Package exchange defines the venue-facing capability the engine depends
// on: candle history, market orders and account balance. Implementations
// map venue-specific failures into the shared error taxonomy so the tick
// loop can tell transient faults from rejected orders.
package exchange

import (
	"context"
	"errors"

	"tessera/internal/market"
)

var (
	// ErrDataUnavailable marks a transient market-data failure; the tick is
	// skipped and retried on the next interval.
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrOrderRejected marks a venue-side order rejection; the entry attempt
	// is abandoned for this tick.
	ErrOrderRejected = errors.New("order rejected")
	// ErrInsufficientBalance marks an order rejection for lack of margin.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Fill is the executed result of a market order.
type Fill struct {
	Price    float64
	Quantity float64
}

// Client is the full venue capability.
type Client interface {
	market.Source
	// PlaceMarketOrder submits a market order; side is "BUY" or "SELL".
	PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64) (Fill, error)
	// AccountBalance returns the total stake-currency balance.
	AccountBalance(ctx context.Context) (float64, error)
}
