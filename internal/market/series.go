package market

import (
	"context"
	"fmt"
)

// Source fetches historical candles from a market-data backend.
type Source interface {
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// ValidateSeries checks the invariants every consumer of a price series
// assumes: time-ascending order and no duplicate open timestamps.
func ValidateSeries(candles []Candle) error {
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1].OpenTime, candles[i].OpenTime
		if cur == prev {
			return fmt.Errorf("duplicate candle timestamp %d at index %d", cur, i)
		}
		if cur < prev {
			return fmt.Errorf("candles out of order at index %d: %d < %d", i, cur, prev)
		}
	}
	return nil
}
