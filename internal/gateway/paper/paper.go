// Package paper wraps a real market-data source with simulated execution:
// orders fill instantly at the last fetched close and the balance is a
// static configured amount. Used for dry runs and in tests.
package paper

import (
	"context"
	"fmt"
	"sync"

	"tessera/internal/gateway/exchange"
	"tessera/internal/logger"
	"tessera/internal/market"
)

// Client simulates a venue over live candle data.
type Client struct {
	data    market.Source
	balance float64

	mu        sync.Mutex
	lastClose map[string]float64
}

// New builds a paper client. data provides real candles; balance is the
// static account balance reported to the risk layer.
func New(data market.Source, balance float64) *Client {
	return &Client{
		data:      data,
		balance:   balance,
		lastClose: make(map[string]float64),
	}
}

// FetchCandles proxies to the real source and remembers the last close per
// symbol so later orders have a fill price.
func (c *Client) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	candles, err := c.data.FetchCandles(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	if last := market.LastClose(candles); last > 0 {
		c.mu.Lock()
		c.lastClose[symbol] = last
		c.mu.Unlock()
	}
	return candles, nil
}

// PlaceMarketOrder fills at the last known close for the symbol.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64) (exchange.Fill, error) {
	c.mu.Lock()
	price, ok := c.lastClose[symbol]
	c.mu.Unlock()
	if !ok || price <= 0 {
		return exchange.Fill{}, fmt.Errorf("%w: no reference price for %s yet", exchange.ErrOrderRejected, symbol)
	}
	logger.Infof("Paper order filled symbol=%s side=%s qty=%v price=%v", symbol, side, qty, price)
	return exchange.Fill{Price: price, Quantity: qty}, nil
}

// AccountBalance returns the configured static balance.
func (c *Client) AccountBalance(ctx context.Context) (float64, error) {
	return c.balance, nil
}
