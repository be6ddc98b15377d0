package paper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/internal/gateway/exchange"
	"tessera/internal/market"
)

type fixedSource struct {
	candles []market.Candle
	err     error
}

func (s fixedSource) FetchCandles(context.Context, string, string, int) ([]market.Candle, error) {
	return s.candles, s.err
}

func TestOrderRejectedBeforeFirstFetch(t *testing.T) {
	c := New(fixedSource{}, 10000)
	_, err := c.PlaceMarketOrder(context.Background(), "BTCUSDT", "BUY", 0.004)
	assert.ErrorIs(t, err, exchange.ErrOrderRejected)
}

func TestFillsAtLastFetchedClose(t *testing.T) {
	src := fixedSource{candles: []market.Candle{
		{OpenTime: 1, Close: 49000},
		{OpenTime: 2, Close: 50000},
	}}
	c := New(src, 10000)

	_, err := c.FetchCandles(context.Background(), "BTCUSDT", "1m", 2)
	require.NoError(t, err)

	fill, err := c.PlaceMarketOrder(context.Background(), "BTCUSDT", "BUY", 0.004)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, fill.Price)
	assert.Equal(t, 0.004, fill.Quantity)
}

func TestFetchErrorPassesThrough(t *testing.T) {
	wantErr := errors.New("boom")
	c := New(fixedSource{err: wantErr}, 10000)
	_, err := c.FetchCandles(context.Background(), "BTCUSDT", "1m", 2)
	assert.ErrorIs(t, err, wantErr)
}

func TestStaticBalance(t *testing.T) {
	c := New(fixedSource{}, 12345)
	balance, err := c.AccountBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12345.0, balance)
}
