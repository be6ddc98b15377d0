package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/internal/market"
)

func TestRSIInsufficientData(t *testing.T) {
	closes := []float64{1, 2, 3}
	_, err := RSI(closes, 14)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestRSIAllGains(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	v, err := RSI(closes, 14)
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)
}

func TestRSIFlatSeriesIsNeutral(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 42
	}
	v, err := RSI(closes, 14)
	require.NoError(t, err)
	assert.Equal(t, 50.0, v)
}

func TestRSIAllLosses(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}
	v, err := RSI(closes, 14)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestRSIKnownSequence(t *testing.T) {
	// Two gains and two losses of equal size over period 4: RS=1, RSI=50.
	closes := []float64{10, 11, 10, 11, 10}
	v, err := RSI(closes, 4)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, v, 1e-9)
}

func TestRSIDeterministic(t *testing.T) {
	closes := []float64{44, 44.3, 44.1, 43.6, 44.3, 44.8, 45.1, 45.4, 45.8, 46.1, 45.9, 46.3, 46.2, 46.0, 46.5, 46.2}
	a, err := RSI(closes, 14)
	require.NoError(t, err)
	b, err := RSI(closes, 14)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Greater(t, a, 0.0)
	assert.Less(t, a, 100.0)
}

func TestEMASeededWithSimpleAverage(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	out, err := EMA(values, 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.InDelta(t, 2.0, out[0], 1e-9) // (1+2+3)/3
	// k = 2/(3+1) = 0.5
	assert.InDelta(t, 4*0.5+2*0.5, out[1], 1e-9)
	assert.InDelta(t, 5*0.5+3*0.5, out[2], 1e-9)
}

func TestEMAInsufficientData(t *testing.T) {
	_, err := EMA([]float64{1, 2}, 3)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestMACDInsufficientData(t *testing.T) {
	closes := make([]float64, 33) // below 26+9-1 = 34
	_, err := MACD(closes, 12, 26, 9)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestMACDAlignmentAndHistogram(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}
	res, err := MACD(closes, 12, 26, 9)
	require.NoError(t, err)
	require.Equal(t, len(res.MACD), len(res.Signal))
	require.Equal(t, len(res.MACD), len(res.Histogram))
	require.GreaterOrEqual(t, len(res.MACD), 2)
	for i := range res.Histogram {
		assert.InDelta(t, res.MACD[i]-res.Signal[i], res.Histogram[i], 1e-9)
	}
	// Steady uptrend: fast EMA sits above slow EMA, so MACD is positive.
	assert.Greater(t, res.MACD[len(res.MACD)-1], 0.0)
}

func TestMACDRejectsBadPeriods(t *testing.T) {
	_, err := MACD(make([]float64, 100), 26, 12, 9)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInsufficientData)
}

func TestATR(t *testing.T) {
	candles := make([]market.Candle, 30)
	for i := range candles {
		base := 100 + float64(i)
		candles[i] = market.Candle{OpenTime: int64(i), High: base + 1, Low: base - 1, Close: base}
	}
	v, err := ATR(candles, 14)
	require.NoError(t, err)
	assert.Greater(t, v, 0.0)

	_, err = ATR(candles[:5], 14)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
