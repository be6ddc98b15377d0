// Package indicator computes technical indicators over close-price series.
//
// All functions are pure and deterministic. Series that are too short to
// produce a value return ErrInsufficientData instead of NaN so callers can
// degrade to a neutral signal rather than propagate garbage.
package indicator

import (
	"errors"
	"fmt"

	"github.com/markcheno/go-talib"

	"tessera/internal/market"
)

// ErrInsufficientData is returned when a series is shorter than the minimum
// window an indicator needs.
var ErrInsufficientData = errors.New("insufficient data")

// RSI computes Wilder's Relative Strength Index over the last value of the
// series. It needs period+1 closes (period deltas).
//
// Boundary policy: avg_loss==0 yields 100; a perfectly flat series
// (avg_gain==0 and avg_loss==0) yields the neutral 50.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("rsi: period must be positive, got %d", period)
	}
	if len(closes) < period+1 {
		return 0, ErrInsufficientData
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder smoothing for the remainder of the series.
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		var gain, loss float64
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	switch {
	case avgGain == 0 && avgLoss == 0:
		return 50, nil
	case avgLoss == 0:
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// EMA computes an exponential moving average seeded with the simple average
// of the first period values. The returned series starts at input index
// period-1 and has len(values)-period+1 entries.
func EMA(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("ema: period must be positive, got %d", period)
	}
	if len(values) < period {
		return nil, ErrInsufficientData
	}
	out := make([]float64, 0, len(values)-period+1)
	var seed float64
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)
	out = append(out, seed)

	k := 2.0 / (float64(period) + 1)
	for _, v := range values[period:] {
		seed = v*k + seed*(1-k)
		out = append(out, seed)
	}
	return out, nil
}

// MACDResult holds aligned MACD, signal and histogram series. Index i of
// every slice refers to the same input bar; the last element is the most
// recent one.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes the MACD line (EMA(fast)-EMA(slow)), its signal line
// (EMA(signalPeriod) of the MACD line) and the histogram. The series must be
// long enough to produce at least one signal sample, i.e. at least
// slow+signalPeriod-1 closes.
func MACD(closes []float64, fast, slow, signalPeriod int) (MACDResult, error) {
	if fast <= 0 || slow <= 0 || signalPeriod <= 0 {
		return MACDResult{}, fmt.Errorf("macd: periods must be positive (fast=%d slow=%d signal=%d)", fast, slow, signalPeriod)
	}
	if fast >= slow {
		return MACDResult{}, fmt.Errorf("macd: fast period %d must be below slow period %d", fast, slow)
	}
	if len(closes) < slow+signalPeriod-1 {
		return MACDResult{}, ErrInsufficientData
	}

	emaFast, err := EMA(closes, fast)
	if err != nil {
		return MACDResult{}, err
	}
	emaSlow, err := EMA(closes, slow)
	if err != nil {
		return MACDResult{}, err
	}

	// emaFast[j] refers to input index fast-1+j, emaSlow[j] to slow-1+j.
	// The MACD line is defined from input index slow-1 onward.
	offset := slow - fast
	macdLine := make([]float64, len(emaSlow))
	for j := range emaSlow {
		macdLine[j] = emaFast[offset+j] - emaSlow[j]
	}

	signalLine, err := EMA(macdLine, signalPeriod)
	if err != nil {
		return MACDResult{}, err
	}

	aligned := macdLine[signalPeriod-1:]
	hist := make([]float64, len(signalLine))
	for i := range signalLine {
		hist[i] = aligned[i] - signalLine[i]
	}
	return MACDResult{MACD: aligned, Signal: signalLine, Histogram: hist}, nil
}

// ATR returns the latest Average True Range value for the candles, using
// talib's Wilder-smoothed implementation. Needs period+1 candles.
func ATR(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("atr: period must be positive, got %d", period)
	}
	if len(candles) < period+1 {
		return 0, ErrInsufficientData
	}
	series := talib.Atr(market.Highs(candles), market.Lows(candles), market.Closes(candles), period)
	if len(series) == 0 {
		return 0, ErrInsufficientData
	}
	return series[len(series)-1], nil
}
