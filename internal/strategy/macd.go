package strategy

import (
	"math"

	"tessera/internal/indicator"
	"tessera/internal/market"
)

const (
	defaultMACDFast    = 12
	defaultMACDSlow    = 26
	defaultMACDSignal  = 9
	defaultMACDDivisor = 10
	macdATRPeriod      = 14

	// crossoverEps absorbs float noise in the MACD/signal difference: on a
	// long one-sided trend both lines converge and their difference decays
	// to rounding error (~1e-15), which must still read as "at the line".
	crossoverEps = 1e-9
)

// MACDStrategy signals on MACD/signal-line crossovers within the last two
// samples. Confidence is the crossover gap normalized by recent volatility
// (ATR) when the series supports it, otherwise by a fixed divisor.
type MACDStrategy struct {
	fast    int
	slow    int
	signal  int
	divisor float64
}

// NewMACDStrategy builds a MACD crossover strategy; non-positive arguments
// fall back to the conventional 12/26/9 parameters.
func NewMACDStrategy(fast, slow, signal int, divisor float64) *MACDStrategy {
	if fast <= 0 {
		fast = defaultMACDFast
	}
	if slow <= 0 {
		slow = defaultMACDSlow
	}
	if signal <= 0 {
		signal = defaultMACDSignal
	}
	if divisor <= 0 {
		divisor = defaultMACDDivisor
	}
	return &MACDStrategy{fast: fast, slow: slow, signal: signal, divisor: divisor}
}

func (s *MACDStrategy) Name() string { return "macd" }

func (s *MACDStrategy) Evaluate(candles []market.Candle) Signal {
	res, err := indicator.MACD(market.Closes(candles), s.fast, s.slow, s.signal)
	if err != nil || len(res.MACD) < 2 {
		return HoldSignal
	}
	n := len(res.MACD)
	prevDiff := res.MACD[n-2] - res.Signal[n-2]
	curDiff := res.MACD[n-1] - res.Signal[n-1]

	var dir Direction
	switch {
	case prevDiff <= crossoverEps && curDiff > crossoverEps:
		dir = Buy
	case prevDiff >= -crossoverEps && curDiff < -crossoverEps:
		dir = Sell
	default:
		return HoldSignal
	}
	return Signal{Direction: dir, Confidence: s.confidence(candles, curDiff)}
}

// confidence maps the crossover gap into [0,1]. The normalization scale is a
// tunable, not a law: ATR tracks the instrument's price scale, the fixed
// divisor is the fallback for short series.
func (s *MACDStrategy) confidence(candles []market.Candle, gap float64) float64 {
	scale := s.divisor
	if atr, err := indicator.ATR(candles, macdATRPeriod); err == nil && atr > 0 {
		scale = atr
	}
	return clamp01(math.Abs(gap) / scale)
}
