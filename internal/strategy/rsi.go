package strategy

import (
	"tessera/internal/indicator"
	"tessera/internal/market"
)

const (
	defaultRSIPeriod     = 14
	defaultRSIOversold   = 30
	defaultRSIOverbought = 70
)

// RSIStrategy buys oversold and sells overbought conditions. Confidence
// grows with the distance past the threshold.
type RSIStrategy struct {
	period     int
	oversold   float64
	overbought float64
}

// NewRSIStrategy builds an RSI strategy; non-positive arguments fall back to
// the conventional 14/30/70 parameters.
func NewRSIStrategy(period int, oversold, overbought float64) *RSIStrategy {
	if period <= 0 {
		period = defaultRSIPeriod
	}
	if oversold <= 0 {
		oversold = defaultRSIOversold
	}
	if overbought <= 0 {
		overbought = defaultRSIOverbought
	}
	return &RSIStrategy{period: period, oversold: oversold, overbought: overbought}
}

func (s *RSIStrategy) Name() string { return "rsi" }

func (s *RSIStrategy) Evaluate(candles []market.Candle) Signal {
	value, err := indicator.RSI(market.Closes(candles), s.period)
	if err != nil {
		return HoldSignal
	}
	switch {
	case value < s.oversold:
		return Signal{Direction: Buy, Confidence: clamp01((s.oversold - value) / s.oversold)}
	case value > s.overbought:
		return Signal{Direction: Sell, Confidence: clamp01((value - s.overbought) / (100 - s.overbought))}
	}
	return HoldSignal
}
