// Package strategy derives directional signals from candle series.
//
// A Strategy never fails a tick: when its indicator cannot be computed it
// answers Hold with zero confidence and the caller moves on.
package strategy

import "tessera/internal/market"

// Direction is the directional component of a signal.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
	Hold Direction = "HOLD"
)

// Signal is one strategy's vote for a single series snapshot.
type Signal struct {
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"` // in [0,1]
}

// HoldSignal is the neutral no-vote result.
var HoldSignal = Signal{Direction: Hold, Confidence: 0}

// Strategy evaluates a price series into a signal.
type Strategy interface {
	Name() string
	Evaluate(candles []market.Candle) Signal
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
