// Package ensemble combines independent strategy signals into a single
// decision via weighted signed voting.
package ensemble

import (
	"tessera/internal/strategy"
)

// Vote records one strategy's contribution to a decision.
type Vote struct {
	Direction  strategy.Direction `json:"direction"`
	Confidence float64            `json:"confidence"`
	Weight     float64            `json:"weight"`
}

// Decision is the combined outcome for one tick. It is immutable once
// returned; Breakdown maps strategy name to its vote.
type Decision struct {
	Direction       strategy.Direction `json:"direction"`
	TotalConfidence float64            `json:"total_confidence"`
	Breakdown       map[string]Vote    `json:"breakdown"`
}

// Aggregator applies configured per-strategy weights and confidence floors.
type Aggregator struct {
	weights       map[string]float64
	floors        map[string]float64
	minConfidence float64
}

// New builds an aggregator. Strategies without a configured weight carry
// weight 0 and therefore cannot sway the decision; floors default to 0.
func New(weights, floors map[string]float64, minConfidence float64) *Aggregator {
	w := make(map[string]float64, len(weights))
	for k, v := range weights {
		w[k] = v
	}
	f := make(map[string]float64, len(floors))
	for k, v := range floors {
		f[k] = v
	}
	return &Aggregator{weights: w, floors: f, minConfidence: minConfidence}
}

// Aggregate folds the named signals into one decision.
//
// A strategy participates when its confidence reaches its floor. Each
// participant votes weight*confidence, signed by direction (BUY=+1, SELL=-1,
// HOLD=0). The final direction follows the sign of the vote sum; an exact
// zero resolves to HOLD, never to an arbitrary side. TotalConfidence is the
// weighted confidence normalized over participating weights only, and the
// decision degrades to HOLD when it stays below the global minimum.
func (a *Aggregator) Aggregate(signals map[string]strategy.Signal) Decision {
	breakdown := make(map[string]Vote, len(signals))

	var voteSum, confSum, weightSum float64
	for name, sig := range signals {
		weight := a.weights[name]
		breakdown[name] = Vote{Direction: sig.Direction, Confidence: sig.Confidence, Weight: weight}

		if sig.Confidence < a.floors[name] {
			continue
		}
		magnitude := weight * sig.Confidence
		voteSum += directionSign(sig.Direction) * magnitude
		confSum += magnitude
		weightSum += weight
	}

	decision := Decision{Direction: strategy.Hold, Breakdown: breakdown}
	if weightSum == 0 {
		return decision
	}
	decision.TotalConfidence = confSum / weightSum

	switch {
	case voteSum > 0:
		decision.Direction = strategy.Buy
	case voteSum < 0:
		decision.Direction = strategy.Sell
	}
	if decision.TotalConfidence < a.minConfidence {
		decision.Direction = strategy.Hold
	}
	return decision
}

func directionSign(d strategy.Direction) float64 {
	switch d {
	case strategy.Buy:
		return 1
	case strategy.Sell:
		return -1
	}
	return 0
}
