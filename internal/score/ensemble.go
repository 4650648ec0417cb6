package score

import "vela/internal/types"

// Ensemble folds scored signals from independent detectors into a single
// decision per symbol.
type Ensemble struct {
	strategyWeights map[string]float64
}

// DefaultStrategyWeights gives every registered detector equal say.
func DefaultStrategyWeights() map[string]float64 {
	return map[string]float64{
		"trend_follow":   1.0,
		"mean_reversion": 1.0,
		"momentum":       1.0,
	}
}

func NewEnsemble(strategyWeights map[string]float64) *Ensemble {
	if len(strategyWeights) == 0 {
		strategyWeights = DefaultStrategyWeights()
	}
	return &Ensemble{strategyWeights: strategyWeights}
}

// Combine sums confidence-weighted votes per action. Ties resolve to the
// action that appeared first in the input, which is why the accumulator is
// an ordered slice and not a map. No signals means PASS.
func (e *Ensemble) Combine(signals []types.ScoredSignal) types.EnsembleDecision {
	if len(signals) == 0 {
		return types.EnsembleDecision{Decision: types.DecisionPass}
	}
	var weights []types.ActionWeight
	index := make(map[types.Action]int)
	for _, s := range signals {
		w, ok := e.strategyWeights[s.Strategy]
		if !ok {
			w = 1.0
		}
		vote := s.Confidence * w
		if i, seen := index[s.Action]; seen {
			weights[i].Weight += vote
			continue
		}
		index[s.Action] = len(weights)
		weights = append(weights, types.ActionWeight{Action: s.Action, Weight: vote})
	}
	best := weights[0]
	for _, w := range weights[1:] {
		if w.Weight > best.Weight {
			best = w
		}
	}
	decision := types.DecisionEnterLong
	if best.Action == types.ActionSell {
		decision = types.DecisionEnterShort
	}
	return types.EnsembleDecision{Decision: decision, Weights: weights}
}
