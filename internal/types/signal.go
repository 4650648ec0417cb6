package types

// Action is the direction a detector proposes.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Decision is the final ensemble verdict for one instrument/bar.
type Decision string

const (
	DecisionEnterLong  Decision = "ENTER_LONG"
	DecisionEnterShort Decision = "ENTER_SHORT"
	DecisionExit       Decision = "EXIT"
	DecisionPass       Decision = "PASS"
)

// Rationale carries named numeric/boolean tags a detector or scorer attaches
// to a signal. Persisted as JSON alongside the signal.
type Rationale map[string]any

// Signal is a candidate trade produced by one strategy detector.
// Immutable once produced.
type Signal struct {
	Symbol         string    `json:"symbol"`
	Strategy       string    `json:"strategy"`
	Action         Action    `json:"action"`
	Timeframe      string    `json:"timeframe"`
	Entry          float64   `json:"entry"`
	Stop           float64   `json:"stop"`
	Target         float64   `json:"target,omitempty"`
	BaseConfidence float64   `json:"base_confidence"`
	Rationale      Rationale `json:"rationale,omitempty"`
	At             int64     `json:"at"`
}

// ScoredSignal is a Signal after calibration. Scoring holds the full
// feature/contribution decomposition.
type ScoredSignal struct {
	Signal
	Confidence float64   `json:"confidence"`
	Scoring    Rationale `json:"scoring,omitempty"`
}

// ActionWeight pairs an action with its accumulated ensemble weight.
// Kept as a slice (not a map) so ties break by insertion order.
type ActionWeight struct {
	Action Action  `json:"action"`
	Weight float64 `json:"weight"`
}

// EnsembleDecision is the blended verdict plus the per-action weight table
// that produced it. Derived state, never persisted on its own.
type EnsembleDecision struct {
	Decision Decision       `json:"decision"`
	Weights  []ActionWeight `json:"weights"`
}

// WeightMap flattens the ordered weights for JSON consumers that want a map.
func (d EnsembleDecision) WeightMap() map[string]float64 {
	out := make(map[string]float64, len(d.Weights))
	for _, w := range d.Weights {
		out[string(w.Action)] = w.Weight
	}
	return out
}
