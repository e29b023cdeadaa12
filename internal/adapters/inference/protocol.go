package inference

import (
	"math"
)

// Action selects what the worker computes
type Action string

const (
	ActionPredict      Action = "predict"
	ActionPredictProba Action = "predict_proba"
)

// Request is the single JSON document written to the worker's stdin
type Request struct {
	Features [][]float64 `json:"features"`
	Action   Action      `json:"action"`
}

// Response is the single JSON document the worker writes to stdout.
// Exactly one of Predict, PredictProba or Error is set.
type Response struct {
	Predict      []float64   `json:"predict,omitempty"`
	PredictProba [][]float64 `json:"predict_proba,omitempty"`
	Error        string      `json:"error,omitempty"`
	Features     string      `json:"features,omitempty"` // received input, echoed on error
}

// sanitize replaces values JSON cannot carry
func sanitize(features []float64) []float64 {
	out := make([]float64, len(features))
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = v
	}
	return out
}
