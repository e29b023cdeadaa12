package ports

import (
	"context"
)

// Probabilities is a two-class model output for a single feature row
type Probabilities struct {
	Legit float64 `json:"p0"`
	Fraud float64 `json:"p1"`
}

// InferenceBackend obtains P(fraud=1) for a feature vector
//
// Implementations must bound their latency and contain their own failures:
// a crash, hang or malformed model output is reported as an error wrapping
// domain.ErrInferenceUnavailable, never as a panic.
type InferenceBackend interface {
	PredictProba(ctx context.Context, features []float64) (Probabilities, error)
}
