package mlmodel

import (
	"context"
	"fmt"

	"github.com/paysentry/fraud-engine/internal/domain"
	"github.com/paysentry/fraud-engine/internal/ports"
)

// Backend serves a loaded model in-process. Wrap it with the inference
// guard to get the same timeout and crash containment as the worker.
type Backend struct {
	model Model
}

// NewBackend creates an in-process inference backend
func NewBackend(model Model) *Backend {
	return &Backend{model: model}
}

// PredictProba scores a single feature row
func (b *Backend) PredictProba(ctx context.Context, features []float64) (ports.Probabilities, error) {
	if err := ctx.Err(); err != nil {
		return ports.Probabilities{}, fmt.Errorf("%w: %v", domain.ErrInferenceUnavailable, err)
	}

	proba, _, err := PredictProba(b.model, [][]float64{features})
	if err != nil {
		return ports.Probabilities{}, fmt.Errorf("%w: %v", domain.ErrInferenceUnavailable, err)
	}
	if len(proba) != 1 || len(proba[0]) < 2 {
		return ports.Probabilities{}, fmt.Errorf("%w: model produced no probabilities", domain.ErrInferenceUnavailable)
	}
	return ports.Probabilities{Legit: proba[0][0], Fraud: proba[0][1]}, nil
}
