package inference

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paysentry/fraud-engine/internal/domain"
	"github.com/paysentry/fraud-engine/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcBackend func(ctx context.Context, features []float64) (ports.Probabilities, error)

func (f funcBackend) PredictProba(ctx context.Context, features []float64) (ports.Probabilities, error) {
	return f(ctx, features)
}

func TestGuarded_PassesThrough(t *testing.T) {
	g := NewGuarded(funcBackend(func(ctx context.Context, features []float64) (ports.Probabilities, error) {
		return ports.Probabilities{Legit: 0.7, Fraud: 0.3}, nil
	}), time.Second, nil, discardLogger)

	probs, err := g.PredictProba(context.Background(), []float64{1})
	require.NoError(t, err)
	assert.Equal(t, 0.3, probs.Fraud)
}

func TestGuarded_Containment(t *testing.T) {
	tests := []struct {
		name    string
		backend funcBackend
	}{
		{"Panic", func(ctx context.Context, features []float64) (ports.Probabilities, error) {
			panic("index out of range")
		}},
		{"Hang", func(ctx context.Context, features []float64) (ports.Probabilities, error) {
			time.Sleep(2 * time.Second)
			return ports.Probabilities{Fraud: 0.9}, nil
		}},
		{"Error", func(ctx context.Context, features []float64) (ports.Probabilities, error) {
			return ports.Probabilities{}, errors.New("bad input shape")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGuarded(tt.backend, 100*time.Millisecond, nil, discardLogger)

			start := time.Now()
			_, err := g.PredictProba(context.Background(), []float64{1})

			assert.ErrorIs(t, err, domain.ErrInferenceUnavailable)
			assert.Less(t, time.Since(start), time.Second)
		})
	}
}
