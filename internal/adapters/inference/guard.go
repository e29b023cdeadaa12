package inference

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paysentry/fraud-engine/internal/domain"
	"github.com/paysentry/fraud-engine/internal/metrics"
	"github.com/paysentry/fraud-engine/internal/ports"
)

// Guarded runs an in-process backend with the worker's containment: a hard
// timeout and recovery from panics. A backend that ignores its context keeps
// running in the background, but the caller is released on time.
type Guarded struct {
	backend ports.InferenceBackend
	timeout time.Duration
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewGuarded wraps backend
func NewGuarded(backend ports.InferenceBackend, timeout time.Duration, collector *metrics.Collector, logger *slog.Logger) *Guarded {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{backend: backend, timeout: timeout, metrics: collector, logger: logger}
}

type guardedResult struct {
	probs  ports.Probabilities
	err    error
	reason string
}

// PredictProba implements ports.InferenceBackend
func (g *Guarded) PredictProba(ctx context.Context, features []float64) (ports.Probabilities, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan guardedResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				g.logger.Error("In-process model panicked", slog.Any("panic", r))
				done <- guardedResult{
					err:    fmt.Errorf("%w: model panicked: %v", domain.ErrInferenceUnavailable, r),
					reason: metrics.ReasonPanic,
				}
			}
		}()

		probs, err := g.backend.PredictProba(ctx, features)
		res := guardedResult{probs: probs}
		if err != nil {
			res.err = fmt.Errorf("%w: %v", domain.ErrInferenceUnavailable, err)
			res.reason = metrics.ReasonWorker
		}
		done <- res
	}()

	select {
	case res := <-done:
		g.metrics.ObserveInference(time.Since(start), res.reason)
		return res.probs, res.err
	case <-ctx.Done():
		g.metrics.ObserveInference(time.Since(start), metrics.ReasonTimeout)
		return ports.Probabilities{}, fmt.Errorf("%w: in-process model exceeded %s", domain.ErrInferenceUnavailable, g.timeout)
	}
}
