package scoring

import (
	"fmt"
	"time"

	"github.com/paysentry/fraud-engine/internal/domain"
)

const weightImpossibleTravel = 0.30

// ImpossibleTravelSignal is the BLA view of the impossible-travel detector.
// The engine evaluates the same predicate separately to drive the override.
type ImpossibleTravelSignal struct {
	window time.Duration
}

// NewImpossibleTravelSignal creates a new impossible travel signal
func NewImpossibleTravelSignal(window time.Duration) *ImpossibleTravelSignal {
	if window <= 0 {
		window = DefaultTravelWindow
	}
	return &ImpossibleTravelSignal{window: window}
}

// Name returns the signal name
func (s *ImpossibleTravelSignal) Name() string {
	return "Impossible Travel"
}

// Evaluate checks how quickly the claimed location changed
func (s *ImpossibleTravelSignal) Evaluate(input SignalInput) *domain.Flag {
	if input.Now.IsZero() {
		return nil
	}
	detected, elapsed := ImpossibleTravel(input.Request.Location, input.Now, input.Behavior, s.window)
	if !detected {
		return nil
	}

	return &domain.Flag{
		Type:   "IMPOSSIBLE_TRAVEL",
		Weight: weightImpossibleTravel,
		Evidence: fmt.Sprintf("Location changed %s -> %s in %.1f minutes",
			input.Behavior.LastLocation, input.Request.Location, elapsed.Minutes()),
	}
}
