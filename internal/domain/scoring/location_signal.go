package scoring

import (
	"fmt"

	"github.com/paysentry/fraud-engine/internal/domain"
)

const weightLocationMismatch = 0.15

// LocationMismatchSignal flags payments claimed from a city other than the
// user's usual one.
type LocationMismatchSignal struct{}

// NewLocationMismatchSignal creates a new location mismatch signal
func NewLocationMismatchSignal() *LocationMismatchSignal {
	return &LocationMismatchSignal{}
}

// Name returns the signal name
func (s *LocationMismatchSignal) Name() string {
	return "Location Mismatch"
}

// Evaluate compares the claimed city with the behavior profile's usual city
func (s *LocationMismatchSignal) Evaluate(input SignalInput) *domain.Flag {
	if input.Behavior == nil || input.Behavior.UsualCity == "" || input.Request.Location == "" {
		return nil
	}
	if sameLocation(input.Request.Location, input.Behavior.UsualCity) {
		return nil
	}

	return &domain.Flag{
		Type:     "LOCATION_MISMATCH",
		Weight:   weightLocationMismatch,
		Evidence: fmt.Sprintf("Claimed city '%s' differs from usual city '%s'", input.Request.Location, input.Behavior.UsualCity),
	}
}
