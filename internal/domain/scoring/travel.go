package scoring

import (
	"time"

	"github.com/paysentry/fraud-engine/internal/domain"
)

// DefaultTravelWindow is the minimum plausible time between transactions
// in two different cities.
const DefaultTravelWindow = 60 * time.Minute

// ImpossibleTravel reports whether moving from the last recorded location to
// the current one within the elapsed time is implausible. It also returns the
// elapsed time for evidence. Missing history or locations never trigger.
// A last transaction stamped after now counts as zero elapsed time.
func ImpossibleTravel(location string, now time.Time, behavior *domain.BehaviorProfile, window time.Duration) (bool, time.Duration) {
	if behavior == nil || behavior.LastTransactionAt == nil {
		return false, 0
	}
	if location == "" || behavior.LastLocation == "" {
		return false, 0
	}
	if sameLocation(location, behavior.LastLocation) {
		return false, 0
	}

	elapsed := now.Sub(*behavior.LastTransactionAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed < window, elapsed
}
