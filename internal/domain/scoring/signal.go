package scoring

import (
	"time"

	"github.com/paysentry/fraud-engine/internal/domain"
)

// Signal is a single business-logic-analysis check
//
// Each signal is independent: it looks at the request and the user's
// profiles, and either raises a weighted flag or returns nil. The BLA scorer
// sums the weights of every raised flag.
type Signal interface {
	// Evaluate returns a Flag if the signal triggers, nil otherwise
	Evaluate(input SignalInput) *domain.Flag

	// Name returns the human-readable name of this signal
	Name() string
}

// SignalInput bundles the facts a signal may inspect. Now is the engine's
// clock reading for this assessment.
type SignalInput struct {
	Request  domain.TransactionRequest
	User     *domain.UserProfile
	Behavior *domain.BehaviorProfile
	Now      time.Time
}
