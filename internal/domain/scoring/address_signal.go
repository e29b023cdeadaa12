package scoring

import (
	"fmt"

	"github.com/paysentry/fraud-engine/internal/domain"
)

const weightAddressMismatch = 0.10

// AddressMismatchSignal flags payments from a network address other than the
// one the user registered from.
type AddressMismatchSignal struct{}

// NewAddressMismatchSignal creates a new address mismatch signal
func NewAddressMismatchSignal() *AddressMismatchSignal {
	return &AddressMismatchSignal{}
}

// Name returns the signal name
func (s *AddressMismatchSignal) Name() string {
	return "Address Mismatch"
}

// Evaluate compares the origin address with the registered address.
// A matching address is not evidence of fraud and raises nothing.
func (s *AddressMismatchSignal) Evaluate(input SignalInput) *domain.Flag {
	if input.User == nil || input.User.RegisteredIP == "" || input.Request.IPAddress == "" {
		return nil
	}
	if input.Request.IPAddress == input.User.RegisteredIP {
		return nil
	}

	return &domain.Flag{
		Type:     "IP_MISMATCH",
		Weight:   weightAddressMismatch,
		Evidence: fmt.Sprintf("Origin address %s differs from registered address %s", input.Request.IPAddress, input.User.RegisteredIP),
	}
}
