package scoring

import (
	"fmt"

	"github.com/paysentry/fraud-engine/internal/domain"
)

const weightSpendLimit = 0.20

// SpendLimitSignal flags payments above the user's available card limit
type SpendLimitSignal struct{}

// NewSpendLimitSignal creates a new spend-limit breach signal
func NewSpendLimitSignal() *SpendLimitSignal {
	return &SpendLimitSignal{}
}

// Name returns the signal name
func (s *SpendLimitSignal) Name() string {
	return "Spending Limit"
}

// Evaluate checks the amount against the current limit
func (s *SpendLimitSignal) Evaluate(input SignalInput) *domain.Flag {
	if input.User == nil {
		return nil
	}
	if !input.Request.Amount.GreaterThan(input.User.CurrentLimit) {
		return nil
	}

	return &domain.Flag{
		Type:     "SPENDING_LIMIT",
		Weight:   weightSpendLimit,
		Evidence: fmt.Sprintf("Amount %s exceeds available limit %s", input.Request.Amount.StringFixed(2), input.User.CurrentLimit.StringFixed(2)),
	}
}
