package scoring

import (
	"fmt"

	"github.com/paysentry/fraud-engine/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	weightAverageSpend = 0.15

	// averageSpendMultiplier is how far above the running average an amount
	// must be before it counts as a deviation.
	averageSpendMultiplier = 2
)

// AverageSpendSignal flags amounts far above the user's running average
type AverageSpendSignal struct{}

// NewAverageSpendSignal creates a new average-spend deviation signal
func NewAverageSpendSignal() *AverageSpendSignal {
	return &AverageSpendSignal{}
}

// Name returns the signal name
func (s *AverageSpendSignal) Name() string {
	return "Average Spend Deviation"
}

// Evaluate compares the amount with twice the running average.
// Users without a positive average are never flagged.
func (s *AverageSpendSignal) Evaluate(input SignalInput) *domain.Flag {
	if input.Behavior == nil || !input.Behavior.AvgSpend.IsPositive() {
		return nil
	}

	ceiling := input.Behavior.AvgSpend.Mul(decimal.NewFromInt(averageSpendMultiplier))
	if !input.Request.Amount.GreaterThan(ceiling) {
		return nil
	}

	return &domain.Flag{
		Type:     "AVG_SPEND_MISMATCH",
		Weight:   weightAverageSpend,
		Evidence: fmt.Sprintf("Amount %s is more than %dx the average spend %s", input.Request.Amount.StringFixed(2), averageSpendMultiplier, input.Behavior.AvgSpend.StringFixed(2)),
	}
}
