package scoring

import (
	"math"
	"time"

	"github.com/paysentry/fraud-engine/internal/domain"
)

// BLAResult is the business-logic-analysis sub-score and the flags behind it
type BLAResult struct {
	Score float64
	Flags []domain.Flag
}

// BLAScorer is a pure, additive rule scorer over pluggable signals
//
// Scores accumulate across every raised flag and are capped at 1.0. With the
// standard weights the maximum is 0.90, but the cap keeps the BLA score a
// probability-like value if the weights are ever retuned.
type BLAScorer struct {
	signals []Signal
}

// NewBLAScorer creates a scorer over the given signals
func NewBLAScorer(signals ...Signal) *BLAScorer {
	return &BLAScorer{signals: signals}
}

// NewDefaultBLAScorer creates a scorer with the five standard signals
func NewDefaultBLAScorer(travelWindow time.Duration) *BLAScorer {
	return NewBLAScorer(
		NewLocationMismatchSignal(),
		NewAddressMismatchSignal(),
		NewSpendLimitSignal(),
		NewAverageSpendSignal(),
		NewImpossibleTravelSignal(travelWindow),
	)
}

// Score runs every signal. Missing behavior history yields a zero score
// with no flags.
func (s *BLAScorer) Score(input SignalInput) BLAResult {
	result := BLAResult{Flags: make([]domain.Flag, 0)}
	if input.Behavior == nil {
		return result
	}

	total := 0.0
	for _, signal := range s.signals {
		if flag := signal.Evaluate(input); flag != nil {
			total += flag.Weight
			result.Flags = append(result.Flags, *flag)
		}
	}

	result.Score = math.Min(total, 1.0)
	return result
}
