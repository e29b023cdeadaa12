package domain

import (
	"fmt"
	"math"
)

// Default cut points of the decision policy
const (
	DefaultApproveThreshold = 0.20
	DefaultBlockThreshold   = 0.70
)

// Thresholds are the only decision surface: a score at or below Approve is
// approved, a score above Block is blocked, anything in between is
// challenged with an OTP.
type Thresholds struct {
	Approve float64
	Block   float64
}

// DefaultThresholds returns the production cut points
func DefaultThresholds() Thresholds {
	return Thresholds{
		Approve: DefaultApproveThreshold,
		Block:   DefaultBlockThreshold,
	}
}

// Validate checks that the cut points describe three non-empty bands in [0,1]
func (t Thresholds) Validate() error {
	if t.Approve < 0 || t.Block > 1 || t.Approve >= t.Block {
		return fmt.Errorf("%w: thresholds must satisfy 0 <= approve < block <= 1 (approve=%.2f, block=%.2f)",
			ErrInvalidInput, t.Approve, t.Block)
	}
	return nil
}

// Decide maps a final fraud score to a status
func (t Thresholds) Decide(score float64) Status {
	switch {
	case score <= t.Approve:
		return StatusApproved
	case score <= t.Block:
		return StatusOTPSent
	default:
		return StatusBlocked
	}
}

// RoundScore rounds a score to the four decimal places reported in assessments
func RoundScore(score float64) float64 {
	return math.Round(score*10000) / 10000
}
