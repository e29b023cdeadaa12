package scoring

import (
	"github.com/paysentry/fraud-engine/internal/domain"
)

const (
	// Established-tier blend weights
	mlWeight  = 0.65
	blaWeight = 0.35

	// DefaultMLPrior is used whenever inference yields no result. A model
	// outage therefore biases toward approval (degrade-open).
	DefaultMLPrior = 0.05

	// OverrideScore is forced when impossible travel is detected
	OverrideScore = 1.0
)

// Combine blends the sub-scores for a tier. The travel override wins over
// any blended value.
func Combine(tier domain.Tier, ml, bla float64, override bool) float64 {
	if override {
		return OverrideScore
	}
	if tier == domain.TierNew {
		return clamp01(ml)
	}
	return clamp01(ml*mlWeight + bla*blaWeight)
}
