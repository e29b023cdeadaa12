package scoring

import (
	"testing"

	"github.com/paysentry/fraud-engine/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCombine(t *testing.T) {
	tests := []struct {
		name     string
		tier     domain.Tier
		ml       float64
		bla      float64
		override bool
		expected float64
	}{
		{"New tier uses ML only", domain.TierNew, 0.10, 0.90, false, 0.10},
		{"Established tier blends", domain.TierEstablished, 0.05, 0.20, false, 0.1025},
		{"Established tier both high", domain.TierEstablished, 1.0, 0.9, false, 0.965},
		{"Override on new tier", domain.TierNew, 0.01, 0, true, 1.0},
		{"Override on established tier", domain.TierEstablished, 0.01, 0.3, true, 1.0},
		{"Out of range ML is clamped", domain.TierNew, 1.7, 0, false, 1.0},
		{"Negative ML is clamped", domain.TierNew, -0.2, 0, false, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Combine(tt.tier, tt.ml, tt.bla, tt.override), 1e-9)
		})
	}
}
