package scoring

import (
	"testing"
	"time"

	"github.com/paysentry/fraud-engine/internal/domain"
	"github.com/stretchr/testify/assert"
)

// fixedSignal always raises a flag with the given weight
type fixedSignal struct {
	weight float64
}

func (s fixedSignal) Name() string { return "Fixed" }

func (s fixedSignal) Evaluate(input SignalInput) *domain.Flag {
	return &domain.Flag{Type: "FIXED", Weight: s.weight}
}

func TestBLAScorer_Score(t *testing.T) {
	scorer := NewDefaultBLAScorer(DefaultTravelWindow)

	tests := []struct {
		name          string
		input         SignalInput
		expectedScore float64
		expectedFlags []string
	}{
		{
			name: "Clean transaction - zero score",
			input: SignalInput{
				Request:  request(100, "Paris", "10.0.0.1"),
				User:     user(1000),
				Behavior: behavior(5, 100, "Paris", 10*time.Minute),
				Now:      testNow,
			},
			expectedScore: 0.0,
			expectedFlags: []string{},
		},
		{
			name: "Limit breach alone",
			input: SignalInput{
				Request:  request(1500, "Paris", "10.0.0.1"),
				User:     user(1000),
				Behavior: behavior(5, 1000, "", 0),
				Now:      testNow,
			},
			expectedScore: 0.20,
			expectedFlags: []string{"SPENDING_LIMIT"},
		},
		{
			name: "Every signal raised",
			input: SignalInput{
				Request:  request(5000, "Tokyo", "203.0.113.7"),
				User:     user(1000),
				Behavior: behavior(5, 100, "Paris", 10*time.Minute),
				Now:      testNow,
			},
			expectedScore: 0.90,
			expectedFlags: []string{"LOCATION_MISMATCH", "IP_MISMATCH", "SPENDING_LIMIT", "AVG_SPEND_MISMATCH", "IMPOSSIBLE_TRAVEL"},
		},
		{
			name: "No behavior history - zero score",
			input: SignalInput{
				Request: request(5000, "Tokyo", "203.0.113.7"),
				User:    user(1000),
			},
			expectedScore: 0.0,
			expectedFlags: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := scorer.Score(tt.input)
			assert.InDelta(t, tt.expectedScore, result.Score, 1e-9)

			types := make([]string, 0, len(result.Flags))
			for _, f := range result.Flags {
				types = append(types, f.Type)
			}
			assert.Equal(t, tt.expectedFlags, types)
		})
	}
}

func TestBLAScorer_Monotonic(t *testing.T) {
	signals := []Signal{
		NewLocationMismatchSignal(),
		NewAddressMismatchSignal(),
		NewSpendLimitSignal(),
		NewAverageSpendSignal(),
		NewImpossibleTravelSignal(DefaultTravelWindow),
	}
	input := SignalInput{
		Request:  request(5000, "Tokyo", "203.0.113.7"),
		User:     user(1000),
		Behavior: behavior(5, 100, "Paris", 10*time.Minute),
		Now:      testNow,
	}

	previous := 0.0
	for i := 1; i <= len(signals); i++ {
		score := NewBLAScorer(signals[:i]...).Score(input).Score
		assert.GreaterOrEqual(t, score, previous, "adding signal %d lowered the score", i)
		previous = score
	}
}

func TestBLAScorer_CapsAtOne(t *testing.T) {
	scorer := NewBLAScorer(fixedSignal{0.6}, fixedSignal{0.5}, fixedSignal{0.4})
	input := SignalInput{
		Request:  request(100, "Paris", "10.0.0.1"),
		User:     user(1000),
		Behavior: behavior(5, 100, "", 0),
		Now:      testNow,
	}

	result := scorer.Score(input)
	assert.Equal(t, 1.0, result.Score)
	assert.Len(t, result.Flags, 3)
}
