package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/paysentry/fraud-engine/internal/domain"
)

// ChallengeStore persists OTP challenges keyed by transaction
type ChallengeStore interface {
	// SaveChallenge stores a challenge, superseding any previous challenge
	// for the same transaction.
	SaveChallenge(ctx context.Context, challenge *domain.OtpChallenge) error

	// GetChallenge returns domain.ErrChallengeNotFound when nothing is stored
	GetChallenge(ctx context.Context, transactionID uuid.UUID) (*domain.OtpChallenge, error)

	// MarkVerified atomically flips the verified flag of the challenge
	// currently stored with code. Exactly one caller observes true for a
	// given challenge; a code that has been superseded never wins.
	MarkVerified(ctx context.Context, transactionID uuid.UUID, code string) (bool, error)
}
