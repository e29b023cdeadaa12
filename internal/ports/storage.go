package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/paysentry/fraud-engine/internal/domain"
)

// Storage defines the contract for the persistence collaborator
//
// The engine never writes profiles itself. RecordTransaction and
// ApproveChallenged must each run inside a single commit boundary covering
// the ledger row and the profile mutations, and must serialize concurrent
// updates to the same user's behavior profile.
type Storage interface {
	// User operations
	RegisterUser(ctx context.Context, user *domain.UserProfile) error
	GetUser(ctx context.Context, userID string) (*domain.UserProfile, error)

	// GetBehavior returns nil, nil when the user has no recorded history
	GetBehavior(ctx context.Context, userID string) (*domain.BehaviorProfile, error)

	// RecordTransaction inserts the ledger row. For approved records it also
	// decrements the card limit and applies the behavior update atomically.
	RecordTransaction(ctx context.Context, record *domain.TransactionRecord) error

	// ApproveChallenged moves an OTP_Sent transaction to Approved and applies
	// the approval side effects. It reports false, nil when the transaction
	// was already approved, so the side effects are never applied twice.
	ApproveChallenged(ctx context.Context, transactionID uuid.UUID) (bool, error)

	GetTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.TransactionRecord, error)

	// Lifecycle
	Close() error
}
