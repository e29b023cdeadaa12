package otpstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/paysentry/fraud-engine/internal/domain"
)

// MemoryStore implements ports.ChallengeStore in process memory
type MemoryStore struct {
	mu         sync.Mutex
	challenges map[uuid.UUID]domain.OtpChallenge
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{challenges: make(map[uuid.UUID]domain.OtpChallenge)}
}

// SaveChallenge stores a copy of the challenge with the verified flag cleared
func (s *MemoryStore) SaveChallenge(ctx context.Context, challenge *domain.OtpChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *challenge
	stored.Verified = false
	s.challenges[challenge.TransactionID] = stored
	return nil
}

// GetChallenge returns a copy of the stored challenge
func (s *MemoryStore) GetChallenge(ctx context.Context, transactionID uuid.UUID) (*domain.OtpChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[transactionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrChallengeNotFound, transactionID)
	}
	return &c, nil
}

// MarkVerified flips the flag when code is still the live code
func (s *MemoryStore) MarkVerified(ctx context.Context, transactionID uuid.UUID, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[transactionID]
	if !ok || c.Verified || c.Code != code {
		return false, nil
	}
	c.Verified = true
	s.challenges[transactionID] = c
	return true, nil
}
