package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/paysentry/fraud-engine/internal/domain"
)

// MemoryStore implements ports.Storage in process memory. One mutex covers
// every table, which gives each call the same all-or-nothing behavior as a
// database transaction.
type MemoryStore struct {
	mu           sync.Mutex
	users        map[string]domain.UserProfile
	behaviors    map[string]domain.BehaviorProfile
	transactions map[uuid.UUID]domain.TransactionRecord
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]domain.UserProfile),
		behaviors:    make(map[string]domain.BehaviorProfile),
		transactions: make(map[uuid.UUID]domain.TransactionRecord),
	}
}

// RegisterUser stores a user and seeds an empty behavior profile
func (s *MemoryStore) RegisterUser(ctx context.Context, user *domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.UserID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrUserExists, user.UserID)
	}
	s.users[user.UserID] = *user
	s.behaviors[user.UserID] = domain.SeedBehavior(user)
	return nil
}

// GetUser returns a copy of the user profile
func (s *MemoryStore) GetUser(ctx context.Context, userID string) (*domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}
	return &user, nil
}

// GetBehavior returns a copy of the behavior profile, or nil when there is none
func (s *MemoryStore) GetBehavior(ctx context.Context, userID string) (*domain.BehaviorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.behaviors[userID]
	if !ok {
		return nil, nil
	}
	if b.LastTransactionAt != nil {
		t := *b.LastTransactionAt
		b.LastTransactionAt = &t
	}
	return &b, nil
}

// RecordTransaction stores the ledger row and applies approval side effects
func (s *MemoryStore) RecordTransaction(ctx context.Context, record *domain.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[record.UserID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrUserNotFound, record.UserID)
	}
	if _, ok := s.transactions[record.ID]; ok {
		return fmt.Errorf("transaction %s already recorded", record.ID)
	}

	s.transactions[record.ID] = *record
	if record.Status == domain.StatusApproved {
		s.applyApproval(record)
	}
	return nil
}

// ApproveChallenged moves an OTP_Sent transaction to Approved exactly once
func (s *MemoryStore) ApproveChallenged(ctx context.Context, transactionID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.transactions[transactionID]
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, transactionID)
	}

	switch record.Status {
	case domain.StatusApproved:
		return false, nil
	case domain.StatusOTPSent:
	default:
		return false, fmt.Errorf("%w: %s is %s", domain.ErrNotChallenged, transactionID, record.Status)
	}

	record.Status = domain.StatusApproved
	record.OTPVerified = true
	s.transactions[transactionID] = record
	s.applyApproval(&record)
	return true, nil
}

// GetTransaction returns a copy of a ledger row
func (s *MemoryStore) GetTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.transactions[transactionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, transactionID)
	}
	return &record, nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

// applyApproval must be called with mu held
func (s *MemoryStore) applyApproval(record *domain.TransactionRecord) {
	user := s.users[record.UserID]
	user.CurrentLimit = user.CurrentLimit.Sub(record.Amount)
	s.users[record.UserID] = user

	b, ok := s.behaviors[record.UserID]
	if !ok {
		b = domain.SeedBehavior(&user)
	}
	s.behaviors[record.UserID] = b.ApplyApproved(record.Amount, record.Location, record.IPAddress, record.CreatedAt)
}
