package application

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paysentry/fraud-engine/internal/domain"
	"github.com/paysentry/fraud-engine/internal/logging"
	"github.com/paysentry/fraud-engine/internal/metrics"
	"github.com/paysentry/fraud-engine/internal/ports"
)

// OTPManager issues and verifies the one-time codes that step up
// OTP_Sent transactions
type OTPManager struct {
	store    ports.ChallengeStore
	notifier ports.OTPNotifier
	ttl      time.Duration
	metrics  *metrics.Collector
	now      func() time.Time
	generate func() (string, error)
}

// NewOTPManager creates a manager. A non-positive ttl uses domain.DefaultOTPTTL.
func NewOTPManager(store ports.ChallengeStore, notifier ports.OTPNotifier, ttl time.Duration, collector *metrics.Collector) *OTPManager {
	if ttl <= 0 {
		ttl = domain.DefaultOTPTTL
	}
	return &OTPManager{
		store:    store,
		notifier: notifier,
		ttl:      ttl,
		metrics:  collector,
		now:      time.Now,
		generate: GenerateCode,
	}
}

// WithClock replaces the time source
func (m *OTPManager) WithClock(now func() time.Time) *OTPManager {
	m.now = now
	return m
}

// WithCodeGenerator replaces the code source
func (m *OTPManager) WithCodeGenerator(generate func() (string, error)) *OTPManager {
	m.generate = generate
	return m
}

// GenerateCode returns a uniformly random six-digit code from crypto/rand
func GenerateCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < domain.OTPCodeLength; i++ {
		limit.Mul(limit, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}
	return fmt.Sprintf("%0*d", domain.OTPCodeLength, n.Int64()), nil
}

// Issue creates a challenge for the transaction, replacing any earlier one,
// and hands it to the notifier. Delivery failures are logged, not returned:
// the challenge is stored and can be re-sent.
func (m *OTPManager) Issue(ctx context.Context, transactionID uuid.UUID, userID string) (*domain.OtpChallenge, error) {
	code, err := m.generate()
	if err != nil {
		return nil, err
	}

	now := m.now()
	challenge := &domain.OtpChallenge{
		TransactionID: transactionID,
		UserID:        userID,
		Code:          code,
		CreatedAt:     now,
		ExpiresAt:     now.Add(m.ttl),
	}

	if err := m.store.SaveChallenge(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to store OTP challenge: %w", err)
	}
	m.metrics.IncOTPIssued()

	if m.notifier != nil {
		if err := m.notifier.SendOTP(ctx, challenge); err != nil {
			logging.L(ctx).WarnContext(ctx, "OTP delivery failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()))
		}
	}

	return challenge, nil
}

// Verify checks an entered code. Expiry is checked before the code, and a
// challenge can be verified only once: every later attempt is invalid.
func (m *OTPManager) Verify(ctx context.Context, transactionID uuid.UUID, code string) (domain.VerifyOutcome, error) {
	challenge, err := m.store.GetChallenge(ctx, transactionID)
	if err != nil {
		return "", err
	}

	outcome, err := m.check(ctx, challenge, strings.TrimSpace(code))
	if err != nil {
		return "", err
	}

	m.metrics.ObserveOTPVerification(outcome)
	logging.L(ctx).InfoContext(ctx, "OTP verification",
		slog.String("user_id", challenge.UserID),
		slog.String("outcome", string(outcome)))
	return outcome, nil
}

func (m *OTPManager) check(ctx context.Context, challenge *domain.OtpChallenge, code string) (domain.VerifyOutcome, error) {
	if challenge.Expired(m.now()) {
		return domain.OutcomeExpired, nil
	}
	if challenge.Verified {
		return domain.OutcomeInvalid, nil
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(challenge.Code)) != 1 {
		return domain.OutcomeInvalid, nil
	}

	won, err := m.store.MarkVerified(ctx, challenge.TransactionID, code)
	if err != nil {
		return "", err
	}
	if !won {
		return domain.OutcomeInvalid, nil
	}
	return domain.OutcomeApproved, nil
}
