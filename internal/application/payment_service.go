package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/paysentry/fraud-engine/internal/domain"
	"github.com/paysentry/fraud-engine/internal/domain/scoring"
	"github.com/paysentry/fraud-engine/internal/logging"
	"github.com/paysentry/fraud-engine/internal/metrics"
	"github.com/paysentry/fraud-engine/internal/ports"
	"github.com/shopspring/decimal"
)

// PaymentInput is a payment attempt as submitted by the caller
type PaymentInput struct {
	UserID     string
	CardNumber string
	Amount     decimal.Decimal
	Location   string
	IPAddress  string
	DeviceID   string
}

// PaymentResult is what the caller learns about a payment attempt
type PaymentResult struct {
	TransactionID uuid.UUID               `json:"transaction_id"`
	Assessment    *domain.FraudAssessment `json:"assessment"`
	OTPRequired   bool                    `json:"otp_required"`
}

// VerifyResult is the outcome of an OTP verification
type VerifyResult struct {
	TransactionID uuid.UUID            `json:"transaction_id"`
	Outcome       domain.VerifyOutcome `json:"outcome"`
	Message       string               `json:"message"`
}

// PaymentService orchestrates assessment, persistence and OTP step-up
type PaymentService struct {
	storage ports.Storage
	engine  *scoring.Engine
	otp     *OTPManager
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewPaymentService creates a new payment service with dependency injection
func NewPaymentService(
	storage ports.Storage,
	engine *scoring.Engine,
	otp *OTPManager,
	collector *metrics.Collector,
	logger *slog.Logger,
) *PaymentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentService{
		storage: storage,
		engine:  engine,
		otp:     otp,
		metrics: collector,
		logger:  logger,
	}
}

// ProcessPayment assesses a payment, records it, and issues an OTP when the
// decision is OTP_Sent. The request is stamped with the engine's clock.
// Error handling strategy:
//   - Input problems return domain.ErrInvalidInput or domain.ErrUserNotFound
//   - Inference problems never surface here; the engine degrades to its prior
//   - Storage failures abort the payment and nothing is recorded
//   - A failed OTP issue is logged; the payment stays OTP_Sent and the code
//     can be re-sent with ResendOTP
func (s *PaymentService) ProcessPayment(ctx context.Context, in PaymentInput) (*PaymentResult, error) {
	req, err := domain.NewTransactionRequest(in.UserID, in.CardNumber, in.Amount, in.Location, in.IPAddress, in.DeviceID, s.engine.Now())
	if err != nil {
		return nil, err
	}

	user, err := s.storage.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	behavior, err := s.storage.GetBehavior(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load behavior: %w", err)
	}

	assessment, err := s.engine.Assess(ctx, req, user, behavior)
	if err != nil {
		return nil, err
	}

	record := domain.NewTransactionRecord(req, assessment)
	ctx = logging.WithTransactionID(logging.WithLogger(ctx, s.logger), record.ID.String())

	if err := s.storage.RecordTransaction(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}
	s.metrics.ObserveAssessment(assessment)

	result := &PaymentResult{
		TransactionID: record.ID,
		Assessment:    assessment,
		OTPRequired:   assessment.Status == domain.StatusOTPSent,
	}

	if result.OTPRequired {
		if _, err := s.otp.Issue(ctx, record.ID, user.UserID); err != nil {
			logging.L(ctx).ErrorContext(ctx, "Failed to issue OTP, awaiting resend",
				slog.String("user_id", user.UserID),
				slog.String("error", err.Error()))
		}
	}

	if assessment.Status == domain.StatusBlocked {
		log := logging.L(ctx)
		log.WarnContext(ctx, "HIGH RISK TRANSACTION BLOCKED",
			slog.String("user_id", req.UserID),
			slog.String("amount", req.Amount.String()),
			slog.Float64("fraud_score", assessment.FraudScore),
			slog.Bool("travel_override", assessment.TravelOverride))
		for _, flag := range assessment.Flags {
			log.WarnContext(ctx, "Signal raised",
				slog.String("type", flag.Type),
				slog.Float64("weight", flag.Weight),
				slog.String("evidence", flag.Evidence))
		}
	}

	return result, nil
}

// VerifyOTP checks a code for a challenged transaction and approves the
// transaction on success. Repeating a successful verification is reported
// as invalid and changes nothing.
func (s *PaymentService) VerifyOTP(ctx context.Context, transactionID uuid.UUID, code string) (*VerifyResult, error) {
	ctx = logging.WithTransactionID(logging.WithLogger(ctx, s.logger), transactionID.String())

	outcome, err := s.otp.Verify(ctx, transactionID, code)
	if err != nil {
		return nil, err
	}

	if outcome == domain.OutcomeApproved {
		approved, err := s.storage.ApproveChallenged(ctx, transactionID)
		if err != nil {
			logging.L(ctx).ErrorContext(ctx, "OTP accepted but approval failed", slog.String("error", err.Error()))
			return nil, fmt.Errorf("failed to approve transaction: %w", err)
		}
		if !approved {
			logging.L(ctx).WarnContext(ctx, "Transaction was already approved")
		}
	}

	return &VerifyResult{
		TransactionID: transactionID,
		Outcome:       outcome,
		Message:       outcome.Message(),
	}, nil
}

// ResendOTP issues a fresh code for a transaction still awaiting
// verification. The previous code stops working.
func (s *PaymentService) ResendOTP(ctx context.Context, transactionID uuid.UUID) error {
	ctx = logging.WithTransactionID(logging.WithLogger(ctx, s.logger), transactionID.String())

	record, err := s.storage.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if record.Status != domain.StatusOTPSent {
		return fmt.Errorf("%w: %s is %s", domain.ErrNotChallenged, transactionID, record.Status)
	}

	_, err = s.otp.Issue(ctx, transactionID, record.UserID)
	return err
}

// IsClientError reports whether err was caused by the caller's input
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrUserNotFound) ||
		errors.Is(err, domain.ErrTransactionNotFound) ||
		errors.Is(err, domain.ErrChallengeNotFound) ||
		errors.Is(err, domain.ErrNotChallenged)
}
