package notifier

import (
	"context"
	"log/slog"
	"strings"

	"github.com/paysentry/fraud-engine/internal/domain"
)

// LogNotifier implements ports.OTPNotifier by logging the delivery instead
// of sending an email or SMS. The code itself is masked.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendOTP logs that a code was issued for the transaction
func (n *LogNotifier) SendOTP(ctx context.Context, challenge *domain.OtpChallenge) error {
	n.logger.InfoContext(ctx, "OTP generated",
		slog.String("transaction_id", challenge.TransactionID.String()),
		slog.String("user_id", challenge.UserID),
		slog.String("otp", MaskCode(challenge.Code)),
		slog.Time("expires_at", challenge.ExpiresAt))
	return nil
}

// MaskCode hides all but the last two digits of a code
func MaskCode(code string) string {
	if len(code) <= 2 {
		return strings.Repeat("*", len(code))
	}
	return strings.Repeat("*", len(code)-2) + code[len(code)-2:]
}
