package ports

import (
	"context"

	"github.com/paysentry/fraud-engine/internal/domain"
)

// OTPNotifier delivers a freshly issued code to the paying user
// (email, SMS). Delivery mechanics are owned by the implementation.
type OTPNotifier interface {
	SendOTP(ctx context.Context, challenge *domain.OtpChallenge) error
}
