package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultOTPTTL is how long an issued code stays valid
const DefaultOTPTTL = 5 * time.Minute

// OTPCodeLength is the number of decimal digits in a one-time code
const OTPCodeLength = 6

// OtpChallenge is the step-up verification issued for an OTP_Sent transaction
type OtpChallenge struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Code          string    `json:"otp_code"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	Verified      bool      `json:"verified"`
}

// Expired reports whether the challenge can no longer be verified at now
func (c OtpChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// VerifyOutcome is the result of checking an entered code
type VerifyOutcome string

const (
	OutcomeApproved VerifyOutcome = "approved"
	OutcomeExpired  VerifyOutcome = "expired"
	OutcomeInvalid  VerifyOutcome = "invalid"
)

// Message returns the user-facing text for an outcome
func (o VerifyOutcome) Message() string {
	switch o {
	case OutcomeApproved:
		return "OTP verified. Transaction approved."
	case OutcomeExpired:
		return "OTP expired"
	default:
		return "Invalid OTP"
	}
}
