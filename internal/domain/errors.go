package domain

import "errors"

var (
	// Input errors are the only failures reported to callers of the engine
	ErrInvalidInput = errors.New("invalid input")
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already registered")

	// ErrInferenceUnavailable covers worker timeouts, crashes and malformed
	// replies. The engine absorbs it and falls back to the default prior.
	ErrInferenceUnavailable = errors.New("inference unavailable")

	ErrTransactionNotFound = errors.New("transaction not found")
	ErrNotChallenged       = errors.New("transaction is not awaiting OTP verification")
	ErrChallengeNotFound   = errors.New("otp challenge not found")
	ErrOTPExpired          = errors.New("OTP expired")
	ErrOTPInvalid          = errors.New("invalid OTP")
)
