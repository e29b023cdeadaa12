package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the disposition the engine assigns to a payment attempt
type Status string

const (
	StatusApproved Status = "Approved"
	StatusOTPSent  Status = "OTP_Sent"
	StatusBlocked  Status = "Blocked"
)

// Message returns the human-readable text shown to the paying user
func (s Status) Message() string {
	switch s {
	case StatusApproved:
		return "Transaction approved"
	case StatusOTPSent:
		return "OTP sent to your registered email/mobile"
	case StatusBlocked:
		return "Transaction blocked due to high fraud risk"
	default:
		return ""
	}
}

// Method tags which scoring path produced an assessment
type Method string

const (
	MethodMLOnly Method = "ML_Only"
	MethodMLBLA  Method = "ML_BLA"
)

// Tier classifies a user by how much history the engine has for them
type Tier string

const (
	TierNew         Tier = "new"
	TierEstablished Tier = "established"
)

// EstablishedTierMinTransactions is the completed-transaction count at which
// a user stops being scored on the ML-only path.
const EstablishedTierMinTransactions = 3

// TierFor returns the tier for a behavior profile. Users without any
// recorded history are new-tier.
func TierFor(behavior *BehaviorProfile) Tier {
	if behavior == nil || behavior.TotalTransactions < EstablishedTierMinTransactions {
		return TierNew
	}
	return TierEstablished
}

// TransactionRequest is a single payment attempt as seen by the engine.
// Build it with NewTransactionRequest; it is not modified afterwards.
// Timestamp is when the attempt was received. Risk timing never reads it:
// the engine measures elapsed time on its own clock.
type TransactionRequest struct {
	UserID    string          `json:"user_id"`
	CardRef   string          `json:"-"` // raw or masked card number, never serialized
	Amount    decimal.Decimal `json:"amount"`
	Location  string          `json:"location"` // city-level claimed location
	IPAddress string          `json:"ip_address"`
	DeviceID  string          `json:"device_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewTransactionRequest validates the caller-supplied facts and returns an
// immutable request. Invalid identifiers or amounts return ErrInvalidInput.
func NewTransactionRequest(userID, cardRef string, amount decimal.Decimal, location, ipAddress, deviceID string, at time.Time) (TransactionRequest, error) {
	userID = strings.TrimSpace(userID)
	cardRef = strings.TrimSpace(cardRef)

	if userID == "" {
		return TransactionRequest{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if cardRef == "" {
		return TransactionRequest{}, fmt.Errorf("%w: card reference is required", ErrInvalidInput)
	}
	if !amount.IsPositive() {
		return TransactionRequest{}, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidInput, amount.String())
	}
	if at.IsZero() {
		at = time.Now()
	}

	return TransactionRequest{
		UserID:    userID,
		CardRef:   cardRef,
		Amount:    amount,
		Location:  strings.TrimSpace(location),
		IPAddress: strings.TrimSpace(ipAddress),
		DeviceID:  strings.TrimSpace(deviceID),
		Timestamp: at,
	}, nil
}

// CardTail returns the last four characters of the card reference
func (r TransactionRequest) CardTail() string {
	if len(r.CardRef) <= 4 {
		return r.CardRef
	}
	return r.CardRef[len(r.CardRef)-4:]
}

// UserProfile is owned by the registration subsystem; the engine only reads it
type UserProfile struct {
	UserID       string          `json:"user_id"`
	Email        string          `json:"email,omitempty"`
	Mobile       string          `json:"mobile,omitempty"`
	City         string          `json:"city"`
	CurrentLimit decimal.Decimal `json:"current_card_limit"`
	RegisteredIP string          `json:"registered_ip"`
	CreatedAt    time.Time       `json:"created_at"`
}

// BehaviorProfile is the running spend history for a user. A nil profile
// means the user has no recorded history.
type BehaviorProfile struct {
	UserID            string          `json:"user_id"`
	UsualCity         string          `json:"usual_city"`
	UsualState        string          `json:"usual_state,omitempty"`
	AvgSpend          decimal.Decimal `json:"avg_spend"`
	TotalTransactions int             `json:"total_transactions"`
	LastTransactionAt *time.Time      `json:"last_transaction_timestamp,omitempty"`
	LastLocation      string          `json:"last_transaction_location,omitempty"`
	LastIP            string          `json:"last_transaction_ip,omitempty"`
}

// ApplyApproved returns the profile as it must look after an approved
// transaction: the running average absorbs the amount and the last-seen
// fields move to this transaction.
func (b BehaviorProfile) ApplyApproved(amount decimal.Decimal, location, ip string, at time.Time) BehaviorProfile {
	n := decimal.NewFromInt(int64(b.TotalTransactions))
	b.AvgSpend = b.AvgSpend.Mul(n).Add(amount).Div(n.Add(decimal.NewFromInt(1)))
	b.TotalTransactions++

	ts := at
	b.LastTransactionAt = &ts
	b.LastLocation = location
	b.LastIP = ip
	return b
}

// Flag is a single business-logic signal raised during assessment
type Flag struct {
	Type     string  `json:"type"`   // e.g., "IMPOSSIBLE_TRAVEL"
	Weight   float64 `json:"weight"` // contribution to the BLA score
	Evidence string  `json:"evidence"`
}

// FraudAssessment is the engine's output for one transaction
type FraudAssessment struct {
	FraudScore     float64   `json:"fraud_score"` // 0.0 to 1.0
	MLScore        float64   `json:"ml_score"`
	BLAScore       float64   `json:"bla_score"`
	Method         Method    `json:"method"`
	Tier           Tier      `json:"tier"`
	Status         Status    `json:"status"`
	Message        string    `json:"message"`
	TravelOverride bool      `json:"travel_override"`
	MLAvailable    bool      `json:"ml_available"`
	Flags          []Flag    `json:"flags,omitempty"`
	AssessedAt     time.Time `json:"assessed_at"`
}

// TransactionRecord is the ledger row written by the storage collaborator
// on behalf of an assessment.
type TransactionRecord struct {
	ID          uuid.UUID       `json:"transaction_id"`
	UserID      string          `json:"user_id"`
	CardLast4   string          `json:"card_no_last4"`
	Amount      decimal.Decimal `json:"amount"`
	Location    string          `json:"transaction_location"`
	IPAddress   string          `json:"transaction_ip"`
	DeviceID    string          `json:"device_id,omitempty"`
	Status      Status          `json:"status"`
	FraudScore  float64         `json:"fraud_score"`
	MLScore     float64         `json:"ml_score"`
	BLAScore    float64         `json:"bla_score"`
	Method      Method          `json:"prediction_method"`
	OTPVerified bool            `json:"otp_verified"`
	CreatedAt   time.Time       `json:"timestamp"`
}

// NewTransactionRecord builds the ledger row for an assessed request. The
// row is stamped with the assessment time, which later becomes the
// behavior profile's last transaction time.
func NewTransactionRecord(req TransactionRequest, assessment *FraudAssessment) *TransactionRecord {
	return &TransactionRecord{
		ID:         uuid.New(),
		UserID:     req.UserID,
		CardLast4:  req.CardTail(),
		Amount:     req.Amount,
		Location:   req.Location,
		IPAddress:  req.IPAddress,
		DeviceID:   req.DeviceID,
		Status:     assessment.Status,
		FraudScore: assessment.FraudScore,
		MLScore:    assessment.MLScore,
		BLAScore:   assessment.BLAScore,
		Method:     assessment.Method,
		CreatedAt:  assessment.AssessedAt,
	}
}

// DefaultCardLimit is the spending limit granted at registration
var DefaultCardLimit = decimal.NewFromInt(100000)

// SeedBehavior returns the empty profile created at registration: the
// registered city becomes the usual city and there is no spend history.
func SeedBehavior(user *UserProfile) BehaviorProfile {
	return BehaviorProfile{
		UserID:     user.UserID,
		UsualCity:  user.City,
		UsualState: user.City,
		AvgSpend:   decimal.Zero,
	}
}
