package scoring

import (
	"time"

	"github.com/paysentry/fraud-engine/internal/domain"
)

// Bucket counts for hashed categorical features. They only give the model a
// bounded numeric input; they carry no security meaning.
const (
	userBuckets     = 10000
	cardBuckets     = 10000
	locationBuckets = 1000
	ipBuckets       = 10000
)

// Feature vector widths per tier
const (
	NewTierWidth         = 4
	EstablishedTierWidth = 7
)

// BuildFeatures assembles the single-row model input for a request.
//
// New tier:         [user, card_tail, city, ip]
// Established tier: [user, card_tail, amount, hour, ip, city, avg_spend]
//
// Absent optional values are encoded as 0. The hour is taken from now.
func BuildFeatures(tier domain.Tier, req domain.TransactionRequest, behavior *domain.BehaviorProfile, now time.Time) []float64 {
	user := hashBucket(req.UserID, userBuckets)
	card := hashBucket(req.CardTail(), cardBuckets)
	city := hashBucket(req.Location, locationBuckets)
	ip := hashBucket(req.IPAddress, ipBuckets)

	if tier == domain.TierNew {
		return []float64{user, card, city, ip}
	}

	avgSpend := 0.0
	if behavior != nil {
		avgSpend = behavior.AvgSpend.InexactFloat64()
	}

	return []float64{
		user,
		card,
		req.Amount.InexactFloat64(),
		float64(now.Hour()),
		ip,
		city,
		avgSpend,
	}
}
