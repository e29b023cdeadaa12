package scoring

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// sameLocation compares two city names case-insensitively
func sameLocation(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// hashBucket reduces a string to [0, buckets) with a stable hash.
// Empty values map to 0.
func hashBucket(value string, buckets uint64) float64 {
	if value == "" || buckets == 0 {
		return 0
	}
	return float64(xxhash.Sum64String(value) % buckets)
}

// clamp01 bounds a score to [0, 1]
func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
