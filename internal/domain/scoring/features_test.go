package scoring

import (
	"testing"

	"github.com/paysentry/fraud-engine/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestBuildFeatures_NewTier(t *testing.T) {
	req := request(250, "Paris", "10.0.0.1")

	features := BuildFeatures(domain.TierNew, req, nil, testNow)

	assert.Len(t, features, NewTierWidth)
	assert.Equal(t, hashBucket("alice", userBuckets), features[0])
	assert.Equal(t, hashBucket("3456", cardBuckets), features[1])
	assert.Equal(t, hashBucket("Paris", locationBuckets), features[2])
	assert.Equal(t, hashBucket("10.0.0.1", ipBuckets), features[3])
}

func TestBuildFeatures_EstablishedTier(t *testing.T) {
	req := request(250, "Paris", "10.0.0.1")
	b := behavior(7, 120, "", 0)

	features := BuildFeatures(domain.TierEstablished, req, b, testNow)

	assert.Len(t, features, EstablishedTierWidth)
	assert.Equal(t, 250.0, features[2])
	assert.Equal(t, float64(testNow.Hour()), features[3])
	assert.Equal(t, hashBucket("10.0.0.1", ipBuckets), features[4])
	assert.Equal(t, hashBucket("Paris", locationBuckets), features[5])
	assert.Equal(t, 120.0, features[6])
}

func TestBuildFeatures_MissingOptionalValues(t *testing.T) {
	req := request(250, "", "")

	newTier := BuildFeatures(domain.TierNew, req, nil, testNow)
	assert.Equal(t, 0.0, newTier[2])
	assert.Equal(t, 0.0, newTier[3])

	established := BuildFeatures(domain.TierEstablished, req, nil, testNow)
	assert.Len(t, established, EstablishedTierWidth)
	assert.Equal(t, 0.0, established[6])
}

func TestBuildFeatures_Deterministic(t *testing.T) {
	req := request(250, "Paris", "10.0.0.1")
	assert.Equal(t, BuildFeatures(domain.TierNew, req, nil, testNow), BuildFeatures(domain.TierNew, req, nil, testNow))
}
