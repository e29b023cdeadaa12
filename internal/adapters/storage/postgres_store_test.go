package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paysentry/fraud-engine/internal/domain"
	"github.com/paysentry/fraud-engine/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()

	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		t.Skip("POSTGRES_URL not set, skipping integration test")
	}

	store, err := NewPostgresStore(dbURL)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.InitSchema(ctx))

	cleanup := func() {
		store.db.ExecContext(ctx, "TRUNCATE otp_verification, transactions, user_behavior, users CASCADE")
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		store.Close()
	})

	return store
}

func TestPostgresStore(t *testing.T) {
	runStorageContract(t, func(t *testing.T) ports.Storage {
		return setupTestDB(t)
	})
}

func TestPostgresStore_Challenges(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.RegisterUser(ctx, testUser("alice")))
	record := testRecord("alice", 300, domain.StatusOTPSent)
	require.NoError(t, store.RecordTransaction(ctx, record))

	_, err := store.GetChallenge(ctx, record.ID)
	assert.ErrorIs(t, err, domain.ErrChallengeNotFound)

	first := &domain.OtpChallenge{
		TransactionID: record.ID,
		UserID:        "alice",
		Code:          "111111",
		CreatedAt:     testTime,
		ExpiresAt:     testTime.Add(domain.DefaultOTPTTL),
	}
	require.NoError(t, store.SaveChallenge(ctx, first))

	ok, err := store.MarkVerified(ctx, record.ID, "111111")
	require.NoError(t, err)
	assert.True(t, ok)

	// re-issuing supersedes the old code and resets the flag
	second := *first
	second.Code = "222222"
	second.CreatedAt = testTime.Add(time.Minute)
	second.ExpiresAt = second.CreatedAt.Add(domain.DefaultOTPTTL)
	require.NoError(t, store.SaveChallenge(ctx, &second))

	got, err := store.GetChallenge(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "222222", got.Code)
	assert.False(t, got.Verified)

	// the superseded code no longer matches
	ok, err = store.MarkVerified(ctx, record.ID, "111111")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.MarkVerified(ctx, record.ID, "222222")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.MarkVerified(ctx, record.ID, "222222")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.MarkVerified(ctx, uuid.New(), "222222")
	require.NoError(t, err)
	assert.False(t, ok)
}
