package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paysentry/fraud-engine/internal/domain"
	"github.com/paysentry/fraud-engine/internal/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testUser(id string) *domain.UserProfile {
	return &domain.UserProfile{
		UserID:       id,
		Email:        id + "@example.com",
		City:         "Paris",
		CurrentLimit: decimal.NewFromInt(1000),
		RegisteredIP: "10.0.0.1",
		CreatedAt:    testTime,
	}
}

func testRecord(userID string, amount int64, status domain.Status) *domain.TransactionRecord {
	return &domain.TransactionRecord{
		ID:         uuid.New(),
		UserID:     userID,
		CardLast4:  "3456",
		Amount:     decimal.NewFromInt(amount),
		Location:   "Lyon",
		IPAddress:  "10.0.0.2",
		Status:     status,
		FraudScore: 0.1,
		MLScore:    0.1,
		Method:     domain.MethodMLOnly,
		CreatedAt:  testTime,
	}
}

// runStorageContract exercises the behavior every ports.Storage must share
func runStorageContract(t *testing.T, newStore func(t *testing.T) ports.Storage) {
	ctx := context.Background()

	t.Run("RegisterUser seeds behavior", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.RegisterUser(ctx, testUser("alice")))

		user, err := store.GetUser(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(1000).Equal(user.CurrentLimit))

		b, err := store.GetBehavior(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, b)
		assert.Equal(t, "Paris", b.UsualCity)
		assert.Equal(t, 0, b.TotalTransactions)
		assert.Nil(t, b.LastTransactionAt)

		err = store.RegisterUser(ctx, testUser("alice"))
		assert.ErrorIs(t, err, domain.ErrUserExists)
	})

	t.Run("Unknown user and behavior", func(t *testing.T) {
		store := newStore(t)

		_, err := store.GetUser(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)

		b, err := store.GetBehavior(ctx, "ghost")
		assert.NoError(t, err)
		assert.Nil(t, b)
	})

	t.Run("Approved transaction applies side effects", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.RegisterUser(ctx, testUser("bob")))

		record := testRecord("bob", 200, domain.StatusApproved)
		require.NoError(t, store.RecordTransaction(ctx, record))

		user, err := store.GetUser(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(800).Equal(user.CurrentLimit), "limit %s", user.CurrentLimit)

		b, err := store.GetBehavior(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, 1, b.TotalTransactions)
		assert.True(t, decimal.NewFromInt(200).Equal(b.AvgSpend), "avg %s", b.AvgSpend)
		assert.Equal(t, "Lyon", b.LastLocation)
		require.NotNil(t, b.LastTransactionAt)
		assert.True(t, testTime.Equal(*b.LastTransactionAt))

		stored, err := store.GetTransaction(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusApproved, stored.Status)
		assert.Equal(t, "3456", stored.CardLast4)
	})

	t.Run("Challenged and blocked transactions leave profiles alone", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.RegisterUser(ctx, testUser("carol")))

		require.NoError(t, store.RecordTransaction(ctx, testRecord("carol", 300, domain.StatusOTPSent)))
		require.NoError(t, store.RecordTransaction(ctx, testRecord("carol", 300, domain.StatusBlocked)))

		user, err := store.GetUser(ctx, "carol")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(1000).Equal(user.CurrentLimit))

		b, err := store.GetBehavior(ctx, "carol")
		require.NoError(t, err)
		assert.Equal(t, 0, b.TotalTransactions)
	})

	t.Run("ApproveChallenged applies side effects once", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.RegisterUser(ctx, testUser("dave")))
		record := testRecord("dave", 250, domain.StatusOTPSent)
		require.NoError(t, store.RecordTransaction(ctx, record))

		approved, err := store.ApproveChallenged(ctx, record.ID)
		require.NoError(t, err)
		assert.True(t, approved)

		approved, err = store.ApproveChallenged(ctx, record.ID)
		require.NoError(t, err)
		assert.False(t, approved)

		user, err := store.GetUser(ctx, "dave")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(750).Equal(user.CurrentLimit), "limit %s", user.CurrentLimit)

		b, err := store.GetBehavior(ctx, "dave")
		require.NoError(t, err)
		assert.Equal(t, 1, b.TotalTransactions)

		stored, err := store.GetTransaction(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusApproved, stored.Status)
		assert.True(t, stored.OTPVerified)
	})

	t.Run("ApproveChallenged rejects other transactions", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.RegisterUser(ctx, testUser("erin")))
		blocked := testRecord("erin", 250, domain.StatusBlocked)
		require.NoError(t, store.RecordTransaction(ctx, blocked))

		_, err := store.ApproveChallenged(ctx, blocked.ID)
		assert.ErrorIs(t, err, domain.ErrNotChallenged)

		_, err = store.ApproveChallenged(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

		_, err = store.GetTransaction(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	})

	t.Run("Concurrent approvals keep the average exact", func(t *testing.T) {
		store := newStore(t)
		user := testUser("frank")
		user.CurrentLimit = decimal.NewFromInt(100000)
		require.NoError(t, store.RegisterUser(ctx, user))

		const n = 20
		var wg sync.WaitGroup
		for i := 1; i <= n; i++ {
			wg.Add(1)
			go func(amount int64) {
				defer wg.Done()
				assert.NoError(t, store.RecordTransaction(ctx, testRecord("frank", amount, domain.StatusApproved)))
			}(int64(i * 10))
		}
		wg.Wait()

		b, err := store.GetBehavior(ctx, "frank")
		require.NoError(t, err)
		assert.Equal(t, n, b.TotalTransactions)
		// mean of 10, 20, ..., 200
		assert.True(t, decimal.NewFromInt(105).Equal(b.AvgSpend.Round(2)), "avg %s", b.AvgSpend)

		u, err := store.GetUser(ctx, "frank")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(100000-2100).Equal(u.CurrentLimit), "limit %s", u.CurrentLimit)
	})
}

func TestMemoryStore(t *testing.T) {
	runStorageContract(t, func(t *testing.T) ports.Storage {
		return NewMemoryStore()
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.RegisterUser(ctx, testUser("alice")))
	require.NoError(t, store.RecordTransaction(ctx, testRecord("alice", 100, domain.StatusApproved)))

	b, err := store.GetBehavior(ctx, "alice")
	require.NoError(t, err)
	b.TotalTransactions = 99
	*b.LastTransactionAt = time.Time{}

	again, err := store.GetBehavior(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, again.TotalTransactions)
	assert.True(t, testTime.Equal(*again.LastTransactionAt))
}
