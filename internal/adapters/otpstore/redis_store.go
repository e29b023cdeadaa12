package otpstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paysentry/fraud-engine/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultRetention keeps a challenge readable after it expires, so late
// attempts are reported as expired rather than not found
const DefaultRetention = 24 * time.Hour

// RedisConfig holds the connection settings for the challenge store
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient creates a go-redis client
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisStore implements ports.ChallengeStore on Redis. The challenge body
// and its verified marker live under separate keys; SETNX on the marker is
// the compare-and-set that lets a single verification win.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisStore creates a store over an existing client
func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisStore{client: client, retention: retention}
}

func challengeKey(id uuid.UUID) string {
	return fmt.Sprintf("otp:challenge:%s", id)
}

func verifiedKey(id uuid.UUID) string {
	return fmt.Sprintf("otp:verified:%s", id)
}

// ttl is the key lifetime for a challenge: its remaining validity plus retention
func (s *RedisStore) ttl(c *domain.OtpChallenge) time.Duration {
	remaining := time.Until(c.ExpiresAt)
	if remaining < 0 {
		remaining = 0
	}
	return remaining + s.retention
}

// SaveChallenge writes the challenge and clears any verified marker left by
// the challenge it supersedes
func (s *RedisStore) SaveChallenge(ctx context.Context, challenge *domain.OtpChallenge) error {
	stored := *challenge
	stored.Verified = false

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal challenge: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, challengeKey(challenge.TransactionID), data, s.ttl(challenge))
		pipe.Del(ctx, verifiedKey(challenge.TransactionID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save challenge: %w", err)
	}
	return nil
}

// GetChallenge reads the challenge and its verified marker in one round trip
func (s *RedisStore) GetChallenge(ctx context.Context, transactionID uuid.UUID) (*domain.OtpChallenge, error) {
	var body *redis.StringCmd
	var verified *redis.IntCmd

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		body = pipe.Get(ctx, challengeKey(transactionID))
		verified = pipe.Exists(ctx, verifiedKey(transactionID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	data, err := body.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", domain.ErrChallengeNotFound, transactionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	var c domain.OtpChallenge
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode challenge: %w", err)
	}
	c.Verified = verified.Val() > 0
	return &c, nil
}

// MarkVerified sets the verified marker if the stored code still matches
// and no marker exists. The challenge and marker keys are watched, so a
// concurrent re-issue or verification aborts the transaction and loses.
func (s *RedisStore) MarkVerified(ctx context.Context, transactionID uuid.UUID, code string) (bool, error) {
	won := false
	mark := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, challengeKey(transactionID)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		var c domain.OtpChallenge
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("failed to decode challenge: %w", err)
		}
		if c.Code != code {
			return nil
		}

		marked, err := tx.Exists(ctx, verifiedKey(transactionID)).Result()
		if err != nil {
			return err
		}
		if marked > 0 {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, verifiedKey(transactionID), 1, s.ttl(&c))
			return nil
		})
		if err != nil {
			return err
		}
		won = true
		return nil
	}

	err := s.client.Watch(ctx, mark, challengeKey(transactionID), verifiedKey(transactionID))
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to mark challenge verified: %w", err)
	}
	return won, nil
}
