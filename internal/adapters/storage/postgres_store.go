package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/paysentry/fraud-engine/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for a duplicate key
const uniqueViolation = "23505"

// PostgresStore implements ports.Storage and ports.ChallengeStore for PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL storage instance
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Every payment holds one connection for a short transaction
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// InitSchema creates database tables if they don't exist
// In production, use proper migration tools
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	schema := `
	-- ============================================================================
	-- USERS TABLE
	-- ============================================================================
	-- Owned by registration. The engine only reads it, except for the card
	-- limit which approvals decrement. Card numbers and CVVs never land here.
	CREATE TABLE IF NOT EXISTS users (
		user_id VARCHAR(64) PRIMARY KEY,
		email VARCHAR(254) NOT NULL DEFAULT '',
		mobile_number VARCHAR(32) NOT NULL DEFAULT '',
		city VARCHAR(100) NOT NULL DEFAULT '',
		registered_ip VARCHAR(45) NOT NULL DEFAULT '',
		current_card_limit NUMERIC(14,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	-- ============================================================================
	-- USER_BEHAVIOR TABLE
	-- ============================================================================
	-- Running spend history, one row per user. Approvals lock the row with
	-- SELECT ... FOR UPDATE so concurrent approvals for the same user
	-- serialize and the running average stays exact.
	CREATE TABLE IF NOT EXISTS user_behavior (
		user_id VARCHAR(64) PRIMARY KEY REFERENCES users(user_id) ON DELETE CASCADE,
		usual_city VARCHAR(100) NOT NULL DEFAULT '',
		usual_state VARCHAR(100) NOT NULL DEFAULT '',
		avg_spend NUMERIC(16,4) NOT NULL DEFAULT 0,
		total_transactions INT NOT NULL DEFAULT 0,
		last_transaction_timestamp TIMESTAMPTZ,
		last_transaction_location VARCHAR(100) NOT NULL DEFAULT '',
		last_transaction_ip VARCHAR(45) NOT NULL DEFAULT ''
	);

	-- ============================================================================
	-- TRANSACTIONS TABLE
	-- ============================================================================
	-- Append-only ledger of assessed payments. Only the last four card digits
	-- are kept. Status moves at most once, from OTP_Sent to Approved.
	CREATE TABLE IF NOT EXISTS transactions (
		transaction_id UUID PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
		card_no_last4 VARCHAR(4) NOT NULL,
		amount NUMERIC(14,2) NOT NULL,
		transaction_location VARCHAR(100) NOT NULL DEFAULT '',
		transaction_ip VARCHAR(45) NOT NULL DEFAULT '',
		device_id VARCHAR(128) NOT NULL DEFAULT '',
		status VARCHAR(10) NOT NULL CHECK (status IN ('Approved', 'OTP_Sent', 'Blocked')),
		fraud_score NUMERIC(5,4) NOT NULL,
		ml_score NUMERIC(5,4) NOT NULL,
		bla_score NUMERIC(5,4) NOT NULL,
		prediction_method VARCHAR(10) NOT NULL,
		otp_verified BOOLEAN NOT NULL DEFAULT FALSE,
		timestamp TIMESTAMPTZ NOT NULL
	);

	-- Per-user history, most recent first
	CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, timestamp DESC);

	-- ============================================================================
	-- OTP_VERIFICATION TABLE
	-- ============================================================================
	-- One live challenge per transaction; re-issuing replaces the code.
	-- verified flips once, guarded by a conditional UPDATE.
	CREATE TABLE IF NOT EXISTS otp_verification (
		transaction_id UUID PRIMARY KEY REFERENCES transactions(transaction_id) ON DELETE CASCADE,
		user_id VARCHAR(64) NOT NULL,
		otp_code VARCHAR(6) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		verified BOOLEAN NOT NULL DEFAULT FALSE
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// RegisterUser inserts a user and seeds an empty behavior profile
func (s *PostgresStore) RegisterUser(ctx context.Context, user *domain.UserProfile) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO users (user_id, email, mobile_number, city, registered_ip, current_card_limit, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		_, err := tx.ExecContext(ctx, query,
			user.UserID, user.Email, user.Mobile, user.City,
			user.RegisteredIP, user.CurrentLimit, user.CreatedAt,
		)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", domain.ErrUserExists, user.UserID)
		}
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}

		seed := domain.SeedBehavior(user)
		return upsertBehavior(ctx, tx, &seed)
	})
}

// GetUser retrieves a user profile
func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*domain.UserProfile, error) {
	query := `
		SELECT user_id, email, mobile_number, city, registered_ip, current_card_limit, created_at
		FROM users
		WHERE user_id = $1
	`
	user := &domain.UserProfile{}
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID, &user.Email, &user.Mobile, &user.City,
		&user.RegisteredIP, &user.CurrentLimit, &user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

const selectBehavior = `
	SELECT user_id, usual_city, usual_state, avg_spend, total_transactions,
	       last_transaction_timestamp, last_transaction_location, last_transaction_ip
	FROM user_behavior
	WHERE user_id = $1
`

// GetBehavior retrieves the behavior profile, or nil when there is none
func (s *PostgresStore) GetBehavior(ctx context.Context, userID string) (*domain.BehaviorProfile, error) {
	b, err := scanBehavior(s.db.QueryRowContext(ctx, selectBehavior, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get behavior: %w", err)
	}
	return b, nil
}

// RecordTransaction inserts the ledger row and, for approvals, applies the
// limit and behavior updates in the same transaction
func (s *PostgresStore) RecordTransaction(ctx context.Context, record *domain.TransactionRecord) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO transactions (
				transaction_id, user_id, card_no_last4, amount, transaction_location,
				transaction_ip, device_id, status, fraud_score, ml_score, bla_score,
				prediction_method, otp_verified, timestamp
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`
		_, err := tx.ExecContext(ctx, query,
			record.ID, record.UserID, record.CardLast4, record.Amount, record.Location,
			record.IPAddress, record.DeviceID, record.Status, record.FraudScore,
			record.MLScore, record.BLAScore, record.Method, record.OTPVerified, record.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}

		if record.Status != domain.StatusApproved {
			return nil
		}
		return applyApproval(ctx, tx, record)
	})
}

// ApproveChallenged moves an OTP_Sent transaction to Approved exactly once
func (s *PostgresStore) ApproveChallenged(ctx context.Context, transactionID uuid.UUID) (bool, error) {
	approved := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		record, err := scanTransaction(tx.QueryRowContext(ctx, selectTransaction+" FOR UPDATE", transactionID))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, transactionID)
		}
		if err != nil {
			return fmt.Errorf("failed to lock transaction: %w", err)
		}

		switch record.Status {
		case domain.StatusApproved:
			return nil
		case domain.StatusOTPSent:
		default:
			return fmt.Errorf("%w: %s is %s", domain.ErrNotChallenged, transactionID, record.Status)
		}

		query := `UPDATE transactions SET status = $1, otp_verified = TRUE WHERE transaction_id = $2`
		if _, err := tx.ExecContext(ctx, query, domain.StatusApproved, transactionID); err != nil {
			return fmt.Errorf("failed to approve transaction: %w", err)
		}
		if err := applyApproval(ctx, tx, record); err != nil {
			return err
		}

		approved = true
		return nil
	})
	return approved, err
}

const selectTransaction = `
	SELECT transaction_id, user_id, card_no_last4, amount, transaction_location,
	       transaction_ip, device_id, status, fraud_score, ml_score, bla_score,
	       prediction_method, otp_verified, timestamp
	FROM transactions
	WHERE transaction_id = $1
`

// GetTransaction retrieves a ledger row
func (s *PostgresStore) GetTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.TransactionRecord, error) {
	record, err := scanTransaction(s.db.QueryRowContext(ctx, selectTransaction, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, transactionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return record, nil
}

// SaveChallenge stores a challenge, replacing any earlier one for the transaction
func (s *PostgresStore) SaveChallenge(ctx context.Context, challenge *domain.OtpChallenge) error {
	query := `
		INSERT INTO otp_verification (transaction_id, user_id, otp_code, created_at, expires_at, verified)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		ON CONFLICT (transaction_id) DO UPDATE
		SET otp_code = EXCLUDED.otp_code,
		    created_at = EXCLUDED.created_at,
		    expires_at = EXCLUDED.expires_at,
		    verified = FALSE
	`
	_, err := s.db.ExecContext(ctx, query,
		challenge.TransactionID, challenge.UserID, challenge.Code,
		challenge.CreatedAt, challenge.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save challenge: %w", err)
	}
	return nil
}

// GetChallenge retrieves the live challenge for a transaction
func (s *PostgresStore) GetChallenge(ctx context.Context, transactionID uuid.UUID) (*domain.OtpChallenge, error) {
	query := `
		SELECT transaction_id, user_id, otp_code, created_at, expires_at, verified
		FROM otp_verification
		WHERE transaction_id = $1
	`
	c := &domain.OtpChallenge{}
	err := s.db.QueryRowContext(ctx, query, transactionID).Scan(
		&c.TransactionID, &c.UserID, &c.Code, &c.CreatedAt, &c.ExpiresAt, &c.Verified,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrChallengeNotFound, transactionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return c, nil
}

// MarkVerified flips the verified flag of the live code; only the first
// caller sees true
func (s *PostgresStore) MarkVerified(ctx context.Context, transactionID uuid.UUID, code string) (bool, error) {
	query := `
		UPDATE otp_verification SET verified = TRUE
		WHERE transaction_id = $1 AND otp_code = $2 AND verified = FALSE
	`
	res, err := s.db.ExecContext(ctx, query, transactionID, code)
	if err != nil {
		return false, fmt.Errorf("failed to mark challenge verified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// applyApproval decrements the card limit and folds the amount into the
// row-locked behavior profile
func applyApproval(ctx context.Context, tx *sql.Tx, record *domain.TransactionRecord) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE users SET current_card_limit = current_card_limit - $1 WHERE user_id = $2`,
		record.Amount, record.UserID)
	if err != nil {
		return fmt.Errorf("failed to update card limit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrUserNotFound, record.UserID)
	}

	// Users registered outside RegisterUser may have no profile yet
	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_behavior (user_id, usual_city, usual_state)
		SELECT user_id, city, city FROM users WHERE user_id = $1
		ON CONFLICT (user_id) DO NOTHING
	`, record.UserID)
	if err != nil {
		return fmt.Errorf("failed to seed behavior: %w", err)
	}

	current, err := scanBehavior(tx.QueryRowContext(ctx, selectBehavior+" FOR UPDATE", record.UserID))
	if err != nil {
		return fmt.Errorf("failed to lock behavior: %w", err)
	}

	updated := current.ApplyApproved(record.Amount, record.Location, record.IPAddress, record.CreatedAt)
	return upsertBehavior(ctx, tx, &updated)
}

func upsertBehavior(ctx context.Context, tx *sql.Tx, b *domain.BehaviorProfile) error {
	query := `
		INSERT INTO user_behavior (
			user_id, usual_city, usual_state, avg_spend, total_transactions,
			last_transaction_timestamp, last_transaction_location, last_transaction_ip
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE
		SET avg_spend = EXCLUDED.avg_spend,
		    total_transactions = EXCLUDED.total_transactions,
		    last_transaction_timestamp = EXCLUDED.last_transaction_timestamp,
		    last_transaction_location = EXCLUDED.last_transaction_location,
		    last_transaction_ip = EXCLUDED.last_transaction_ip
	`
	var lastAt sql.NullTime
	if b.LastTransactionAt != nil {
		lastAt = sql.NullTime{Time: *b.LastTransactionAt, Valid: true}
	}

	_, err := tx.ExecContext(ctx, query,
		b.UserID, b.UsualCity, b.UsualState, b.AvgSpend, b.TotalTransactions,
		lastAt, b.LastLocation, b.LastIP,
	)
	if err != nil {
		return fmt.Errorf("failed to write behavior: %w", err)
	}
	return nil
}

func scanBehavior(row *sql.Row) (*domain.BehaviorProfile, error) {
	b := &domain.BehaviorProfile{}
	var lastAt sql.NullTime
	err := row.Scan(
		&b.UserID, &b.UsualCity, &b.UsualState, &b.AvgSpend, &b.TotalTransactions,
		&lastAt, &b.LastLocation, &b.LastIP,
	)
	if err != nil {
		return nil, err
	}
	if lastAt.Valid {
		t := lastAt.Time
		b.LastTransactionAt = &t
	}
	return b, nil
}

func scanTransaction(row *sql.Row) (*domain.TransactionRecord, error) {
	r := &domain.TransactionRecord{}
	err := row.Scan(
		&r.ID, &r.UserID, &r.CardLast4, &r.Amount, &r.Location,
		&r.IPAddress, &r.DeviceID, &r.Status, &r.FraudScore, &r.MLScore, &r.BLAScore,
		&r.Method, &r.OTPVerified, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}
