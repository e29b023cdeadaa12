package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/paysentry/fraud-engine/internal/adapters/inference"
	"github.com/paysentry/fraud-engine/internal/adapters/notifier"
	"github.com/paysentry/fraud-engine/internal/adapters/otpstore"
	"github.com/paysentry/fraud-engine/internal/adapters/storage"
	"github.com/paysentry/fraud-engine/internal/application"
	"github.com/paysentry/fraud-engine/internal/config"
	"github.com/paysentry/fraud-engine/internal/domain"
	"github.com/paysentry/fraud-engine/internal/domain/scoring"
	"github.com/paysentry/fraud-engine/internal/logging"
	"github.com/paysentry/fraud-engine/internal/metrics"
	"github.com/paysentry/fraud-engine/internal/mlmodel"
	"github.com/paysentry/fraud-engine/internal/ports"
	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	logger.Info("Starting fraud decision engine...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector(logger)
	server := collector.StartServer(cfg.MetricsAddr)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = collector.Shutdown(shutdownCtx, server)
	}()

	// Ledger store: PostgreSQL when configured, memory otherwise
	store, challenges, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open stores", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	backend, err := newInferenceBackend(cfg, collector, logger)
	if err != nil {
		logger.Error("Failed to initialize inference", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Scoring engine (pure domain logic around the inference port)
	engine := scoring.NewEngine(backend, logger).
		WithThresholds(cfg.Thresholds()).
		WithTravelWindow(cfg.Policy.TravelWindow)

	otp := application.NewOTPManager(challenges, notifier.NewLogNotifier(logger), cfg.OTP.TTL, collector)
	service := application.NewPaymentService(store, engine, otp, collector, logger)

	if err := runDemo(ctx, service, store, challenges, logger); err != nil {
		logger.Error("Demo failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Demo complete, serving metrics until interrupted", slog.String("addr", cfg.MetricsAddr))
	<-ctx.Done()
	logger.Info("Fraud decision engine stopped")
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.Storage, ports.ChallengeStore, error) {
	var store ports.Storage
	var challenges ports.ChallengeStore

	if cfg.Database.URL != "" {
		pg, err := storage.NewPostgresStore(cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.InitSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		logger.Info("Connected to PostgreSQL")
		store, challenges = pg, pg
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory ledger")
		store, challenges = storage.NewMemoryStore(), otpstore.NewMemoryStore()
	}

	if cfg.Redis.Addr != "" {
		client := otpstore.NewRedisClient(otpstore.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			store.Close()
			return nil, nil, err
		}
		logger.Info("Using Redis for OTP challenges", slog.String("addr", cfg.Redis.Addr))
		challenges = otpstore.NewRedisStore(client, cfg.Redis.Retention)
	}

	return store, challenges, nil
}

func newInferenceBackend(cfg *config.Config, collector *metrics.Collector, logger *slog.Logger) (ports.InferenceBackend, error) {
	if cfg.Inference.InProcess {
		model, err := mlmodel.Load(cfg.Inference.ModelPath)
		if err != nil {
			return nil, err
		}
		logger.Info("Serving model in-process", slog.String("model", cfg.Inference.ModelPath))
		return inference.NewGuarded(mlmodel.NewBackend(model), cfg.Inference.Timeout, collector, logger), nil
	}

	logger.Info("Serving model through worker processes",
		slog.String("command", cfg.Inference.WorkerCommand),
		slog.String("model", cfg.Inference.ModelPath))
	return inference.NewSubprocessClient(inference.SubprocessConfig{
		Command:   cfg.Inference.WorkerCommand,
		Args:      cfg.Inference.WorkerArgs,
		ModelPath: cfg.Inference.ModelPath,
		Timeout:   cfg.Inference.Timeout,
	}, collector, logger), nil
}

// runDemo walks a registered user through the three decision paths and the
// OTP step-up. The challenge store stands in for the user's inbox.
func runDemo(ctx context.Context, service *application.PaymentService, store ports.Storage, challenges ports.ChallengeStore, logger *slog.Logger) error {
	userID := "demo-" + uuid.NewString()[:8]
	err := store.RegisterUser(ctx, &domain.UserProfile{
		UserID:       userID,
		Email:        "alice@example.com",
		Mobile:       "+33600000000",
		City:         "Paris",
		CurrentLimit: domain.DefaultCardLimit,
		RegisteredIP: "10.0.0.1",
		CreatedAt:    time.Now(),
	})
	if err != nil {
		return err
	}
	logger.Info("Registered demo user", slog.String("user_id", userID))

	payments := []application.PaymentInput{
		{Amount: decimal.NewFromInt(120), Location: "Paris", IPAddress: "10.0.0.1"},
		{Amount: decimal.NewFromInt(80), Location: "Paris", IPAddress: "10.0.0.1"},
		{Amount: decimal.NewFromInt(150), Location: "Paris", IPAddress: "10.0.0.1"},
		// established now: a large purchase from an unknown address
		{Amount: decimal.NewFromInt(4500), Location: "Paris", IPAddress: "203.0.113.7"},
		{Amount: decimal.NewFromInt(60), Location: "Paris", IPAddress: "10.0.0.1"},
		// Tokyo moments after Paris
		{Amount: decimal.NewFromInt(60), Location: "Tokyo", IPAddress: "10.0.0.1"},
	}

	for i, p := range payments {
		p.UserID = userID
		p.CardNumber = "4532781290123456"
		p.DeviceID = "demo-device"

		result, err := service.ProcessPayment(ctx, p)
		if err != nil {
			return err
		}
		a := result.Assessment
		logger.Info("Payment processed",
			slog.Int("step", i+1),
			slog.String("transaction_id", result.TransactionID.String()),
			slog.String("amount", p.Amount.String()),
			slog.String("location", p.Location),
			slog.String("status", string(a.Status)),
			slog.Float64("fraud_score", a.FraudScore),
			slog.String("message", a.Message))

		if !result.OTPRequired {
			continue
		}

		challenge, err := challenges.GetChallenge(ctx, result.TransactionID)
		if err != nil {
			return err
		}
		for _, code := range []string{"000000", challenge.Code, challenge.Code} {
			verified, err := service.VerifyOTP(ctx, result.TransactionID, code)
			if err != nil {
				return err
			}
			logger.Info("OTP attempt",
				slog.String("transaction_id", result.TransactionID.String()),
				slog.String("outcome", string(verified.Outcome)),
				slog.String("message", verified.Message))
		}
	}

	return nil
}
