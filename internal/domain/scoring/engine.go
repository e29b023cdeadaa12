package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/paysentry/fraud-engine/internal/domain"
	"github.com/paysentry/fraud-engine/internal/ports"
)

// Engine turns a payment attempt into an approve / challenge / block decision
//
// The engine is stateless: concurrent assessments share nothing but the
// read-only configuration below. The inference backend is the only call
// that may block, and every failure there is absorbed into DefaultMLPrior.
type Engine struct {
	backend      ports.InferenceBackend
	bla          *BLAScorer
	thresholds   domain.Thresholds
	travelWindow time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// NewEngine creates an engine with the standard signals and thresholds
func NewEngine(backend ports.InferenceBackend, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		backend:      backend,
		bla:          NewDefaultBLAScorer(DefaultTravelWindow),
		thresholds:   domain.DefaultThresholds(),
		travelWindow: DefaultTravelWindow,
		now:          time.Now,
		logger:       logger,
	}
}

// WithThresholds overrides the decision cut points
func (e *Engine) WithThresholds(t domain.Thresholds) *Engine {
	e.thresholds = t
	return e
}

// WithTravelWindow sets the impossible-travel window for both the override
// and the BLA signal
func (e *Engine) WithTravelWindow(window time.Duration) *Engine {
	if window <= 0 {
		window = DefaultTravelWindow
	}
	e.travelWindow = window
	e.bla = NewDefaultBLAScorer(window)
	return e
}

// WithClock replaces the time source used for elapsed-time checks, the
// hour feature and the assessment time
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Now returns the engine's current time
func (e *Engine) Now() time.Time {
	return e.now()
}

// WithBLAScorer replaces the business-logic scorer
func (e *Engine) WithBLAScorer(s *BLAScorer) *Engine {
	e.bla = s
	return e
}

// Thresholds returns the active decision cut points
func (e *Engine) Thresholds() domain.Thresholds {
	return e.thresholds
}

// Assess scores a transaction. Only input errors are returned; inference
// problems are logged and replaced by the default prior.
func (e *Engine) Assess(ctx context.Context, req domain.TransactionRequest, user *domain.UserProfile, behavior *domain.BehaviorProfile) (*domain.FraudAssessment, error) {
	if req.UserID == "" || !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: request must carry a user id and a positive amount", domain.ErrInvalidInput)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user profile is required", domain.ErrInvalidInput)
	}

	tier := domain.TierFor(behavior)
	now := e.now()

	// Evaluated for every tier: a new-tier user with a single recorded
	// transaction can still trip it.
	travel, elapsed := ImpossibleTravel(req.Location, now, behavior, e.travelWindow)
	if travel {
		e.logger.WarnContext(ctx, "Impossible travel detected",
			slog.String("user_id", req.UserID),
			slog.String("from", behavior.LastLocation),
			slog.String("to", req.Location),
			slog.Float64("minutes", elapsed.Minutes()))
	}

	features := BuildFeatures(tier, req, behavior, now)
	mlScore, mlAvailable := e.predict(ctx, req.UserID, features)

	assessment := &domain.FraudAssessment{
		Tier:           tier,
		Method:         domain.MethodMLOnly,
		TravelOverride: travel,
		MLAvailable:    mlAvailable,
		Flags:          make([]domain.Flag, 0),
		AssessedAt:     now,
	}

	blaScore := 0.0
	if tier == domain.TierEstablished {
		result := e.bla.Score(SignalInput{Request: req, User: user, Behavior: behavior, Now: now})
		blaScore = result.Score
		assessment.Flags = result.Flags
		assessment.Method = domain.MethodMLBLA
	}

	assessment.MLScore = domain.RoundScore(mlScore)
	assessment.BLAScore = domain.RoundScore(blaScore)
	assessment.FraudScore = domain.RoundScore(Combine(tier, mlScore, blaScore, travel))
	assessment.Status = e.thresholds.Decide(assessment.FraudScore)
	assessment.Message = assessment.Status.Message()

	e.logger.InfoContext(ctx, "Transaction assessed",
		slog.String("user_id", req.UserID),
		slog.String("tier", string(tier)),
		slog.String("method", string(assessment.Method)),
		slog.Float64("ml_score", assessment.MLScore),
		slog.Float64("bla_score", assessment.BLAScore),
		slog.Float64("fraud_score", assessment.FraudScore),
		slog.String("status", string(assessment.Status)))

	return assessment, nil
}

// predict queries the backend and reports whether a real result was obtained
func (e *Engine) predict(ctx context.Context, userID string, features []float64) (float64, bool) {
	if e.backend == nil {
		return DefaultMLPrior, false
	}

	probs, err := e.backend.PredictProba(ctx, features)
	if err != nil {
		e.logger.WarnContext(ctx, "ML prediction failed, using default low risk",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return DefaultMLPrior, false
	}

	p := probs.Fraud
	if math.IsNaN(p) || math.IsInf(p, 0) {
		e.logger.WarnContext(ctx, "ML prediction returned a non-finite probability, using default low risk",
			slog.String("user_id", userID))
		return DefaultMLPrior, false
	}
	return clamp01(p), true
}
