package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/paysentry/fraud-engine/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fraud_engine"

// Inference failure reasons
const (
	ReasonTimeout   = "timeout"
	ReasonCrash     = "crash"
	ReasonMalformed = "malformed"
	ReasonWorker    = "worker_error"
	ReasonPanic     = "panic"
)

// Collector owns every fraud-engine metric on a private registry.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry          *prometheus.Registry
	assessments       *prometheus.CounterVec
	fraudScore        prometheus.Histogram
	inferenceFailures *prometheus.CounterVec
	inferenceLatency  prometheus.Histogram
	otpIssued         prometheus.Counter
	otpVerifications  *prometheus.CounterVec
	logger            *slog.Logger
}

// NewCollector creates the collectors and registers them
func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		assessments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Total number of assessed transactions by status and scoring method.",
		}, []string{"status", "method"}),
		fraudScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fraud_score",
			Help:      "Distribution of final fraud scores.",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.7, 0.9, 1},
		}),
		inferenceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "failures_total",
			Help:      "Inference calls that fell back to the default prior, by reason.",
		}, []string{"reason"}),
		inferenceLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "duration_seconds",
			Help:      "Wall time of inference calls.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		otpIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "otp",
			Name:      "issued_total",
			Help:      "Total number of OTP challenges issued.",
		}),
		otpVerifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "otp",
			Name:      "verifications_total",
			Help:      "OTP verification attempts by outcome.",
		}, []string{"outcome"}),
		logger: logger,
	}
}

// Registry exposes the private registry, mainly for tests
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveAssessment records the status, method and score of an assessment
func (c *Collector) ObserveAssessment(a *domain.FraudAssessment) {
	if c == nil || a == nil {
		return
	}
	c.assessments.WithLabelValues(string(a.Status), string(a.Method)).Inc()
	c.fraudScore.Observe(a.FraudScore)
}

// ObserveInference records the latency of one inference call and, when it
// failed, the failure reason.
func (c *Collector) ObserveInference(elapsed time.Duration, failureReason string) {
	if c == nil {
		return
	}
	c.inferenceLatency.Observe(elapsed.Seconds())
	if failureReason != "" {
		c.inferenceFailures.WithLabelValues(failureReason).Inc()
	}
}

// IncOTPIssued counts an issued challenge
func (c *Collector) IncOTPIssued() {
	if c == nil {
		return
	}
	c.otpIssued.Inc()
}

// ObserveOTPVerification counts a verification outcome
func (c *Collector) ObserveOTPVerification(outcome domain.VerifyOutcome) {
	if c == nil {
		return
	}
	c.otpVerifications.WithLabelValues(string(outcome)).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on addr in the background
func (c *Collector) StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		c.logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}

// Shutdown stops a server started by StartServer
func (c *Collector) Shutdown(ctx context.Context, server *http.Server) error {
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
