package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/paysentry/fraud-engine/internal/domain"
	"github.com/paysentry/fraud-engine/internal/metrics"
	"github.com/paysentry/fraud-engine/internal/ports"
)

// DefaultTimeout bounds a whole worker round trip
const DefaultTimeout = 5 * time.Second

// SubprocessConfig describes how to launch the prediction worker
type SubprocessConfig struct {
	Command   string
	Args      []string
	ModelPath string
	Env       []string // extra KEY=VALUE entries
	Timeout   time.Duration
}

// SubprocessClient implements ports.InferenceBackend by running one worker
// process per prediction. A crash, hang or garbage reply in the worker can
// only ever surface as ErrInferenceUnavailable.
type SubprocessClient struct {
	cfg     SubprocessConfig
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewSubprocessClient creates a client for the given worker
func NewSubprocessClient(cfg SubprocessConfig, collector *metrics.Collector, logger *slog.Logger) *SubprocessClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SubprocessClient{cfg: cfg, metrics: collector, logger: logger}
}

// PredictProba returns the class probabilities for one feature row. A
// worker that can only produce binary labels yields hard probabilities.
func (c *SubprocessClient) PredictProba(ctx context.Context, features []float64) (ports.Probabilities, error) {
	resp, err := c.call(ctx, ActionPredictProba, features)
	if err != nil {
		return ports.Probabilities{}, err
	}

	if len(resp.PredictProba) > 0 && len(resp.PredictProba[0]) >= 2 {
		row := resp.PredictProba[0]
		return ports.Probabilities{Legit: row[0], Fraud: row[1]}, nil
	}
	if len(resp.Predict) > 0 && (resp.Predict[0] == 0 || resp.Predict[0] == 1) {
		p := resp.Predict[0]
		return ports.Probabilities{Legit: 1 - p, Fraud: p}, nil
	}

	return ports.Probabilities{}, fmt.Errorf("%w: reply carries no usable probabilities", domain.ErrInferenceUnavailable)
}

// Predict returns the hard label for one feature row
func (c *SubprocessClient) Predict(ctx context.Context, features []float64) (float64, error) {
	resp, err := c.call(ctx, ActionPredict, features)
	if err != nil {
		return 0, err
	}
	if len(resp.Predict) == 0 {
		return 0, fmt.Errorf("%w: reply carries no label", domain.ErrInferenceUnavailable)
	}
	return resp.Predict[0], nil
}

func (c *SubprocessClient) call(ctx context.Context, action Action, features []float64) (*Response, error) {
	start := time.Now()
	resp, reason, err := c.run(ctx, action, features)
	c.metrics.ObserveInference(time.Since(start), reason)
	return resp, err
}

// run executes one worker round trip. On failure it also returns the
// metrics reason.
func (c *SubprocessClient) run(ctx context.Context, action Action, features []float64) (*Response, string, error) {
	payload, err := json.Marshal(Request{Features: [][]float64{sanitize(features)}, Action: action})
	if err != nil {
		return nil, metrics.ReasonMalformed, fmt.Errorf("%w: encode request: %v", domain.ErrInferenceUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.cfg.Command, c.cfg.Args...)
	cmd.Env = append(os.Environ(), c.cfg.Env...)
	if c.cfg.ModelPath != "" {
		cmd.Env = append(cmd.Env, "MODEL_PATH="+c.cfg.ModelPath)
	}
	cmd.WaitDelay = 500 * time.Millisecond

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		c.logger.WarnContext(ctx, "predict_worker stderr", slog.String("stderr", msg))
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, metrics.ReasonTimeout, fmt.Errorf("%w: worker timed out after %s", domain.ErrInferenceUnavailable, c.cfg.Timeout)
		}
		return nil, metrics.ReasonTimeout, fmt.Errorf("%w: %v", domain.ErrInferenceUnavailable, ctxErr)
	}
	if runErr != nil {
		return nil, metrics.ReasonCrash, fmt.Errorf("%w: worker failed: %v", domain.ErrInferenceUnavailable, runErr)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return nil, metrics.ReasonMalformed, fmt.Errorf("%w: worker produced no output", domain.ErrInferenceUnavailable)
	}

	var resp Response
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, metrics.ReasonMalformed, fmt.Errorf("%w: malformed worker reply: %v", domain.ErrInferenceUnavailable, err)
	}
	if resp.Error != "" {
		c.logger.ErrorContext(ctx, "predict_worker error",
			slog.String("error", resp.Error),
			slog.String("features", resp.Features))
		return nil, metrics.ReasonWorker, fmt.Errorf("%w: worker error: %s", domain.ErrInferenceUnavailable, resp.Error)
	}

	return &resp, "", nil
}
