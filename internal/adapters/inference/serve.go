package inference

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/paysentry/fraud-engine/internal/mlmodel"
)

// ModelLoader produces the model for one worker invocation
type ModelLoader func() (mlmodel.Model, error)

// Serve is the worker side of the protocol: it reads one request from r,
// evaluates it, and writes exactly one JSON reply to w. Every failure
// becomes an error reply; only a failed write is returned.
func Serve(r io.Reader, w io.Writer, load ModelLoader, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	resp := handle(r, load, logger)
	return json.NewEncoder(w).Encode(resp)
}

func handle(r io.Reader, load ModelLoader, logger *slog.Logger) Response {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return Response{Error: fmt.Sprintf("decode request: %v", err), Features: "None"}
	}
	logger.Debug("predict_worker received features", slog.Any("features", req.Features))

	fail := func(err error) Response {
		return Response{Error: err.Error(), Features: fmt.Sprint(req.Features)}
	}

	model, err := load()
	if err != nil {
		return fail(err)
	}

	rows, changed := mlmodel.Adapt(req.Features, model.NFeaturesIn())
	if changed {
		logger.Warn("Feature width does not match the model, padding/truncating",
			slog.Int("n_features_in", model.NFeaturesIn()))
	}

	switch req.Action {
	case ActionPredict:
		labels, err := mlmodel.Predict(model, rows)
		if err != nil {
			return fail(err)
		}
		return Response{Predict: labels}

	case ActionPredictProba:
		proba, labels, err := mlmodel.PredictProba(model, rows)
		if err != nil {
			return fail(err)
		}
		if proba == nil {
			return Response{Predict: labels}
		}
		return Response{PredictProba: proba}

	default:
		return fail(fmt.Errorf("unknown action: %q", req.Action))
	}
}
