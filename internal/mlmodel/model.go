package mlmodel

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// Kind names a model artifact format
type Kind string

const (
	KindLogistic  Kind = "logistic"
	KindLinear    Kind = "linear"
	KindThreshold Kind = "threshold"
)

var (
	ErrInvalidArtifact = errors.New("invalid model artifact")
	ErrNoCapability    = errors.New("model has no predict_proba/decision_function/predict")
)

// Model is anything the worker can load. What it can do is discovered
// through the capability interfaces below.
type Model interface {
	// NFeaturesIn is the input width the model was trained on
	NFeaturesIn() int
}

// ProbaPredictor returns [p_legit, p_fraud] per row
type ProbaPredictor interface {
	Model
	PredictProba(rows [][]float64) [][]float64
}

// DecisionScorer returns an unbounded confidence per row
type DecisionScorer interface {
	Model
	DecisionFunction(rows [][]float64) []float64
}

// LabelPredictor returns a class label per row
type LabelPredictor interface {
	Model
	Predict(rows [][]float64) []float64
}

// Artifact is the on-disk JSON form of a model
//
//	{"kind": "logistic", "coefficients": [...], "intercept": -3.2}
//	{"kind": "threshold", "feature": 2, "threshold": 5000, "n_features_in": 7}
type Artifact struct {
	Kind         Kind      `json:"kind"`
	Coefficients []float64 `json:"coefficients,omitempty"`
	Intercept    float64   `json:"intercept"`
	Feature      int       `json:"feature,omitempty"`
	Threshold    float64   `json:"threshold,omitempty"`
	NFeaturesIn  int       `json:"n_features_in,omitempty"`
}

// Load reads and builds a model from a JSON artifact file
func Load(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load model from %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a model from JSON artifact bytes
func Parse(data []byte) (Model, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	return a.Build()
}

// Build validates the artifact and returns the model it describes
func (a Artifact) Build() (Model, error) {
	switch a.Kind {
	case KindLogistic, KindLinear:
		if len(a.Coefficients) == 0 {
			return nil, fmt.Errorf("%w: %s model needs coefficients", ErrInvalidArtifact, a.Kind)
		}
		if a.NFeaturesIn != 0 && a.NFeaturesIn != len(a.Coefficients) {
			return nil, fmt.Errorf("%w: n_features_in=%d but %d coefficients",
				ErrInvalidArtifact, a.NFeaturesIn, len(a.Coefficients))
		}
		lin := linear{weights: a.Coefficients, intercept: a.Intercept}
		if a.Kind == KindLogistic {
			return &Logistic{linear: lin}, nil
		}
		return &Linear{linear: lin}, nil

	case KindThreshold:
		if a.NFeaturesIn <= 0 {
			return nil, fmt.Errorf("%w: threshold model needs n_features_in", ErrInvalidArtifact)
		}
		if a.Feature < 0 || a.Feature >= a.NFeaturesIn {
			return nil, fmt.Errorf("%w: feature index %d outside input width %d",
				ErrInvalidArtifact, a.Feature, a.NFeaturesIn)
		}
		return &ThresholdRule{feature: a.Feature, threshold: a.Threshold, width: a.NFeaturesIn}, nil

	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidArtifact, a.Kind)
	}
}

type linear struct {
	weights   []float64
	intercept float64
}

func (l linear) NFeaturesIn() int { return len(l.weights) }

func (l linear) DecisionFunction(rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		z := l.intercept
		for j, w := range l.weights {
			if j < len(row) {
				z += w * row[j]
			}
		}
		out[i] = z
	}
	return out
}

// Logistic is a logistic-regression model. It exposes every capability.
type Logistic struct {
	linear
}

// PredictProba squashes the decision function into [1-p, p]
func (m *Logistic) PredictProba(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, z := range m.DecisionFunction(rows) {
		p := sigmoid(z)
		out[i] = []float64{1 - p, p}
	}
	return out
}

// Predict labels a row 1 when p > 0.5
func (m *Logistic) Predict(rows [][]float64) []float64 {
	return labels(m.DecisionFunction(rows))
}

// Linear is a margin classifier without calibrated probabilities
type Linear struct {
	linear
}

// Predict labels a row 1 when the margin is positive
func (m *Linear) Predict(rows [][]float64) []float64 {
	return labels(m.DecisionFunction(rows))
}

// ThresholdRule labels a row fraudulent when one feature exceeds a cut-off.
// It only offers hard labels.
type ThresholdRule struct {
	feature   int
	threshold float64
	width     int
}

func (m *ThresholdRule) NFeaturesIn() int { return m.width }

// Predict returns 1 for rows whose feature exceeds the threshold
func (m *ThresholdRule) Predict(rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		if m.feature < len(row) && row[m.feature] > m.threshold {
			out[i] = 1
		}
	}
	return out
}

func labels(scores []float64) []float64 {
	out := make([]float64, len(scores))
	for i, z := range scores {
		if z > 0 {
			out[i] = 1
		}
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
