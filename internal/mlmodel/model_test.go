package mlmodel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paysentry/fraud-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		artifact  string
		expectErr bool
		width     int
	}{
		{"Logistic", `{"kind":"logistic","coefficients":[0.1,0.2,0.3,0.4],"intercept":-1}`, false, 4},
		{"Linear with explicit width", `{"kind":"linear","coefficients":[1,2],"n_features_in":2}`, false, 2},
		{"Threshold", `{"kind":"threshold","feature":2,"threshold":5000,"n_features_in":7}`, false, 7},
		{"Unknown kind", `{"kind":"forest"}`, true, 0},
		{"Missing coefficients", `{"kind":"logistic"}`, true, 0},
		{"Width disagrees with coefficients", `{"kind":"linear","coefficients":[1,2],"n_features_in":3}`, true, 0},
		{"Threshold feature out of range", `{"kind":"threshold","feature":7,"n_features_in":7}`, true, 0},
		{"Not JSON", `model.pkl`, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(tt.artifact))
			if tt.expectErr {
				assert.ErrorIs(t, err, ErrInvalidArtifact)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.width, m.NFeaturesIn())
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"kind":"logistic","coefficients":[1],"intercept":0}`), 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	assert.IsType(t, &Logistic{}, m)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestAdapt(t *testing.T) {
	rows := [][]float64{{1, 2, 3, 4}}

	padded, changed := Adapt(rows, 7)
	assert.True(t, changed)
	assert.Equal(t, []float64{1, 2, 3, 4, 0, 0, 0}, padded[0])

	truncated, changed := Adapt(rows, 2)
	assert.True(t, changed)
	assert.Equal(t, []float64{1, 2}, truncated[0])

	same, changed := Adapt(rows, 4)
	assert.False(t, changed)
	assert.Equal(t, rows, same)

	// input is not modified
	assert.Equal(t, []float64{1, 2, 3, 4}, rows[0])
}

func TestPredictProba_CapabilityFallback(t *testing.T) {
	tests := []struct {
		name          string
		artifact      Artifact
		row           []float64
		expectedFraud float64
	}{
		{
			name:          "Logistic uses its own probabilities",
			artifact:      Artifact{Kind: KindLogistic, Coefficients: []float64{1, 1}},
			row:           []float64{0, 0},
			expectedFraud: 0.5,
		},
		{
			name:          "Linear squashes the decision function",
			artifact:      Artifact{Kind: KindLinear, Coefficients: []float64{2}},
			row:           []float64{0},
			expectedFraud: 0.5,
		},
		{
			name:          "Threshold maps binary labels to hard probabilities",
			artifact:      Artifact{Kind: KindThreshold, Feature: 0, Threshold: 100, NFeaturesIn: 1},
			row:           []float64{150},
			expectedFraud: 1.0,
		},
		{
			name:          "Short rows are padded before scoring",
			artifact:      Artifact{Kind: KindThreshold, Feature: 3, Threshold: 0.5, NFeaturesIn: 4},
			row:           []float64{9, 9},
			expectedFraud: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.artifact.Build()
			require.NoError(t, err)

			proba, labels, err := PredictProba(m, [][]float64{tt.row})
			require.NoError(t, err)
			assert.Nil(t, labels)
			require.Len(t, proba, 1)
			assert.InDelta(t, tt.expectedFraud, proba[0][1], 1e-9)
			assert.InDelta(t, 1.0, proba[0][0]+proba[0][1], 1e-9)
		})
	}
}

func TestPredictProba_LargeMarginsStayFinite(t *testing.T) {
	m, err := Artifact{Kind: KindLinear, Coefficients: []float64{1}}.Build()
	require.NoError(t, err)

	proba, _, err := PredictProba(m, [][]float64{{1e6}, {-1e6}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, proba[0][1])
	assert.Equal(t, 0.0, proba[1][1])
}

func TestPredict(t *testing.T) {
	m, err := Artifact{Kind: KindLinear, Coefficients: []float64{1}, Intercept: -10}.Build()
	require.NoError(t, err)

	labels, err := Predict(m, [][]float64{{5}, {50}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, labels)
}

func TestLogistic_PredictAtEvenOdds(t *testing.T) {
	m, err := Artifact{Kind: KindLogistic, Coefficients: []float64{1}, Intercept: 0, NFeaturesIn: 1}.Build()
	require.NoError(t, err)

	// p = 0.5 exactly at zero margin, which is not enough for a positive label
	labels, err := Predict(m, [][]float64{{0}, {0.01}, {-0.01}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0}, labels)
}

func TestBackend_PredictProba(t *testing.T) {
	m, err := Artifact{Kind: KindLogistic, Coefficients: []float64{0, 0, 0, 0}}.Build()
	require.NoError(t, err)
	backend := NewBackend(m)

	probs, err := backend.PredictProba(context.Background(), []float64{1, 2, 3, 4, 5, 6, 7})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, probs.Fraud, 1e-9)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = backend.PredictProba(ctx, []float64{1})
	assert.ErrorIs(t, err, domain.ErrInferenceUnavailable)
}
