package mlmodel

// Adapt pads every row with zeros or truncates it to width n. It reports
// whether any row changed. A non-positive width leaves rows untouched.
func Adapt(rows [][]float64, n int) ([][]float64, bool) {
	if n <= 0 {
		return rows, false
	}

	changed := false
	out := make([][]float64, len(rows))
	for i, row := range rows {
		switch {
		case len(row) == n:
			out[i] = row
		case len(row) < n:
			padded := make([]float64, n)
			copy(padded, row)
			out[i] = padded
			changed = true
		default:
			out[i] = row[:n]
			changed = true
		}
	}
	return out, changed
}

// PredictProba resolves class probabilities from the richest capability the
// model offers: PredictProba, then a squashed DecisionFunction, then binary
// labels mapped to hard probabilities. When the model only produces
// non-binary labels, the labels are returned instead and proba is nil.
func PredictProba(m Model, rows [][]float64) (proba [][]float64, predicted []float64, err error) {
	rows, _ = Adapt(rows, m.NFeaturesIn())

	if p, ok := m.(ProbaPredictor); ok {
		return p.PredictProba(rows), nil, nil
	}

	if d, ok := m.(DecisionScorer); ok {
		scores := d.DecisionFunction(rows)
		proba = make([][]float64, len(scores))
		for i, z := range scores {
			p := sigmoid(z)
			proba[i] = []float64{1 - p, p}
		}
		return proba, nil, nil
	}

	if l, ok := m.(LabelPredictor); ok {
		predicted = l.Predict(rows)
		if !binary(predicted) {
			return nil, predicted, nil
		}
		proba = make([][]float64, len(predicted))
		for i, p := range predicted {
			proba[i] = []float64{1 - p, p}
		}
		return proba, nil, nil
	}

	return nil, nil, ErrNoCapability
}

// Predict returns hard labels
func Predict(m Model, rows [][]float64) ([]float64, error) {
	l, ok := m.(LabelPredictor)
	if !ok {
		return nil, ErrNoCapability
	}
	rows, _ = Adapt(rows, m.NFeaturesIn())
	return l.Predict(rows), nil
}

func binary(values []float64) bool {
	for _, v := range values {
		if v != 0 && v != 1 {
			return false
		}
	}
	return true
}
