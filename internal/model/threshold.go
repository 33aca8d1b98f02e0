package model

// #region imports
import (
	"math"
	"sort"
)

// #endregion

// #region threshold-learner

// ThresholdLearner fits a single decision boundary over scalar inputs.
// It is the built-in stand-in for an external training service.
type ThresholdLearner struct{}

// Fit picks the boundary that minimizes misclassifications over the
// examples. Candidate boundaries are midpoints between adjacent distinct
// values; ties resolve to the lowest boundary, so training is deterministic.
func (ThresholdLearner) Fit(examples []Example) (Predictor, error) {
	if len(examples) == 0 {
		return nil, ErrNoExamples
	}

	values := make([]float64, len(examples))
	for i, ex := range examples {
		values[i] = ex.Value
	}
	sort.Float64s(values)

	candidates := []float64{0.5}
	for i := 1; i < len(values); i++ {
		if values[i] != values[i-1] {
			candidates = append(candidates, (values[i]+values[i-1])/2)
		}
	}
	sort.Float64s(candidates)

	best := candidates[0]
	bestErrs := len(examples) + 1
	for _, b := range candidates {
		errs := 0
		for _, ex := range examples {
			if (ex.Value > b) != ex.Label {
				errs++
			}
		}
		if errs < bestErrs {
			bestErrs = errs
			best = b
		}
	}

	span := values[len(values)-1] - values[0]
	if span <= 0 {
		span = 1
	}

	return &thresholdModel{boundary: best, span: span}, nil
}

// #endregion threshold-learner

// #region threshold-model

// thresholdModel predicts label = value > boundary, with confidence scaled
// by distance from the boundary.
type thresholdModel struct {
	boundary float64
	span     float64
}

func (m *thresholdModel) Predict(value float64) (bool, float64) {
	dist := math.Abs(value-m.boundary) / m.span
	conf := 0.5 + math.Min(dist, 0.5)
	return value > m.boundary, conf
}

// #endregion threshold-model
