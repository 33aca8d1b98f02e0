package model

// #region imports
import "errors"

// #endregion

// #region errors

// ErrNoExamples is returned when Fit is called with an empty training set.
var ErrNoExamples = errors.New("no training examples")

// #endregion

// #region learner

// Example is one labeled training example.
type Example struct {
	Value float64
	Label bool
}

// Predictor classifies a scalar input.
type Predictor interface {
	// Predict returns the predicted label and a confidence in [0,1].
	Predict(value float64) (label bool, confidence float64)
}

// Learner is the external training collaborator: an opaque capability that
// fits a predictor from labeled examples. Implementations must be
// deterministic given identical examples.
type Learner interface {
	Fit(examples []Example) (Predictor, error)
}

// #endregion learner

// #region prediction

// Prediction is the typed result of serving one prediction.
type Prediction struct {
	Label        bool
	Confidence   float64
	ModelVersion int
	UsedFallback bool
}

// #endregion prediction
