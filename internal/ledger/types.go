package ledger

// #region imports
import (
	"errors"
	"time"
)

// #endregion

// #region errors

// ErrNotFound is returned when a label references an unknown observation.
var ErrNotFound = errors.New("observation not found")

// #endregion

// #region observation

// Observation is one served prediction, optionally annotated later with
// its ground-truth label.
type Observation struct {
	ID             string
	CreatedAt      time.Time
	Value          float64
	PredictedLabel bool
	Confidence     float64
	ActualLabel    bool
	Labeled        bool
	ModelVersion   int
}

// Correct reports whether the prediction matched ground truth.
// Only meaningful when Labeled is true.
func (o Observation) Correct() bool {
	return o.Labeled && o.PredictedLabel == o.ActualLabel
}

// #endregion
