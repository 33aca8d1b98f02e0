package model

// #region imports
import (
	"sync"
	"time"
)

// #endregion

// #region slot-struct

// Slot is the single mutable home of the active model. Readers take a
// consistent view of predictor and version together; Swap replaces both
// atomically so they are never inconsistent relative to each other.
type Slot struct {
	mu        sync.RWMutex
	predictor Predictor
	version   int
	trainedAt time.Time
}

// NewSlot creates an empty slot. Until the first Swap, Predict serves
// fallback predictions at version 0.
func NewSlot() *Slot {
	return &Slot{}
}

// #endregion slot-struct

// #region predict

// Predict serves one prediction from the current model. A slot that has
// never been trained answers with the fallback rule (value > 0.5 at
// confidence 0.5) and flags the result.
func (s *Slot) Predict(value float64) Prediction {
	s.mu.RLock()
	p, version := s.predictor, s.version
	s.mu.RUnlock()

	if p == nil {
		return Prediction{
			Label:        value > 0.5,
			Confidence:   0.5,
			ModelVersion: version,
			UsedFallback: true,
		}
	}

	label, conf := p.Predict(value)
	return Prediction{Label: label, Confidence: conf, ModelVersion: version}
}

// #endregion predict

// #region swap

// Swap installs a new predictor and returns the new version number.
func (s *Slot) Swap(p Predictor, trainedAt time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.predictor = p
	s.version++
	s.trainedAt = trainedAt
	return s.version
}

// #endregion swap

// #region accessors

// Version returns the current model version. 0 means never trained.
func (s *Slot) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// TrainedAt returns when the current model was trained. Zero if never.
func (s *Slot) TrainedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trainedAt
}

// Restore seeds the slot from persisted history after a restart, so the
// served version number keeps counting instead of resetting to zero.
func (s *Slot) Restore(version int, trainedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = version
	s.trainedAt = trainedAt
}

// #endregion accessors
