package ledger

// #region imports
import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// #endregion

// #region ledger-struct

// Ledger is the append-only store of observations. It is shared-write:
// HTTP handlers record and label concurrently with the monitor loop's reads.
type Ledger struct {
	mu    sync.RWMutex
	byID  map[string]*Observation
	order []string // insertion order, for chronological listing
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{byID: make(map[string]*Observation)}
}

// #endregion ledger-struct

// #region record

// Record appends a new observation and returns its id. Never fails.
func (l *Ledger) Record(value float64, predicted bool, confidence float64, modelVersion int) string {
	id := uuid.New().String()
	obs := &Observation{
		ID:             id,
		CreatedAt:      time.Now().UTC(),
		Value:          value,
		PredictedLabel: predicted,
		Confidence:     confidence,
		ModelVersion:   modelVersion,
	}

	l.mu.Lock()
	l.byID[id] = obs
	l.order = append(l.order, id)
	l.mu.Unlock()

	return id
}

// #endregion record

// #region attach-label

// AttachLabel sets the ground-truth label on an observation.
// Re-labeling an already labeled observation is allowed; last write wins.
func (l *Ledger) AttachLabel(id string, actual bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	obs, ok := l.byID[id]
	if !ok {
		return ErrNotFound
	}
	obs.ActualLabel = actual
	obs.Labeled = true
	return nil
}

// #endregion attach-label

// #region readers

// All returns a point-in-time copy of every observation in insertion order.
func (l *Ledger) All() []Observation {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Observation, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.byID[id])
	}
	return out
}

// Labeled returns a point-in-time copy of labeled observations in insertion order.
func (l *Ledger) Labeled() []Observation {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Observation
	for _, id := range l.order {
		if obs := l.byID[id]; obs.Labeled {
			out = append(out, *obs)
		}
	}
	return out
}

// Get returns a copy of one observation.
func (l *Ledger) Get(id string) (Observation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	obs, ok := l.byID[id]
	if !ok {
		return Observation{}, ErrNotFound
	}
	return *obs, nil
}

// Counts returns total and labeled observation counts.
func (l *Ledger) Counts() (total, labeled int) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total = len(l.order)
	for _, obs := range l.byID {
		if obs.Labeled {
			labeled++
		}
	}
	return total, labeled
}

// #endregion readers
