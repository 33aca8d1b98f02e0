// Package perf reduces the observation ledger into point-in-time
// performance snapshots and keeps their chronological history.
package perf

// #region imports
import (
	"sync"
	"time"

	"github.com/driftwatch/driftwatch/internal/ledger"
)

// #endregion

// #region snapshot

// Snapshot is an immutable reduction of the ledger at one instant.
type Snapshot struct {
	Timestamp          time.Time
	TotalObservations  int
	LabeledCount       int
	Accuracy           float64
	AccuracyValid      bool // false when LabeledCount is below the minimum
	ModelVersion       int
	AvgConfidence      float64
	LowConfidenceCount int
	AnomalyDetected    bool
}

// #endregion snapshot

// #region compute

// Compute builds a snapshot from point-in-time ledger copies. Accuracy is
// marked invalid, not zero-but-plausible, when fewer than minLabeled
// observations carry ground truth.
func Compute(all, labeled []ledger.Observation, modelVersion, minLabeled int, lowConfCutoff float64, now time.Time) Snapshot {
	snap := Snapshot{
		Timestamp:         now,
		TotalObservations: len(all),
		LabeledCount:      len(labeled),
		ModelVersion:      modelVersion,
	}

	var confSum float64
	for _, o := range all {
		confSum += o.Confidence
	}
	if len(all) > 0 {
		snap.AvgConfidence = confSum / float64(len(all))
	}

	correct := 0
	for _, o := range labeled {
		if o.Correct() {
			correct++
		}
		if o.Confidence < lowConfCutoff {
			snap.LowConfidenceCount++
		}
	}
	if len(labeled) > 0 && len(labeled) >= minLabeled {
		snap.Accuracy = float64(correct) / float64(len(labeled))
		snap.AccuracyValid = true
	}

	return snap
}

// #endregion compute

// #region history

// History is the ordered, append-only snapshot list. Insertion order is
// chronological and significant: baselines come from the earliest entries,
// detector windows from the most recent.
type History struct {
	mu    sync.RWMutex
	snaps []Snapshot
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Seed loads persisted snapshots, oldest first. Called once at startup.
func (h *History) Seed(snaps []Snapshot) {
	h.mu.Lock()
	h.snaps = append(h.snaps, snaps...)
	h.mu.Unlock()
}

// Append adds a snapshot to the end of the history.
func (h *History) Append(s Snapshot) {
	h.mu.Lock()
	h.snaps = append(h.snaps, s)
	h.mu.Unlock()
}

// List returns a copy of the full history, oldest first.
func (h *History) List() []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Snapshot, len(h.snaps))
	copy(out, h.snaps)
	return out
}

// Latest returns the newest snapshot, if any.
func (h *History) Latest() (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.snaps) == 0 {
		return Snapshot{}, false
	}
	return h.snaps[len(h.snaps)-1], true
}

// Len returns the number of stored snapshots.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.snaps)
}

// AccuracySeries returns the accuracy values of the most recent snapshots
// with valid accuracy, oldest first, capped at window entries.
func (h *History) AccuracySeries(window int) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var series []float64
	for _, s := range h.snaps {
		if s.AccuracyValid {
			series = append(series, s.Accuracy)
		}
	}
	if window > 0 && len(series) > window {
		series = series[len(series)-window:]
	}
	return series
}

// #endregion history
