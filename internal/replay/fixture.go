package replay

// #region imports
import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/driftwatch/driftwatch/internal/perf"
)

// #endregion

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string            `json:"description"`
	Config      FixtureConfig     `json:"config"`
	Snapshots   []FixtureSnapshot `json:"snapshots"`
	Expected    []ExpectedVerdict `json:"expected"`
}

// FixtureConfig overrides the default tuning. Zero values fall back to
// the defaults.
type FixtureConfig struct {
	MinHistory     int     `json:"min_history"`
	Confidence     float64 `json:"confidence"`
	Threshold      float64 `json:"threshold"`
	AccuracyWindow int     `json:"accuracy_window"`
}

// FixtureSnapshot mirrors perf.Snapshot with JSON tags. Timestamps are
// offsets in seconds from the fixture epoch so fixtures stay readable.
type FixtureSnapshot struct {
	OffsetSeconds      int     `json:"offset_seconds"`
	TotalObservations  int     `json:"total_observations"`
	LabeledCount       int     `json:"labeled_count"`
	Accuracy           float64 `json:"accuracy"`
	AccuracyValid      bool    `json:"accuracy_valid"`
	ModelVersion       int     `json:"model_version"`
	AvgConfidence      float64 `json:"avg_confidence"`
	LowConfidenceCount int     `json:"low_confidence_count"`
}

// ExpectedVerdict is the expected decision for one snapshot index.
type ExpectedVerdict struct {
	Index         int  `json:"index"`
	ShouldRetrain bool `json:"should_retrain"`
}

// #endregion fixture-types

// #region load

// LoadFixture reads and parses a fixture file.
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	return f, nil
}

// #endregion load

// #region run

// Mismatch records one divergence between expected and replayed verdicts.
type Mismatch struct {
	Index    int
	Expected bool
	Got      bool
	Reason   string
}

// RunFixture replays a fixture and compares verdicts against expectations.
func RunFixture(f Fixture) ([]Result, Summary, []Mismatch) {
	config := DefaultConfig()
	if f.Config.MinHistory > 0 {
		config.Anomaly.MinHistory = f.Config.MinHistory
	}
	if f.Config.Confidence > 0 {
		config.Anomaly.Confidence = f.Config.Confidence
	}
	if f.Config.Threshold > 0 {
		config.Decision.Threshold = f.Config.Threshold
	}
	if f.Config.AccuracyWindow > 0 {
		config.AccuracyWindow = f.Config.AccuracyWindow
	}

	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	snapshots := make([]perf.Snapshot, len(f.Snapshots))
	for i, fs := range f.Snapshots {
		snapshots[i] = perf.Snapshot{
			Timestamp:          epoch.Add(time.Duration(fs.OffsetSeconds) * time.Second),
			TotalObservations:  fs.TotalObservations,
			LabeledCount:       fs.LabeledCount,
			Accuracy:           fs.Accuracy,
			AccuracyValid:      fs.AccuracyValid,
			ModelVersion:       fs.ModelVersion,
			AvgConfidence:      fs.AvgConfidence,
			LowConfidenceCount: fs.LowConfidenceCount,
		}
	}

	results, summary := Replay(snapshots, config)

	var mismatches []Mismatch
	for _, exp := range f.Expected {
		if exp.Index < 0 || exp.Index >= len(results) {
			mismatches = append(mismatches, Mismatch{
				Index: exp.Index, Expected: exp.ShouldRetrain,
				Reason: "index out of range",
			})
			continue
		}
		got := results[exp.Index].Decision
		if got.ShouldRetrain != exp.ShouldRetrain {
			mismatches = append(mismatches, Mismatch{
				Index:    exp.Index,
				Expected: exp.ShouldRetrain,
				Got:      got.ShouldRetrain,
				Reason:   got.Reason,
			})
		}
	}

	return results, summary, mismatches
}

// #endregion run
