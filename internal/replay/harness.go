// Package replay re-runs recorded snapshot histories through the anomaly
// detectors and the decision engine, entirely in memory. Because the
// pipeline is deterministic, replaying production data must reproduce the
// decisions production made.
package replay

// #region imports
import (
	"time"

	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/anomaly"
	"github.com/driftwatch/driftwatch/internal/decision"
	"github.com/driftwatch/driftwatch/internal/perf"
)

// #endregion

// #region config

// Config bundles the detector and engine tuning for a replay run.
type Config struct {
	Anomaly        anomaly.Config
	Decision       decision.Config
	AccuracyWindow int           // recent snapshots fed to the detectors
	AnomalyRecency time.Duration // anomaly window passed to the engine
}

// DefaultConfig mirrors the mature-stage service tuning.
func DefaultConfig() Config {
	return Config{
		Anomaly:        anomaly.DefaultConfig(),
		Decision:       decision.DefaultConfig(),
		AccuracyWindow: 20,
		AnomalyRecency: 10 * time.Minute,
	}
}

// #endregion

// #region results

// Result is the replayed outcome for one snapshot.
type Result struct {
	Index    int
	Decision decision.Decision
	Alerts   []anomaly.Alert
}

// Summary aggregates a replay run.
type Summary struct {
	TotalSteps      int
	RetrainVerdicts int
	TotalAlerts     int
}

// #endregion

// #region replay

// Replay feeds snapshots through the pipeline in order, simulating the
// monitor loop's detect and decide steps. Retrain verdicts advance the
// simulated last-retraining time so the cooldown gate behaves as it did
// in production.
func Replay(snapshots []perf.Snapshot, config Config) ([]Result, Summary) {
	logger := zap.NewNop()
	detector := anomaly.NewDetector(config.Anomaly, logger)
	engine := decision.NewEngine(config.Decision, logger)

	var history []perf.Snapshot
	var trainedAt time.Time
	results := make([]Result, 0, len(snapshots))
	summary := Summary{TotalSteps: len(snapshots)}

	for i, snap := range snapshots {
		now := snap.Timestamp

		series := accuracySeries(history, config.AccuracyWindow-1)
		if snap.AccuracyValid {
			series = append(series, snap.Accuracy)
		}
		alerts := detector.Detect(series, now)
		snap.AnomalyDetected = len(alerts) > 0
		history = append(history, snap)

		recent := detector.Recent(config.AnomalyRecency, now)
		dec := engine.Evaluate(snap, history, recent, trainedAt, now)
		if dec.ShouldRetrain {
			summary.RetrainVerdicts++
			engine.RecordRetraining(now)
			trainedAt = now
		}
		summary.TotalAlerts += len(alerts)

		results = append(results, Result{Index: i, Decision: dec, Alerts: alerts})
	}

	return results, summary
}

// accuracySeries extracts valid accuracy values, capped at window entries.
func accuracySeries(history []perf.Snapshot, window int) []float64 {
	var series []float64
	for _, s := range history {
		if s.AccuracyValid {
			series = append(series, s.Accuracy)
		}
	}
	if window > 0 && len(series) > window {
		series = series[len(series)-window:]
	}
	return series
}

// #endregion replay
