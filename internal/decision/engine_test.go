package decision

// #region imports
import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/anomaly"
	"github.com/driftwatch/driftwatch/internal/perf"
)

// #endregion

// #region helpers

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func baselineHistory(accuracy float64, labeled, n int) []perf.Snapshot {
	snaps := make([]perf.Snapshot, n)
	for i := range snaps {
		snaps[i] = perf.Snapshot{
			Accuracy:      accuracy,
			AccuracyValid: true,
			LabeledCount:  labeled,
		}
	}
	return snaps
}

func highAlert() []anomaly.Alert {
	return []anomaly.Alert{{
		Timestamp: testNow,
		Kind:      anomaly.KindChangePoint,
		Severity:  anomaly.SeverityHigh,
	}}
}

// #endregion helpers

// #region weighted-score

// Degraded accuracy, elevated low-confidence rate and a High anomaly
// co-occur: three factors combine to 0.75 and cross the threshold.
func TestEvaluateCombinedPressure(t *testing.T) {
	e := NewEngine(DefaultConfig(), zap.NewNop())

	current := perf.Snapshot{
		Accuracy:           0.60,
		AccuracyValid:      true,
		LabeledCount:       25,
		LowConfidenceCount: 8, // 32% > 30% trigger
	}
	history := baselineHistory(1.0, 20, 5)

	dec := e.Evaluate(current, history, highAlert(), testNow.Add(-36*time.Hour), testNow)

	assert.True(t, dec.ShouldRetrain)
	assert.InDelta(t, 0.75, dec.Score, 1e-9)
	assert.InDelta(t, 0.30, dec.FactorScores[FactorDegradation], 1e-9)
	assert.InDelta(t, 0.25, dec.FactorScores[FactorLowConfidence], 1e-9)
	assert.InDelta(t, 0.20, dec.FactorScores[FactorAnomaly], 1e-9)
	assert.Zero(t, dec.FactorScores[FactorDataGrowth], "25 vs 20 is below 50% growth")
	assert.Zero(t, dec.FactorScores[FactorModelAge], "36h is inside the age limit")
	assert.Len(t, dec.Triggers, 3)
}

func TestEvaluateMediumAnomalyPartialWeight(t *testing.T) {
	e := NewEngine(DefaultConfig(), zap.NewNop())

	current := perf.Snapshot{Accuracy: 0.95, AccuracyValid: true, LabeledCount: 25}
	alerts := []anomaly.Alert{{Severity: anomaly.SeverityMedium, Kind: anomaly.KindSpike}}

	dec := e.Evaluate(current, baselineHistory(0.95, 20, 5), alerts, testNow.Add(-time.Hour), testNow)

	assert.False(t, dec.ShouldRetrain)
	assert.InDelta(t, 0.10, dec.FactorScores[FactorAnomaly], 1e-9)
}

func TestEvaluateNeverTrainedCountsAsStale(t *testing.T) {
	e := NewEngine(DefaultConfig(), zap.NewNop())

	current := perf.Snapshot{Accuracy: 0.95, AccuracyValid: true, LabeledCount: 25}
	dec := e.Evaluate(current, baselineHistory(0.95, 20, 5), nil, time.Time{}, testNow)

	assert.InDelta(t, 0.10, dec.FactorScores[FactorModelAge], 1e-9)
}

func TestEvaluateScoreClampedToOne(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights = Weights{
		Degradation: 0.5, LowConfidence: 0.5, DataGrowth: 0.5,
		Anomaly: 0.5, AnomalyPartial: 0.2, ModelAge: 0.5,
	}
	e := NewEngine(cfg, zap.NewNop())

	current := perf.Snapshot{
		Accuracy:           0.10,
		AccuracyValid:      true,
		LabeledCount:       40,
		LowConfidenceCount: 30,
	}
	dec := e.Evaluate(current, baselineHistory(1.0, 20, 5), highAlert(), time.Time{}, testNow)

	assert.Equal(t, 1.0, dec.Score)
	assert.True(t, dec.ShouldRetrain)
}

// #endregion weighted-score

// #region hard-gates

// The labeled-data gate wins over any factor pressure: the score is still
// reported, the verdict is not.
func TestEvaluateLabeledGatePrecedesScore(t *testing.T) {
	e := NewEngine(DefaultConfig(), zap.NewNop())

	current := perf.Snapshot{
		Accuracy:           0.10,
		AccuracyValid:      true,
		LabeledCount:       5,
		LowConfidenceCount: 5,
	}
	dec := e.Evaluate(current, baselineHistory(1.0, 20, 5), highAlert(), time.Time{}, testNow)

	assert.False(t, dec.ShouldRetrain)
	assert.Contains(t, dec.Reason, "insufficient labeled data")
	assert.InDelta(t, 0.85, dec.Score, 1e-9, "factors are still explained under a gate")
}

func TestEvaluateCooldown(t *testing.T) {
	e := NewEngine(DefaultConfig(), zap.NewNop())

	current := perf.Snapshot{
		Accuracy:           0.50,
		AccuracyValid:      true,
		LabeledCount:       25,
		LowConfidenceCount: 10,
	}
	history := baselineHistory(1.0, 20, 5)

	// First-ever retraining is exempt from the cooldown.
	dec := e.Evaluate(current, history, highAlert(), testNow.Add(-time.Hour), testNow)
	require.True(t, dec.ShouldRetrain)

	e.RecordRetraining(testNow.Add(-30 * time.Minute))
	dec = e.Evaluate(current, history, highAlert(), testNow.Add(-time.Hour), testNow)
	assert.False(t, dec.ShouldRetrain)
	assert.Contains(t, dec.Reason, "rate limited")

	// Past the cooldown the same pressure recommends again.
	e.RecordRetraining(testNow.Add(-2 * time.Hour))
	dec = e.Evaluate(current, history, highAlert(), testNow.Add(-time.Hour), testNow)
	assert.True(t, dec.ShouldRetrain)
}

// #endregion hard-gates

// #region threshold-boundary

// The threshold is a closed lower bound: exactly 0.5 recommends, a hair
// below does not.
func TestEvaluateThresholdBoundary(t *testing.T) {
	current := perf.Snapshot{Accuracy: 0.50, AccuracyValid: true, LabeledCount: 25}
	history := baselineHistory(1.0, 20, 5)
	trained := testNow.Add(-time.Hour)

	cfg := DefaultConfig()
	cfg.Weights = Weights{Degradation: 0.5}
	dec := NewEngine(cfg, zap.NewNop()).Evaluate(current, history, nil, trained, testNow)
	assert.Equal(t, 0.5, dec.Score)
	assert.True(t, dec.ShouldRetrain)

	cfg.Weights = Weights{Degradation: 0.499999}
	dec = NewEngine(cfg, zap.NewNop()).Evaluate(current, history, nil, trained, testNow)
	assert.False(t, dec.ShouldRetrain)
}

// #endregion threshold-boundary

// #region determinism

func TestEvaluateDeterministic(t *testing.T) {
	e := NewEngine(DefaultConfig(), zap.NewNop())

	current := perf.Snapshot{
		Accuracy:           0.60,
		AccuracyValid:      true,
		LabeledCount:       25,
		LowConfidenceCount: 8,
	}
	history := baselineHistory(1.0, 20, 5)
	trained := testNow.Add(-36 * time.Hour)

	a := e.Evaluate(current, history, highAlert(), trained, testNow)
	b := e.Evaluate(current, history, highAlert(), trained, testNow)
	assert.Equal(t, a, b)
	assert.Len(t, e.History(), 2, "every evaluation is recorded")
}

// #endregion determinism
