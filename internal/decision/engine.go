// Package decision scores retraining pressure. Several moderate signals
// must jointly clear the threshold: a single noisy metric cannot trigger a
// retrain on its own, but co-occurring weak signals react decisively.
package decision

// #region imports
import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/anomaly"
	"github.com/driftwatch/driftwatch/internal/perf"
)

// #endregion

// #region engine-struct

// Engine combines the hard gates and the weighted factor score into an
// explainable retraining decision. The only mutable state is the remembered
// time of the last successful retraining; the engine itself never retrains.
type Engine struct {
	config Config
	logger *zap.Logger

	mu            sync.Mutex
	lastRetrainAt time.Time
	history       []Decision
}

// NewEngine creates a decision engine.
func NewEngine(config Config, logger *zap.Logger) *Engine {
	return &Engine{config: config, logger: logger}
}

// #endregion engine-struct

// #region evaluate

// Evaluate checks hard gates first, then scores the weighted factors.
// Identical inputs and identical last-retraining time yield identical
// output; there is no internal randomness. The decision is appended to the
// engine's history before returning.
func (e *Engine) Evaluate(
	current perf.Snapshot,
	history []perf.Snapshot,
	anomalies []anomaly.Alert,
	modelTrainedAt time.Time,
	now time.Time,
) Decision {
	// Factors are always computed so a gated decision still explains what
	// the score would have been.
	score, triggers, factors := e.scoreFactors(current, history, anomalies, modelTrainedAt, now)

	dec := Decision{
		Timestamp:    now,
		Score:        score,
		Triggers:     triggers,
		FactorScores: factors,
	}

	// --- Hard gate pass ---

	if current.LabeledCount < e.config.MinLabeled {
		dec.Reason = fmt.Sprintf("insufficient labeled data: %d < %d required",
			current.LabeledCount, e.config.MinLabeled)
		e.record(dec)
		return dec
	}

	e.mu.Lock()
	lastRetrain := e.lastRetrainAt
	e.mu.Unlock()

	// First-ever retraining is exempt from the cooldown.
	if !lastRetrain.IsZero() {
		if elapsed := now.Sub(lastRetrain); elapsed < e.config.Cooldown {
			dec.Reason = fmt.Sprintf("rate limited: last retraining %s ago, cooldown %s",
				elapsed.Round(time.Second), e.config.Cooldown)
			e.record(dec)
			return dec
		}
	}

	// --- Threshold ---

	if score >= e.config.Threshold {
		dec.ShouldRetrain = true
		dec.Reason = fmt.Sprintf("retraining recommended: score %.2f >= %.2f (%d triggers)",
			score, e.config.Threshold, len(triggers))
	} else {
		dec.Reason = fmt.Sprintf("score %.2f below threshold %.2f", score, e.config.Threshold)
	}

	e.record(dec)
	return dec
}

// #endregion evaluate

// #region score-factors

func (e *Engine) scoreFactors(
	current perf.Snapshot,
	history []perf.Snapshot,
	anomalies []anomaly.Alert,
	modelTrainedAt time.Time,
	now time.Time,
) (float64, []string, map[string]float64) {
	w := e.config.Weights
	factors := map[string]float64{
		FactorDegradation:   0,
		FactorLowConfidence: 0,
		FactorDataGrowth:    0,
		FactorAnomaly:       0,
		FactorModelAge:      0,
	}
	var triggers []string

	// 1. Accuracy degradation vs baseline from the earliest snapshots.
	if baseline, ok := baselineAccuracy(history, e.config.BaselineWindow); ok && current.AccuracyValid {
		if current.Accuracy < e.config.DegradationRatio*baseline {
			factors[FactorDegradation] = w.Degradation
			triggers = append(triggers, fmt.Sprintf(
				"accuracy degraded: %.2f below %.0f%% of baseline %.2f",
				current.Accuracy, e.config.DegradationRatio*100, baseline))
		}
	}

	// 2. Low-confidence prediction rate.
	if current.LabeledCount > 0 {
		rate := float64(current.LowConfidenceCount) / float64(current.LabeledCount)
		if rate > e.config.LowConfTrigger {
			factors[FactorLowConfidence] = w.LowConfidence
			triggers = append(triggers, fmt.Sprintf(
				"low-confidence rate %.0f%% exceeds %.0f%%",
				rate*100, e.config.LowConfTrigger*100))
		}
	}

	// 3. Labeled data growth vs the first snapshot's count.
	if len(history) > 0 {
		base := history[0].LabeledCount
		if base > 0 {
			growth := float64(current.LabeledCount-base) / float64(base)
			if growth >= e.config.GrowthTrigger {
				factors[FactorDataGrowth] = w.DataGrowth
				triggers = append(triggers, fmt.Sprintf(
					"labeled data grew %.0f%% since baseline (%d -> %d)",
					growth*100, base, current.LabeledCount))
			}
		}
	}

	// 4. Anomaly signal: High severity carries the full weight, anything
	// else in the window a reduced partial weight.
	if len(anomalies) > 0 {
		high := false
		for _, a := range anomalies {
			if a.Severity == anomaly.SeverityHigh {
				high = true
				break
			}
		}
		if high {
			factors[FactorAnomaly] = w.Anomaly
			triggers = append(triggers, fmt.Sprintf(
				"high-severity anomaly in recent window (%d total)", len(anomalies)))
		} else {
			factors[FactorAnomaly] = w.AnomalyPartial
			triggers = append(triggers, fmt.Sprintf(
				"%d medium-severity anomalies in recent window", len(anomalies)))
		}
	}

	// 5. Model age. A model that has never been trained counts as stale.
	if modelTrainedAt.IsZero() {
		factors[FactorModelAge] = w.ModelAge
		triggers = append(triggers, "model has never been trained")
	} else if age := now.Sub(modelTrainedAt); age > e.config.MaxModelAge {
		factors[FactorModelAge] = w.ModelAge
		triggers = append(triggers, fmt.Sprintf(
			"model age %s exceeds maximum %s",
			age.Round(time.Minute), e.config.MaxModelAge))
	}

	score := 0.0
	for _, v := range factors {
		score += v
	}
	if score > 1 {
		score = 1
	}
	// Weight sums like 0.30+0.20 accumulate to 0.49999... in binary float;
	// round to microweight precision so the closed lower bound at the
	// threshold behaves as written.
	score = math.Round(score*1e6) / 1e6
	return score, triggers, factors
}

// baselineAccuracy averages the earliest window snapshots that carry a
// valid accuracy.
func baselineAccuracy(history []perf.Snapshot, window int) (float64, bool) {
	var sum float64
	var count int
	for _, s := range history {
		if !s.AccuracyValid {
			continue
		}
		sum += s.Accuracy
		count++
		if count == window {
			break
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// #endregion score-factors

// #region record

func (e *Engine) record(dec Decision) {
	e.mu.Lock()
	e.history = append(e.history, dec)
	e.mu.Unlock()

	e.logger.Info("retraining decision",
		zap.Bool("should_retrain", dec.ShouldRetrain),
		zap.Float64("score", dec.Score),
		zap.Int("triggers", len(dec.Triggers)),
		zap.String("reason", dec.Reason))
}

// #endregion record

// #region retraining-state

// RecordRetraining remembers when a retraining actually completed. Called
// by the monitor loop after a successful governed retrain, never by the
// engine itself.
func (e *Engine) RecordRetraining(at time.Time) {
	e.mu.Lock()
	e.lastRetrainAt = at
	e.mu.Unlock()
}

// LastRetrainAt returns the remembered last retraining time. Zero if none.
func (e *Engine) LastRetrainAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRetrainAt
}

// #endregion retraining-state

// #region history

// History returns a copy of all decisions, oldest first.
func (e *Engine) History() []Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Decision, len(e.history))
	copy(out, e.history)
	return out
}

// #endregion history
