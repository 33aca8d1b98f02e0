// Package monitor runs the background control loop: every tick it reduces
// the ledger into a snapshot, feeds the accuracy series through the anomaly
// detectors, asks the decision engine whether to retrain, and routes any
// retraining through the governance gate.
package monitor

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/anomaly"
	"github.com/driftwatch/driftwatch/internal/decision"
	"github.com/driftwatch/driftwatch/internal/governance"
	"github.com/driftwatch/driftwatch/internal/ledger"
	"github.com/driftwatch/driftwatch/internal/model"
	"github.com/driftwatch/driftwatch/internal/perf"
	"github.com/driftwatch/driftwatch/internal/store"
)

// #endregion

// #region errors

var (
	// ErrNoSnapshot is returned when a manual decision check runs before
	// the loop has produced any snapshot.
	ErrNoSnapshot = errors.New("no performance snapshot recorded yet")

	// ErrInsufficientData is returned when a retrain is requested without
	// enough labeled observations.
	ErrInsufficientData = errors.New("insufficient labeled data for retraining")
)

// #endregion

// #region config

// Config holds monitor loop tuning.
type Config struct {
	Interval          time.Duration // tick cadence
	MinLabeled        int           // labeled count below which a tick is skipped
	MinRetrainLabeled int           // labeled count required to execute a retrain
	AccuracyWindow    int           // recent snapshots fed to the detectors
	AnomalyRecency    time.Duration // anomaly window passed to the decision engine
	LowConfCutoff     float64       // confidence below this counts as low
}

// DefaultConfig returns the mature-stage loop tuning.
func DefaultConfig() Config {
	return Config{
		Interval:          30 * time.Second,
		MinLabeled:        5,
		MinRetrainLabeled: 10,
		AccuracyWindow:    20,
		AnomalyRecency:    10 * time.Minute,
		LowConfCutoff:     0.6,
	}
}

// #endregion

// #region tick-result

// TickResult reports what one tick did. Returned by Tick for tests and
// offline replay; the running loop only logs it.
type TickResult struct {
	Skipped   bool
	Snapshot  perf.Snapshot
	Alerts    []anomaly.Alert
	Decision  *decision.Decision
	Retrained bool
	Blocked   bool
}

// #endregion

// #region loop-struct

// Loop is the single monitoring loop instance. Only one may run per process:
// it exclusively owns the scheduling cadence and the write path into the
// snapshot, decision, and retraining histories.
type Loop struct {
	config   Config
	ledger   *ledger.Ledger
	slot     *model.Slot
	learner  model.Learner
	detector *anomaly.Detector
	engine   *decision.Engine
	gate     *governance.Gate
	store    *store.Store
	history  *perf.History
	metrics  *Metrics
	logger   *zap.Logger
	clock    func() time.Time

	// retrainMu serializes retrainings: a manual request racing a tick must
	// not interleave reading the old version with fitting and swapping.
	retrainMu sync.Mutex
}

// Deps bundles the loop's collaborators.
type Deps struct {
	Ledger   *ledger.Ledger
	Slot     *model.Slot
	Learner  model.Learner
	Detector *anomaly.Detector
	Engine   *decision.Engine
	Gate     *governance.Gate
	Store    *store.Store
	History  *perf.History
	Metrics  *Metrics
	Logger   *zap.Logger
	Clock    func() time.Time // nil defaults to time.Now
}

// NewLoop creates a monitor loop.
func NewLoop(config Config, deps Deps) *Loop {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Loop{
		config:   config,
		ledger:   deps.Ledger,
		slot:     deps.Slot,
		learner:  deps.Learner,
		detector: deps.Detector,
		engine:   deps.Engine,
		gate:     deps.Gate,
		store:    deps.Store,
		history:  deps.History,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		clock:    clock,
	}
}

// #endregion loop-struct

// #region run

// Run executes ticks on a fixed timer until ctx is cancelled. Cancellation
// is observed at the wait point between ticks; an in-flight tick finishes
// before the loop exits. A failed tick never terminates the loop.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("monitor loop started", zap.Duration("interval", l.config.Interval))

	ticker := time.NewTicker(l.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("monitor loop stopped")
			return
		case <-ticker.C:
			l.runTick()
		}
	}
}

// runTick absorbs any fault inside one tick. A background loop dying
// silently is worse than one noisy failed tick.
func (l *Loop) runTick() {
	defer func() {
		if r := recover(); r != nil {
			l.metrics.TickFailures.Inc()
			l.logger.Error("monitor tick panicked", zap.Any("panic", r))
		}
	}()

	l.metrics.TicksTotal.Inc()
	result := l.Tick(l.clock())

	if result.Skipped {
		l.metrics.TicksSkipped.Inc()
		return
	}
	if result.Decision != nil {
		l.metrics.DecisionsTotal.WithLabelValues(verdict(result.Decision.ShouldRetrain)).Inc()
	}
}

func verdict(retrain bool) string {
	if retrain {
		return "retrain"
	}
	return "no_retrain"
}

// #endregion run

// #region tick

// Tick runs the five-step cycle once: gather, snapshot, detect, decide,
// govern & act. Steps execute strictly in that order.
func (l *Loop) Tick(now time.Time) TickResult {
	// 1. Gather. Too little labeled data is a valid steady state.
	all := l.ledger.All()
	labeled := l.ledger.Labeled()
	if len(labeled) < l.config.MinLabeled {
		l.logger.Info("tick skipped: not enough labeled data",
			zap.Int("labeled", len(labeled)), zap.Int("min", l.config.MinLabeled))
		return TickResult{Skipped: true}
	}

	// 2. Snapshot.
	snap := perf.Compute(all, labeled, l.slot.Version(), l.config.MinLabeled, l.config.LowConfCutoff, now)

	// 3. Detect over the recent accuracy window including this snapshot.
	series := l.history.AccuracySeries(l.config.AccuracyWindow - 1)
	if snap.AccuracyValid {
		series = append(series, snap.Accuracy)
	}
	alerts := l.detector.Detect(series, now)
	snap.AnomalyDetected = len(alerts) > 0

	l.history.Append(snap)
	if err := l.store.SaveSnapshot(snap); err != nil {
		l.logger.Error("persist snapshot failed", zap.Error(err))
	}
	l.metrics.CurrentAccuracy.Set(snap.Accuracy)
	l.metrics.LabeledCount.Set(float64(snap.LabeledCount))
	for _, a := range alerts {
		l.metrics.AnomaliesTotal.WithLabelValues(string(a.Kind), string(a.Severity)).Inc()
	}

	// 4. Decide.
	recent := l.detector.Recent(l.config.AnomalyRecency, now)
	dec := l.engine.Evaluate(snap, l.history.List(), recent, l.slot.TrainedAt(), now)
	if err := l.store.SaveDecision(dec); err != nil {
		l.logger.Error("persist decision failed", zap.Error(err))
	}

	result := TickResult{Snapshot: snap, Alerts: alerts, Decision: &dec}
	if !dec.ShouldRetrain {
		return result
	}

	// 5. Govern & act.
	if !l.gate.CanPerformAutonomousAction("retraining") {
		l.metrics.GovernanceBlocked.Inc()
		l.logger.Warn("retraining blocked by governance", zap.String("reason", dec.Reason))
		result.Blocked = true
		return result
	}

	if _, err := l.ExecuteRetraining(now, dec.Reason, governance.ActorSystem); err != nil {
		l.logger.Error("retraining failed", zap.Error(err))
		return result
	}
	result.Retrained = true
	return result
}

// #endregion tick

// #region check-retraining

// CheckRetraining runs the decision engine against the latest snapshot on
// demand. Read-only with respect to the model: it never retrains, so it is
// always allowed regardless of governance state.
func (l *Loop) CheckRetraining(now time.Time) (decision.Decision, error) {
	latest, ok := l.history.Latest()
	if !ok {
		return decision.Decision{}, ErrNoSnapshot
	}

	recent := l.detector.Recent(l.config.AnomalyRecency, now)
	dec := l.engine.Evaluate(latest, l.history.List(), recent, l.slot.TrainedAt(), now)
	if err := l.store.SaveDecision(dec); err != nil {
		l.logger.Error("persist decision failed", zap.Error(err))
	}
	return dec, nil
}

// #endregion check-retraining

// #region execute-retraining

// ExecuteRetraining fits a new model from the labeled observations, swaps
// it into the slot, and records the retraining. Callers are responsible for
// governance: the loop asks the gate first; the manual endpoint is
// human-initiated, so the kill switch does not apply to it.
func (l *Loop) ExecuteRetraining(now time.Time, trigger, actor string) (store.RetrainingRecord, error) {
	l.retrainMu.Lock()
	defer l.retrainMu.Unlock()

	labeled := l.ledger.Labeled()
	if len(labeled) < l.config.MinRetrainLabeled {
		return store.RetrainingRecord{}, fmt.Errorf("%w: %d < %d",
			ErrInsufficientData, len(labeled), l.config.MinRetrainLabeled)
	}

	examples := make([]model.Example, len(labeled))
	for i, o := range labeled {
		examples[i] = model.Example{Value: o.Value, Label: o.ActualLabel}
	}

	oldVersion := l.slot.Version()
	oldAccuracy := 0.0
	if latest, ok := l.history.Latest(); ok && latest.AccuracyValid {
		oldAccuracy = latest.Accuracy
	}

	predictor, err := l.learner.Fit(examples)
	if err != nil {
		l.gate.LogAudit(governance.EventRetrainingFailed,
			fmt.Sprintf("training failed: %v", err), actor,
			map[string]string{"trigger": trigger})
		return store.RetrainingRecord{}, fmt.Errorf("fit: %w", err)
	}

	newVersion := l.slot.Swap(predictor, now)
	l.engine.RecordRetraining(now)

	rec := store.RetrainingRecord{
		Timestamp:    now,
		OldVersion:   oldVersion,
		NewVersion:   newVersion,
		OldAccuracy:  oldAccuracy,
		NewAccuracy:  trainingAccuracy(predictor, examples),
		ExampleCount: len(examples),
		Trigger:      trigger,
	}
	if err := l.store.SaveRetraining(rec); err != nil {
		l.logger.Error("persist retraining failed", zap.Error(err))
	}

	l.metrics.RetrainingsTotal.Inc()
	l.gate.LogAudit(governance.EventRetrainingCompleted,
		fmt.Sprintf("model retrained: v%d -> v%d on %d examples", oldVersion, newVersion, len(examples)),
		actor, map[string]string{
			"trigger":     trigger,
			"old_version": fmt.Sprintf("%d", oldVersion),
			"new_version": fmt.Sprintf("%d", newVersion),
		})
	l.logger.Info("model retrained",
		zap.Int("old_version", oldVersion),
		zap.Int("new_version", newVersion),
		zap.Int("examples", len(examples)),
		zap.String("trigger", trigger))

	return rec, nil
}

// trainingAccuracy scores a freshly fit predictor against its own training
// set. A proper holdout needs labels the service has not seen yet.
func trainingAccuracy(p model.Predictor, examples []model.Example) float64 {
	if len(examples) == 0 {
		return 0
	}
	correct := 0
	for _, ex := range examples {
		if label, _ := p.Predict(ex.Value); label == ex.Label {
			correct++
		}
	}
	return float64(correct) / float64(len(examples))
}

// #endregion execute-retraining
