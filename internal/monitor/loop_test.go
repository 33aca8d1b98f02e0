package monitor

// #region imports
import (
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

// #region harness

var loopNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type env struct {
	loop    *Loop
	ledger  *ledger.Ledger
	slot    *model.Slot
	engine  *decision.Engine
	gate    *governance.Gate
	store   *store.Store
	history *perf.History
	metrics *Metrics
}

func newEnv(t *testing.T, learner model.Learner) *env {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "driftwatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := zap.NewNop()
	e := &env{
		ledger:  ledger.New(),
		slot:    model.NewSlot(),
		engine:  decision.NewEngine(decision.DefaultConfig(), logger),
		gate:    governance.NewGate(logger, st),
		store:   st,
		history: perf.NewHistory(),
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	e.loop = NewLoop(DefaultConfig(), Deps{
		Ledger:   e.ledger,
		Slot:     e.slot,
		Learner:  learner,
		Detector: anomaly.NewDetector(anomaly.DefaultConfig(), logger),
		Engine:   e.engine,
		Gate:     e.gate,
		Store:    st,
		History:  e.history,
		Metrics:  e.metrics,
		Logger:   logger,
		Clock:    func() time.Time { return loopNow },
	})
	return e
}

// seedPressure arranges a state where retraining pressure clears the
// threshold: a perfect-accuracy baseline and a ledger full of wrong,
// low-confidence predictions.
func (e *env) seedPressure(t *testing.T) {
	t.Helper()

	baseline := make([]perf.Snapshot, 5)
	for i := range baseline {
		baseline[i] = perf.Snapshot{Accuracy: 1.0, AccuracyValid: true, LabeledCount: 20}
	}
	e.history.Seed(baseline)

	for i := 0; i < 8; i++ {
		id := e.ledger.Record(0.8, false, 0.4, 0)
		require.NoError(t, e.ledger.AttachLabel(id, true))
	}
	for i := 0; i < 7; i++ {
		id := e.ledger.Record(0.2, true, 0.4, 0)
		require.NoError(t, e.ledger.AttachLabel(id, false))
	}
}

type errLearner struct{}

func (errLearner) Fit([]model.Example) (model.Predictor, error) {
	return nil, errors.New("trainer offline")
}

type panicLearner struct{}

func (panicLearner) Fit([]model.Example) (model.Predictor, error) {
	panic("trainer crashed")
}

// #endregion harness

// #region tick

func TestTickSkippedBelowMinLabeled(t *testing.T) {
	e := newEnv(t, model.ThresholdLearner{})

	result := e.loop.Tick(loopNow)
	assert.True(t, result.Skipped)

	snaps, err := e.store.ListSnapshots(0)
	require.NoError(t, err)
	assert.Empty(t, snaps, "a skipped tick records nothing")
}

func TestTickHealthyModelDoesNotRetrain(t *testing.T) {
	e := newEnv(t, model.ThresholdLearner{})
	for i := 0; i < 12; i++ {
		id := e.ledger.Record(0.9, true, 0.95, 0)
		require.NoError(t, e.ledger.AttachLabel(id, true))
	}

	result := e.loop.Tick(loopNow)

	assert.False(t, result.Skipped)
	assert.True(t, result.Snapshot.AccuracyValid)
	assert.InDelta(t, 1.0, result.Snapshot.Accuracy, 1e-9)
	require.NotNil(t, result.Decision)
	assert.False(t, result.Decision.ShouldRetrain)
	assert.False(t, result.Retrained)

	snaps, err := e.store.ListSnapshots(0)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
	decs, err := e.store.ListDecisions(0)
	require.NoError(t, err)
	assert.Len(t, decs, 1)
}

func TestTickRetrainsUnderPressure(t *testing.T) {
	e := newEnv(t, model.ThresholdLearner{})
	e.seedPressure(t)

	result := e.loop.Tick(loopNow)

	require.NotNil(t, result.Decision)
	assert.True(t, result.Decision.ShouldRetrain)
	assert.True(t, result.Retrained)
	assert.False(t, result.Blocked)
	assert.Equal(t, 1, e.slot.Version())
	assert.Equal(t, loopNow, e.engine.LastRetrainAt())

	recs, err := e.store.ListRetrainings(0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 0, recs[0].OldVersion)
	assert.Equal(t, 1, recs[0].NewVersion)
	assert.Equal(t, 15, recs[0].ExampleCount)
	assert.InDelta(t, 0.0, recs[0].OldAccuracy, 1e-9)
	assert.InDelta(t, 1.0, recs[0].NewAccuracy, 1e-9, "the boundary separates the examples cleanly")

	completed := 0
	for _, ev := range e.gate.AuditLog(0) {
		if ev.Type == governance.EventRetrainingCompleted {
			completed++
		}
	}
	assert.Equal(t, 1, completed)
}

// #endregion tick

// #region governance

func TestTickBlockedByKillSwitch(t *testing.T) {
	e := newEnv(t, model.ThresholdLearner{})
	e.seedPressure(t)
	e.gate.SetAutonomousEnabled(false, governance.ActorAdmin)

	result := e.loop.Tick(loopNow)

	require.NotNil(t, result.Decision)
	assert.True(t, result.Decision.ShouldRetrain, "the verdict is unchanged, only the action is blocked")
	assert.True(t, result.Blocked)
	assert.False(t, result.Retrained)
	assert.Equal(t, 0, e.slot.Version())

	recs, err := e.store.ListRetrainings(0)
	require.NoError(t, err)
	assert.Empty(t, recs)

	overrides := 0
	for _, ev := range e.gate.AuditLog(0) {
		if ev.Type == governance.EventGovernanceOverride {
			overrides++
		}
	}
	assert.Equal(t, 1, overrides)
}

// A human-initiated retrain does not pass through the kill switch.
func TestManualRetrainBypassesKillSwitch(t *testing.T) {
	e := newEnv(t, model.ThresholdLearner{})
	e.seedPressure(t)
	e.gate.SetAutonomousEnabled(false, governance.ActorAdmin)

	rec, err := e.loop.ExecuteRetraining(loopNow, "manual", governance.ActorAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.NewVersion)
	assert.Equal(t, "manual", rec.Trigger)
}

// #endregion governance

// #region cooldown

// A second tick right after a retrain keeps the pressure but hits the
// cooldown: the verdict flips to no, the model stays put.
func TestTickCooldownAfterRetrain(t *testing.T) {
	e := newEnv(t, model.ThresholdLearner{})
	e.seedPressure(t)

	first := e.loop.Tick(loopNow)
	require.True(t, first.Retrained)

	second := e.loop.Tick(loopNow.Add(30 * time.Second))
	require.NotNil(t, second.Decision)
	assert.False(t, second.Decision.ShouldRetrain)
	assert.Contains(t, second.Decision.Reason, "rate limited")
	assert.False(t, second.Retrained)
	assert.Equal(t, 1, e.slot.Version())
}

// #endregion cooldown

// #region resilience

func TestTickSurvivesLearnerError(t *testing.T) {
	e := newEnv(t, errLearner{})
	e.seedPressure(t)

	result := e.loop.Tick(loopNow)
	require.NotNil(t, result.Decision)
	assert.True(t, result.Decision.ShouldRetrain)
	assert.False(t, result.Retrained)
	assert.Equal(t, 0, e.slot.Version())

	failed := 0
	for _, ev := range e.gate.AuditLog(0) {
		if ev.Type == governance.EventRetrainingFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	// The loop keeps ticking after the failure.
	next := e.loop.Tick(loopNow.Add(30 * time.Second))
	assert.False(t, next.Skipped)
}

func TestRunTickAbsorbsPanic(t *testing.T) {
	e := newEnv(t, panicLearner{})
	e.seedPressure(t)

	require.NotPanics(t, func() { e.loop.runTick() })
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.TickFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.TicksTotal))

	// And the next tick still runs.
	require.NotPanics(t, func() { e.loop.runTick() })
	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.TickFailures))
}

// #endregion resilience

// #region on-demand

func TestCheckRetrainingWithoutSnapshot(t *testing.T) {
	e := newEnv(t, model.ThresholdLearner{})

	_, err := e.loop.CheckRetraining(loopNow)
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestCheckRetrainingUsesLatestSnapshot(t *testing.T) {
	e := newEnv(t, model.ThresholdLearner{})
	for i := 0; i < 12; i++ {
		id := e.ledger.Record(0.9, true, 0.95, 0)
		require.NoError(t, e.ledger.AttachLabel(id, true))
	}
	first := e.loop.Tick(loopNow)
	require.False(t, first.Skipped)

	dec, err := e.loop.CheckRetraining(loopNow.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, dec.ShouldRetrain)

	decs, err := e.store.ListDecisions(0)
	require.NoError(t, err)
	assert.Len(t, decs, 2, "on-demand checks are persisted like tick decisions")
}

// Concurrent retrains serialize: each completed retrain sees the version
// the previous one installed, so the recorded old/new versions form an
// unbroken chain.
func TestConcurrentRetrainsSerialize(t *testing.T) {
	e := newEnv(t, model.ThresholdLearner{})
	e.seedPressure(t)

	const retrains = 4
	recs := make([]store.RetrainingRecord, retrains)
	var wg sync.WaitGroup
	for i := 0; i < retrains; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := e.loop.ExecuteRetraining(
				loopNow.Add(time.Duration(i)*time.Second), "manual", governance.ActorAdmin)
			require.NoError(t, err)
			recs[i] = rec
		}(i)
	}
	wg.Wait()

	sort.Slice(recs, func(i, j int) bool { return recs[i].NewVersion < recs[j].NewVersion })
	for i, rec := range recs {
		assert.Equal(t, i, rec.OldVersion)
		assert.Equal(t, i+1, rec.NewVersion)
	}
	assert.Equal(t, retrains, e.slot.Version())
}

func TestExecuteRetrainingInsufficientData(t *testing.T) {
	e := newEnv(t, model.ThresholdLearner{})
	for i := 0; i < 3; i++ {
		id := e.ledger.Record(0.9, true, 0.95, 0)
		require.NoError(t, e.ledger.AttachLabel(id, true))
	}

	_, err := e.loop.ExecuteRetraining(loopNow, "manual", governance.ActorAdmin)
	require.ErrorIs(t, err, ErrInsufficientData)
}

// #endregion on-demand
