package server

// #region imports
import (
	"time"

	"github.com/driftwatch/driftwatch/internal/decision"
	"github.com/driftwatch/driftwatch/internal/governance"
	"github.com/driftwatch/driftwatch/internal/perf"
	"github.com/driftwatch/driftwatch/internal/store"
)

// #endregion

// #region snapshot-json

type snapshotJSON struct {
	Timestamp          time.Time `json:"timestamp"`
	TotalObservations  int       `json:"total_observations"`
	LabeledCount       int       `json:"labeled_count"`
	Accuracy           *float64  `json:"accuracy,omitempty"`
	ModelVersion       int       `json:"model_version"`
	AvgConfidence      float64   `json:"avg_confidence"`
	LowConfidenceCount int       `json:"low_confidence_count"`
	AnomalyDetected    bool      `json:"anomaly_detected"`
}

func toSnapshotJSON(snaps []perf.Snapshot) []snapshotJSON {
	out := make([]snapshotJSON, len(snaps))
	for i, s := range snaps {
		out[i] = snapshotJSON{
			Timestamp:          s.Timestamp,
			TotalObservations:  s.TotalObservations,
			LabeledCount:       s.LabeledCount,
			ModelVersion:       s.ModelVersion,
			AvgConfidence:      s.AvgConfidence,
			LowConfidenceCount: s.LowConfidenceCount,
			AnomalyDetected:    s.AnomalyDetected,
		}
		if s.AccuracyValid {
			acc := s.Accuracy
			out[i].Accuracy = &acc
		}
	}
	return out
}

// #endregion snapshot-json

// #region decision-json

type decisionWire struct {
	Timestamp     time.Time          `json:"timestamp"`
	ShouldRetrain bool               `json:"should_retrain"`
	Score         float64            `json:"score"`
	Triggers      []string           `json:"triggers"`
	FactorScores  map[string]float64 `json:"factor_scores"`
	Reason        string             `json:"reason"`
}

func decisionJSON(d decision.Decision) decisionWire {
	triggers := d.Triggers
	if triggers == nil {
		triggers = []string{}
	}
	return decisionWire{
		Timestamp:     d.Timestamp,
		ShouldRetrain: d.ShouldRetrain,
		Score:         d.Score,
		Triggers:      triggers,
		FactorScores:  d.FactorScores,
		Reason:        d.Reason,
	}
}

func toDecisionJSON(decisions []decision.Decision) []decisionWire {
	out := make([]decisionWire, len(decisions))
	for i, d := range decisions {
		out[i] = decisionJSON(d)
	}
	return out
}

// #endregion decision-json

// #region retraining-json

type retrainingWire struct {
	Timestamp    time.Time `json:"timestamp"`
	OldVersion   int       `json:"old_version"`
	NewVersion   int       `json:"new_version"`
	OldAccuracy  float64   `json:"old_accuracy"`
	NewAccuracy  float64   `json:"new_accuracy"`
	ExampleCount int       `json:"example_count"`
	Trigger      string    `json:"trigger"`
}

func retrainingJSON(r store.RetrainingRecord) retrainingWire {
	return retrainingWire{
		Timestamp:    r.Timestamp,
		OldVersion:   r.OldVersion,
		NewVersion:   r.NewVersion,
		OldAccuracy:  r.OldAccuracy,
		NewAccuracy:  r.NewAccuracy,
		ExampleCount: r.ExampleCount,
		Trigger:      r.Trigger,
	}
}

func toRetrainingJSON(recs []store.RetrainingRecord) []retrainingWire {
	out := make([]retrainingWire, len(recs))
	for i, r := range recs {
		out[i] = retrainingJSON(r)
	}
	return out
}

// #endregion retraining-json

// #region audit-json

type auditWire struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"event_type"`
	Details   string            `json:"details"`
	Actor     string            `json:"actor"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func toAuditJSON(events []governance.AuditEvent) []auditWire {
	out := make([]auditWire, len(events))
	for i, e := range events {
		out[i] = auditWire{
			Timestamp: e.Timestamp,
			Type:      string(e.Type),
			Details:   e.Details,
			Actor:     e.Actor,
			Metadata:  e.Metadata,
		}
	}
	return out
}

// #endregion audit-json
