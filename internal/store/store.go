// Package store persists snapshot, decision, retraining, and audit
// histories to SQLite so they survive restarts. The observation ledger
// itself stays in memory.
package store

// #region imports
import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/driftwatch/driftwatch/internal/decision"
	"github.com/driftwatch/driftwatch/internal/governance"
	"github.com/driftwatch/driftwatch/internal/perf"
)

// #endregion

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at       TEXT NOT NULL,
	total_obs        INTEGER NOT NULL,
	labeled_count    INTEGER NOT NULL,
	accuracy         REAL NOT NULL,
	accuracy_valid   INTEGER NOT NULL,
	model_version    INTEGER NOT NULL,
	avg_confidence   REAL NOT NULL,
	low_conf_count   INTEGER NOT NULL,
	anomaly_detected INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at     TEXT NOT NULL,
	should_retrain INTEGER NOT NULL,
	score          REAL NOT NULL,
	reason         TEXT NOT NULL,
	triggers_json  TEXT,
	factors_json   TEXT
);

CREATE TABLE IF NOT EXISTS retrainings (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at    TEXT NOT NULL,
	old_version   INTEGER NOT NULL,
	new_version   INTEGER NOT NULL,
	old_accuracy  REAL NOT NULL,
	new_accuracy  REAL NOT NULL,
	example_count INTEGER NOT NULL,
	trigger       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at    TEXT NOT NULL,
	event_type    TEXT NOT NULL,
	details       TEXT NOT NULL,
	actor         TEXT NOT NULL,
	metadata_json TEXT
);
`

// #endregion schema

// #region retraining-record

// RetrainingRecord is one executed, governance-approved retrain.
// Immutable once created.
type RetrainingRecord struct {
	Timestamp    time.Time
	OldVersion   int
	NewVersion   int
	OldAccuracy  float64
	NewAccuracy  float64
	ExampleCount int
	Trigger      string
}

// #endregion

// #region store-struct

// Store manages driftwatch histories in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite database and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for offline tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion store-struct

// #region snapshots

// SaveSnapshot appends a performance snapshot.
func (s *Store) SaveSnapshot(snap perf.Snapshot) error {
	_, err := s.db.Exec(
		`INSERT INTO snapshots (created_at, total_obs, labeled_count, accuracy, accuracy_valid,
		 model_version, avg_confidence, low_conf_count, anomaly_detected)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.Timestamp.Format(time.RFC3339Nano), snap.TotalObservations, snap.LabeledCount,
		snap.Accuracy, boolToInt(snap.AccuracyValid), snap.ModelVersion,
		snap.AvgConfidence, snap.LowConfidenceCount, boolToInt(snap.AnomalyDetected),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns up to limit most recent snapshots, oldest first.
// limit <= 0 returns everything.
func (s *Store) ListSnapshots(limit int) ([]perf.Snapshot, error) {
	rows, err := s.db.Query(addLimit(
		`SELECT created_at, total_obs, labeled_count, accuracy, accuracy_valid,
		 model_version, avg_confidence, low_conf_count, anomaly_detected
		 FROM (SELECT * FROM snapshots ORDER BY id DESC %s) ORDER BY id ASC`, limit))
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []perf.Snapshot
	for rows.Next() {
		var snap perf.Snapshot
		var createdStr string
		var valid, anomal int
		if err := rows.Scan(&createdStr, &snap.TotalObservations, &snap.LabeledCount,
			&snap.Accuracy, &valid, &snap.ModelVersion, &snap.AvgConfidence,
			&snap.LowConfidenceCount, &anomal); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.Timestamp, _ = time.Parse(time.RFC3339Nano, createdStr)
		snap.AccuracyValid = valid != 0
		snap.AnomalyDetected = anomal != 0
		out = append(out, snap)
	}
	return out, rows.Err()
}

// #endregion snapshots

// #region decisions

// SaveDecision appends a retraining decision.
func (s *Store) SaveDecision(dec decision.Decision) error {
	triggersJSON, err := json.Marshal(dec.Triggers)
	if err != nil {
		return fmt.Errorf("marshal triggers: %w", err)
	}
	factorsJSON, err := json.Marshal(dec.FactorScores)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO decisions (created_at, should_retrain, score, reason, triggers_json, factors_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		dec.Timestamp.Format(time.RFC3339Nano), boolToInt(dec.ShouldRetrain),
		dec.Score, dec.Reason, string(triggersJSON), string(factorsJSON),
	)
	if err != nil {
		return fmt.Errorf("save decision: %w", err)
	}
	return nil
}

// ListDecisions returns up to limit most recent decisions, oldest first.
func (s *Store) ListDecisions(limit int) ([]decision.Decision, error) {
	rows, err := s.db.Query(addLimit(
		`SELECT created_at, should_retrain, score, reason, triggers_json, factors_json
		 FROM (SELECT * FROM decisions ORDER BY id DESC %s) ORDER BY id ASC`, limit))
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []decision.Decision
	for rows.Next() {
		var dec decision.Decision
		var createdStr string
		var retrain int
		var triggersJSON, factorsJSON sql.NullString
		if err := rows.Scan(&createdStr, &retrain, &dec.Score, &dec.Reason,
			&triggersJSON, &factorsJSON); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		dec.Timestamp, _ = time.Parse(time.RFC3339Nano, createdStr)
		dec.ShouldRetrain = retrain != 0
		if triggersJSON.Valid {
			if err := json.Unmarshal([]byte(triggersJSON.String), &dec.Triggers); err != nil {
				return nil, fmt.Errorf("unmarshal triggers: %w", err)
			}
		}
		if factorsJSON.Valid {
			if err := json.Unmarshal([]byte(factorsJSON.String), &dec.FactorScores); err != nil {
				return nil, fmt.Errorf("unmarshal factors: %w", err)
			}
		}
		out = append(out, dec)
	}
	return out, rows.Err()
}

// #endregion decisions

// #region retrainings

// SaveRetraining appends an executed retraining record.
func (s *Store) SaveRetraining(rec RetrainingRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO retrainings (created_at, old_version, new_version, old_accuracy,
		 new_accuracy, example_count, trigger)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Format(time.RFC3339Nano), rec.OldVersion, rec.NewVersion,
		rec.OldAccuracy, rec.NewAccuracy, rec.ExampleCount, rec.Trigger,
	)
	if err != nil {
		return fmt.Errorf("save retraining: %w", err)
	}
	return nil
}

// ListRetrainings returns up to limit most recent records, oldest first.
func (s *Store) ListRetrainings(limit int) ([]RetrainingRecord, error) {
	rows, err := s.db.Query(addLimit(
		`SELECT created_at, old_version, new_version, old_accuracy, new_accuracy, example_count, trigger
		 FROM (SELECT * FROM retrainings ORDER BY id DESC %s) ORDER BY id ASC`, limit))
	if err != nil {
		return nil, fmt.Errorf("list retrainings: %w", err)
	}
	defer rows.Close()

	var out []RetrainingRecord
	for rows.Next() {
		var rec RetrainingRecord
		var createdStr string
		if err := rows.Scan(&createdStr, &rec.OldVersion, &rec.NewVersion,
			&rec.OldAccuracy, &rec.NewAccuracy, &rec.ExampleCount, &rec.Trigger); err != nil {
			return nil, fmt.Errorf("scan retraining: %w", err)
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LastRetraining returns the newest retraining record, if any. Used to
// rehydrate the decision engine's cooldown state after a restart.
func (s *Store) LastRetraining() (RetrainingRecord, bool, error) {
	recs, err := s.ListRetrainings(1)
	if err != nil {
		return RetrainingRecord{}, false, err
	}
	if len(recs) == 0 {
		return RetrainingRecord{}, false, nil
	}
	return recs[0], true, nil
}

// #endregion retrainings

// #region audit

// AppendAudit persists one audit event. Implements governance.AuditSink.
func (s *Store) AppendAudit(event governance.AuditEvent) error {
	var metaJSON interface{}
	if len(event.Metadata) > 0 {
		b, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metaJSON = string(b)
	}

	_, err := s.db.Exec(
		`INSERT INTO audit_log (created_at, event_type, details, actor, metadata_json)
		 VALUES (?, ?, ?, ?, ?)`,
		event.Timestamp.Format(time.RFC3339Nano), string(event.Type),
		event.Details, event.Actor, metaJSON,
	)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// ListAudit returns up to limit most recent audit events, oldest first.
func (s *Store) ListAudit(limit int) ([]governance.AuditEvent, error) {
	rows, err := s.db.Query(addLimit(
		`SELECT created_at, event_type, details, actor, metadata_json
		 FROM (SELECT * FROM audit_log ORDER BY id DESC %s) ORDER BY id ASC`, limit))
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []governance.AuditEvent
	for rows.Next() {
		var event governance.AuditEvent
		var createdStr, eventType string
		var metaJSON sql.NullString
		if err := rows.Scan(&createdStr, &eventType, &event.Details, &event.Actor, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		event.Timestamp, _ = time.Parse(time.RFC3339Nano, createdStr)
		event.Type = governance.EventType(eventType)
		if metaJSON.Valid {
			if err := json.Unmarshal([]byte(metaJSON.String), &event.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// #endregion audit

// #region helpers

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// addLimit formats the inner LIMIT clause. limit <= 0 means no limit.
func addLimit(query string, limit int) string {
	if limit > 0 {
		return fmt.Sprintf(query, fmt.Sprintf("LIMIT %d", limit))
	}
	return fmt.Sprintf(query, "")
}

// #endregion helpers
