package governance

// #region imports
import "time"

// #endregion

// #region event-types

// EventType tags one class of audited state change.
type EventType string

const (
	EventGovernanceOverride  EventType = "governance_override" // kill switch blocked an autonomous action
	EventApprovalRequired    EventType = "approval_required"   // human approval gate blocked an autonomous action
	EventAutonomyToggled     EventType = "autonomy_toggled"
	EventApprovalToggled     EventType = "approval_toggled"
	EventRetrainingStarted   EventType = "retraining_started"
	EventRetrainingCompleted EventType = "retraining_completed"
	EventRetrainingFailed    EventType = "retraining_failed"
	EventRetrainingBlocked   EventType = "retraining_blocked"
	EventPredictionServed    EventType = "prediction_served"
	EventLabelAttached       EventType = "label_attached"
)

// #endregion

// #region actors

// Actor ids recorded on audit events.
const (
	ActorSystem = "system"
	ActorUser   = "user"
	ActorAdmin  = "admin"
)

// #endregion

// #region audit-event

// AuditEvent is one append-only audit log entry. Never mutated or deleted.
type AuditEvent struct {
	Timestamp time.Time
	Type      EventType
	Details   string
	Actor     string
	Metadata  map[string]string
}

// #endregion

// #region audit-sink

// AuditSink receives audit events for durable storage. The gate treats
// sink failures as log-and-continue: audit logging itself never fails.
type AuditSink interface {
	AppendAudit(AuditEvent) error
}

// #endregion
