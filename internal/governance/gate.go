// Package governance is the single choke point for autonomous actions.
// Separating "can we act" from "did we act" lets the monitor loop and the
// admin endpoints share one authorization and audit surface, so the trail
// stays complete regardless of which code path triggered an action.
package governance

// #region imports
import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// #endregion

// #region gate-struct

// Gate holds the two governance switches and the append-only audit log.
// The kill switch defaults on (autonomous actions allowed); the approval
// requirement defaults off.
type Gate struct {
	logger *zap.Logger
	sink   AuditSink

	mu                sync.Mutex
	autonomousEnabled bool
	requireApproval   bool
	events            []AuditEvent
}

// NewGate creates a gate with defaults: autonomy on, approval off.
// sink may be nil; events are then kept in memory only.
func NewGate(logger *zap.Logger, sink AuditSink) *Gate {
	return &Gate{
		logger:            logger,
		sink:              sink,
		autonomousEnabled: true,
	}
}

// #endregion gate-struct

// #region can-act

// CanPerformAutonomousAction reports whether an autonomous action may
// proceed. A block from either switch appends exactly one audit event; an
// allowed action has no side effects here.
func (g *Gate) CanPerformAutonomousAction(actionType string) bool {
	g.mu.Lock()
	enabled, approval := g.autonomousEnabled, g.requireApproval
	g.mu.Unlock()

	if !enabled {
		g.LogAudit(EventGovernanceOverride,
			fmt.Sprintf("autonomous action %q blocked: kill switch is off", actionType),
			ActorSystem, map[string]string{"action": actionType})
		return false
	}
	if approval {
		g.LogAudit(EventApprovalRequired,
			fmt.Sprintf("autonomous action %q requires human approval", actionType),
			ActorSystem, map[string]string{"action": actionType})
		return false
	}
	return true
}

// #endregion can-act

// #region toggles

// SetAutonomousEnabled flips the kill switch and returns the new state.
func (g *Gate) SetAutonomousEnabled(enabled bool, actor string) bool {
	g.mu.Lock()
	g.autonomousEnabled = enabled
	g.mu.Unlock()

	g.LogAudit(EventAutonomyToggled,
		fmt.Sprintf("autonomous actions set to %v", enabled),
		actor, map[string]string{"enabled": fmt.Sprintf("%v", enabled)})
	return enabled
}

// SetRequireApproval flips the approval requirement and returns the new state.
func (g *Gate) SetRequireApproval(required bool, actor string) bool {
	g.mu.Lock()
	g.requireApproval = required
	g.mu.Unlock()

	g.LogAudit(EventApprovalToggled,
		fmt.Sprintf("human approval requirement set to %v", required),
		actor, map[string]string{"required": fmt.Sprintf("%v", required)})
	return required
}

// AutonomousEnabled returns the kill switch state.
func (g *Gate) AutonomousEnabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.autonomousEnabled
}

// RequireApproval returns the approval requirement state.
func (g *Gate) RequireApproval() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requireApproval
}

// #endregion toggles

// #region audit

// LogAudit unconditionally appends an immutable audit record. Sink write
// failures are logged and swallowed; audit logging never fails its caller.
func (g *Gate) LogAudit(eventType EventType, details, actor string, metadata map[string]string) {
	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Details:   details,
		Actor:     actor,
		Metadata:  metadata,
	}

	g.mu.Lock()
	g.events = append(g.events, event)
	g.mu.Unlock()

	if g.sink != nil {
		if err := g.sink.AppendAudit(event); err != nil {
			g.logger.Error("audit sink write failed",
				zap.String("event_type", string(eventType)), zap.Error(err))
		}
	}

	g.logger.Info("audit event",
		zap.String("event_type", string(eventType)),
		zap.String("actor", actor),
		zap.String("details", details))
}

// AuditLog returns up to limit most recent events, oldest first.
// limit <= 0 returns everything.
func (g *Gate) AuditLog(limit int) []AuditEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	events := g.events
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	out := make([]AuditEvent, len(events))
	copy(out, events)
	return out
}

// #endregion audit
