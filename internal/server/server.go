// Package server is the thin HTTP glue over the core: marshalling only,
// no control-flow decisions of its own.
package server

// #region imports
import (
	"errors"
	"fmt"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/governance"
	"github.com/driftwatch/driftwatch/internal/ledger"
	"github.com/driftwatch/driftwatch/internal/model"
	"github.com/driftwatch/driftwatch/internal/monitor"
	"github.com/driftwatch/driftwatch/internal/perf"
	"github.com/driftwatch/driftwatch/internal/store"
)

// #endregion

// #region handlers-struct

// Handlers serves the driftwatch HTTP API.
type Handlers struct {
	logger        *zap.Logger
	ledger        *ledger.Ledger
	slot          *model.Slot
	loop          *monitor.Loop
	gate          *governance.Gate
	store         *store.Store
	history       *perf.History
	minLabeled    int
	lowConfCutoff float64
	clock         func() time.Time
}

// Deps bundles handler collaborators.
type Deps struct {
	Logger        *zap.Logger
	Ledger        *ledger.Ledger
	Slot          *model.Slot
	Loop          *monitor.Loop
	Gate          *governance.Gate
	Store         *store.Store
	History       *perf.History
	MinLabeled    int              // labeled count required for a valid accuracy
	LowConfCutoff float64          // confidence below this counts as low
	Clock         func() time.Time // nil defaults to time.Now
}

// NewHandlers creates the API handlers.
func NewHandlers(deps Deps) *Handlers {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Handlers{
		logger:        deps.Logger,
		ledger:        deps.Ledger,
		slot:          deps.Slot,
		loop:          deps.Loop,
		gate:          deps.Gate,
		store:         deps.Store,
		history:       deps.History,
		minLabeled:    deps.MinLabeled,
		lowConfCutoff: deps.LowConfCutoff,
		clock:         clock,
	}
}

// #endregion handlers-struct

// #region router

// NewRouter wires all routes with zap request logging and recovery.
func NewRouter(h *Handlers, logger *zap.Logger, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(logger, true))

	r.POST("/predict", h.Predict)
	r.POST("/label", h.Label)
	r.GET("/stats", h.Stats)
	r.GET("/history/performance", h.PerformanceHistory)
	r.GET("/history/decisions", h.DecisionHistory)
	r.GET("/history/retrainings", h.RetrainingHistory)
	r.POST("/check-retraining", h.CheckRetraining)
	r.POST("/retrain", h.Retrain)
	r.POST("/governance/autonomy", h.ToggleAutonomy)
	r.POST("/governance/approval", h.ToggleApproval)
	r.GET("/governance/audit", h.AuditLog)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return r
}

// #endregion router

// #region predict

// PredictRequest carries the input threshold value to classify. Value is a
// pointer so 0.0 passes the required binding; any float is a valid input.
type PredictRequest struct {
	Value *float64 `json:"value" binding:"required"`
}

// PredictResponse is the typed prediction result.
type PredictResponse struct {
	ObservationID string  `json:"observation_id"`
	Label         bool    `json:"label"`
	Confidence    float64 `json:"confidence"`
	ModelVersion  int     `json:"model_version"`
	UsedFallback  bool    `json:"used_fallback"`
}

// Predict serves a prediction and records the observation.
func (h *Handlers) Predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	value := *req.Value
	pred := h.slot.Predict(value)
	id := h.ledger.Record(value, pred.Label, pred.Confidence, pred.ModelVersion)

	h.gate.LogAudit(governance.EventPredictionServed,
		fmt.Sprintf("prediction served for value %.4f", value),
		governance.ActorUser, map[string]string{"observation_id": id})

	c.JSON(http.StatusOK, PredictResponse{
		ObservationID: id,
		Label:         pred.Label,
		Confidence:    pred.Confidence,
		ModelVersion:  pred.ModelVersion,
		UsedFallback:  pred.UsedFallback,
	})
}

// #endregion predict

// #region label

// LabelRequest attaches ground truth to an observation.
type LabelRequest struct {
	ObservationID string `json:"observation_id" binding:"required"`
	Label         *bool  `json:"label" binding:"required"`
}

// Label attaches a ground-truth label to a recorded observation.
func (h *Handlers) Label(c *gin.Context) {
	var req LabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	if err := h.ledger.AttachLabel(req.ObservationID, *req.Label); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "unknown observation id"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "label_failed", "message": err.Error()})
		return
	}

	h.gate.LogAudit(governance.EventLabelAttached,
		fmt.Sprintf("ground truth attached to observation %s", req.ObservationID),
		governance.ActorUser, map[string]string{"observation_id": req.ObservationID})

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// #endregion label

// #region stats

// Stats returns a live point-in-time reduction of the ledger, not the
// latest loop snapshot: labels attached since the last tick count
// immediately.
func (h *Handlers) Stats(c *gin.Context) {
	snap := perf.Compute(h.ledger.All(), h.ledger.Labeled(), h.slot.Version(),
		h.minLabeled, h.lowConfCutoff, h.clock())

	resp := gin.H{
		"total_observations":   snap.TotalObservations,
		"labeled_observations": snap.LabeledCount,
		"model_version":        snap.ModelVersion,
		"accuracy":             nil,
	}
	if snap.AccuracyValid {
		resp["accuracy"] = snap.Accuracy
	}
	c.JSON(http.StatusOK, resp)
}

// #endregion stats

// #region histories

// PerformanceHistory returns the ordered snapshot list.
func (h *Handlers) PerformanceHistory(c *gin.Context) {
	snaps := h.history.List()
	c.JSON(http.StatusOK, gin.H{"count": len(snaps), "snapshots": toSnapshotJSON(snaps)})
}

// DecisionHistory returns the persisted decision list with counts.
func (h *Handlers) DecisionHistory(c *gin.Context) {
	decisions, err := h.store.ListDecisions(0)
	if err != nil {
		h.logger.Error("list decisions failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history_failed", "message": err.Error()})
		return
	}

	retrainVotes := 0
	for _, d := range decisions {
		if d.ShouldRetrain {
			retrainVotes++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"count":         len(decisions),
		"retrain_votes": retrainVotes,
		"decisions":     toDecisionJSON(decisions),
	})
}

// RetrainingHistory returns the ordered retraining-record list.
func (h *Handlers) RetrainingHistory(c *gin.Context) {
	recs, err := h.store.ListRetrainings(0)
	if err != nil {
		h.logger.Error("list retrainings failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(recs), "retrainings": toRetrainingJSON(recs)})
}

// #endregion histories

// #region check-retraining

// CheckRetraining runs the decision engine on demand against the latest
// snapshot. Always allowed: checking is read-only, only acting is governed.
func (h *Handlers) CheckRetraining(c *gin.Context) {
	dec, err := h.loop.CheckRetraining(h.clock())
	if err != nil {
		if errors.Is(err, monitor.ErrNoSnapshot) {
			c.JSON(http.StatusConflict, gin.H{"error": "no_snapshot", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "check_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, decisionJSON(dec))
}

// #endregion check-retraining

// #region retrain

// Retrain executes a human-initiated retraining. It bypasses the kill
// switch (the action is not autonomous) but still honors the minimum-data
// requirement.
func (h *Handlers) Retrain(c *gin.Context) {
	rec, err := h.loop.ExecuteRetraining(h.clock(), "manual retraining request", governance.ActorUser)
	if err != nil {
		if errors.Is(err, monitor.ErrInsufficientData) {
			c.JSON(http.StatusConflict, gin.H{"error": "insufficient_data", "message": err.Error()})
			return
		}
		h.logger.Error("manual retraining failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "retrain_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, retrainingJSON(rec))
}

// #endregion retrain

// #region governance

// ToggleRequest flips one governance switch.
type ToggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// ToggleAutonomy sets the kill switch.
func (h *Handlers) ToggleAutonomy(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	state := h.gate.SetAutonomousEnabled(*req.Enabled, governance.ActorAdmin)
	c.JSON(http.StatusOK, gin.H{"autonomous_actions_enabled": state})
}

// ApprovalRequest flips the human-approval requirement.
type ApprovalRequest struct {
	Required *bool `json:"required" binding:"required"`
}

// ToggleApproval sets the human-approval requirement.
func (h *Handlers) ToggleApproval(c *gin.Context) {
	var req ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	state := h.gate.SetRequireApproval(*req.Required, governance.ActorAdmin)
	c.JSON(http.StatusOK, gin.H{"require_human_approval": state})
}

// AuditLog returns persisted audit events, oldest first.
func (h *Handlers) AuditLog(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "limit must be a non-negative integer"})
			return
		}
	}

	events, err := h.store.ListAudit(limit)
	if err != nil {
		h.logger.Error("list audit failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "audit_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(events), "events": toAuditJSON(events)})
}

// #endregion governance
