// Package anomaly flags statistical irregularities in the rolling accuracy
// series. Two detectors run side by side: spike detection for transient
// single-point deviations and change-point detection for persistent shifts.
// A fixed threshold cannot tell "one bad batch" from "the world changed";
// the two algorithms encode that distinction directly.
package anomaly

// #region imports
import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// #endregion

// #region detector-struct

// Detector runs both detection passes and keeps the process-wide alert
// history queried by the decision engine.
type Detector struct {
	config Config
	logger *zap.Logger

	mu      sync.RWMutex
	history []Alert
}

// NewDetector creates a detector with the given tuning.
func NewDetector(config Config, logger *zap.Logger) *Detector {
	return &Detector{config: config, logger: logger}
}

// #endregion detector-struct

// #region detect

// Detect runs spike and change-point detection over an ordered accuracy
// series (most recent last) and appends any alerts to the history.
// A series below the minimum length yields no alerts and no error; that is
// a recognized steady state, not a failure.
func (d *Detector) Detect(series []float64, now time.Time) []Alert {
	if len(series) < d.config.MinHistory {
		d.logger.Info("anomaly detection skipped: insufficient history",
			zap.Int("series_len", len(series)),
			zap.Int("min_history", d.config.MinHistory))
		return nil
	}

	var alerts []Alert

	for _, pt := range detectSpikes(series, d.config) {
		if !pt.Flagged {
			continue
		}
		severity := SeverityMedium
		if pt.PValue < d.config.SpikeHighPValue {
			severity = SeverityHigh
		}
		alerts = append(alerts, Alert{
			Timestamp: now,
			Kind:      KindSpike,
			Value:     series[pt.Index],
			Severity:  severity,
			Message: fmt.Sprintf("accuracy spike at index %d: value %.4f, p=%.4f",
				pt.Index, series[pt.Index], pt.PValue),
			Index: pt.Index,
		})
	}

	for _, pt := range detectChangePoints(series, d.config) {
		if !pt.Flagged {
			continue
		}
		severity := SeverityMedium
		if pt.Martingale > d.config.MartingaleHigh {
			severity = SeverityHigh
		}
		alerts = append(alerts, Alert{
			Timestamp: now,
			Kind:      KindChangePoint,
			Value:     series[pt.Index],
			Severity:  severity,
			Message: fmt.Sprintf("persistent accuracy shift at index %d: value %.4f, martingale=%.4f",
				pt.Index, series[pt.Index], pt.Martingale),
			Index: pt.Index,
		})
	}

	if len(alerts) > 0 {
		d.mu.Lock()
		d.history = append(d.history, alerts...)
		d.mu.Unlock()

		for _, a := range alerts {
			d.logger.Warn("anomaly detected",
				zap.String("kind", string(a.Kind)),
				zap.String("severity", string(a.Severity)),
				zap.String("message", a.Message))
		}
	}

	return alerts
}

// #endregion detect

// #region queries

// Recent returns alerts whose timestamp falls within the window ending now.
func (d *Detector) Recent(window time.Duration, now time.Time) []Alert {
	cutoff := now.Add(-window)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Alert
	for _, a := range d.history {
		if !a.Timestamp.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out
}

// History returns a copy of the full alert history.
func (d *Detector) History() []Alert {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Alert, len(d.history))
	copy(out, d.history)
	return out
}

// #endregion queries
