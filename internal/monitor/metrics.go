package monitor

// #region imports
import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// #endregion

// #region metrics

// Metrics exposes monitor loop counters and gauges.
type Metrics struct {
	TicksTotal        prometheus.Counter
	TickFailures      prometheus.Counter
	TicksSkipped      prometheus.Counter
	AnomaliesTotal    *prometheus.CounterVec
	DecisionsTotal    *prometheus.CounterVec
	RetrainingsTotal  prometheus.Counter
	GovernanceBlocked prometheus.Counter
	CurrentAccuracy   prometheus.Gauge
	LabeledCount      prometheus.Gauge
}

// NewMetrics registers monitor metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "driftwatch_monitor_ticks_total",
			Help: "Monitoring loop ticks executed.",
		}),
		TickFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "driftwatch_monitor_tick_failures_total",
			Help: "Ticks that failed and were absorbed.",
		}),
		TicksSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "driftwatch_monitor_ticks_skipped_total",
			Help: "Ticks skipped for insufficient labeled data.",
		}),
		AnomaliesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "driftwatch_anomalies_total",
			Help: "Anomaly alerts by kind and severity.",
		}, []string{"kind", "severity"}),
		DecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "driftwatch_decisions_total",
			Help: "Retraining decisions by verdict.",
		}, []string{"verdict"}),
		RetrainingsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "driftwatch_retrainings_total",
			Help: "Completed retrainings.",
		}),
		GovernanceBlocked: factory.NewCounter(prometheus.CounterOpts{
			Name: "driftwatch_governance_blocked_total",
			Help: "Autonomous actions blocked by governance.",
		}),
		CurrentAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "driftwatch_current_accuracy",
			Help: "Accuracy of the most recent snapshot.",
		}),
		LabeledCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "driftwatch_labeled_observations",
			Help: "Labeled observations in the ledger.",
		}),
	}
}

// #endregion metrics
