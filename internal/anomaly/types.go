package anomaly

// #region imports
import "time"

// #endregion

// #region kind

// Kind distinguishes transient spikes from persistent change points.
type Kind string

const (
	KindSpike       Kind = "spike"
	KindChangePoint Kind = "change_point"
)

// #endregion

// #region severity

// Severity grades how strongly the statistics flagged a point.
type Severity string

const (
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// #endregion

// #region alert

// Alert is one statistically flagged irregularity in the accuracy series.
// Immutable once created.
type Alert struct {
	Timestamp time.Time
	Kind      Kind
	Value     float64
	Severity  Severity
	Message   string
	Index     int // offending position in the input series
}

// #endregion

// #region config

// Config holds detector tuning. Window sizes derive from the series length:
// training window is half the series, the p-value lookback a quarter.
type Config struct {
	MinHistory int     // minimum series length before either detector runs
	Confidence float64 // e.g. 0.95; points with p < 1-Confidence are flagged
	Season     int     // seasonality period for the spike decomposition

	SpikeHighPValue float64 // p-value below this makes a spike High severity
	MartingaleHigh  float64 // martingale score above this makes a change point High
}

// DefaultConfig returns the mature-stage detector tuning.
func DefaultConfig() Config {
	return Config{
		MinHistory:      12,
		Confidence:      0.95,
		Season:          3,
		SpikeHighPValue: 0.01,
		MartingaleHigh:  0.9,
	}
}

// #endregion
