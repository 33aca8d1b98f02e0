package decision

// #region imports
import "time"

// #endregion

// #region factor-names

// Factor names used in FactorScores and trigger strings.
const (
	FactorDegradation   = "accuracy_degradation"
	FactorLowConfidence = "low_confidence"
	FactorDataGrowth    = "data_growth"
	FactorAnomaly       = "anomaly"
	FactorModelAge      = "model_age"
)

// #endregion

// #region weights

// Weights are the fixed point-weight contributions of each factor.
// Their sum is clamped to [0,1] before the threshold comparison.
type Weights struct {
	Degradation    float64
	LowConfidence  float64
	DataGrowth     float64
	Anomaly        float64 // full weight, any High-severity anomaly in window
	AnomalyPartial float64 // reduced weight, Medium-only anomalies in window
	ModelAge       float64
}

// DefaultWeights returns the mature-stage factor weights.
func DefaultWeights() Weights {
	return Weights{
		Degradation:    0.30,
		LowConfidence:  0.25,
		DataGrowth:     0.15,
		Anomaly:        0.20,
		AnomalyPartial: 0.10,
		ModelAge:       0.10,
	}
}

// #endregion

// #region config

// Config holds the decision engine tuning.
type Config struct {
	MinLabeled       int           // hard gate: labeled count required to retrain
	Cooldown         time.Duration // hard gate: minimum time between retrainings
	MaxModelAge      time.Duration // model age beyond which the age factor fires
	BaselineWindow   int           // earliest snapshots averaged into the baseline
	DegradationRatio float64       // current accuracy below ratio*baseline fires
	LowConfTrigger   float64       // low-confidence rate above this fires
	GrowthTrigger    float64       // labeled growth vs baseline count that fires
	Threshold        float64       // score at or above this recommends retraining
	Weights          Weights
}

// DefaultConfig returns the mature-stage engine tuning.
func DefaultConfig() Config {
	return Config{
		MinLabeled:       10,
		Cooldown:         time.Hour,
		MaxModelAge:      7 * 24 * time.Hour,
		BaselineWindow:   5,
		DegradationRatio: 0.90,
		LowConfTrigger:   0.30,
		GrowthTrigger:    0.50,
		Threshold:        0.5,
		Weights:          DefaultWeights(),
	}
}

// #endregion

// #region decision

// Decision is one scoring outcome. Immutable once created.
type Decision struct {
	Timestamp     time.Time
	ShouldRetrain bool
	Score         float64 // clamped sum of factor contributions, [0,1]
	Triggers      []string
	FactorScores  map[string]float64
	Reason        string
}

// #endregion
