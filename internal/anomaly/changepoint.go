package anomaly

// #region imports
import (
	"math"
	"sort"
)

// #endregion

// #region changepoint-result

// changePointResult is the per-index output of change-point detection.
type changePointResult struct {
	Index      int
	Flagged    bool
	Score      float64 // strangeness: distance from the lookback median
	PValue     float64
	Martingale float64 // accumulated shift evidence, normalized to [0,1)
}

// #endregion

// #region power-martingale

// martingaleEpsilon is the power-martingale betting exponent. Values below
// 1 make the martingale grow on small p-values and decay on large ones.
const martingaleEpsilon = 0.92

// #endregion

// #region detect-change-points

// detectChangePoints scores each point's strangeness against an i.i.d.
// lookback window (a quarter of the series) and accumulates a power
// martingale over the resulting p-values. A point is flagged when its
// p-value falls below 1-confidence; the martingale score grades how much
// consecutive evidence of a persistent shift has piled up.
// Returns nil when the series is shorter than the configured minimum.
func detectChangePoints(series []float64, cfg Config) []changePointResult {
	n := len(series)
	if n < cfg.MinHistory {
		return nil
	}

	lookback := n / 4
	if lookback < 4 {
		lookback = 4
	}
	alpha := 1 - cfg.Confidence

	strangeness := make([]float64, n)
	martingale := 1.0
	out := make([]changePointResult, 0, n-1)

	for i := 1; i < n; i++ {
		lo := i - lookback
		if lo < 0 {
			lo = 0
		}
		strangeness[i] = math.Abs(series[i] - median(series[lo:i]))

		res := changePointResult{Index: i, Score: strangeness[i], PValue: 1}
		if i-lo >= 3 {
			res.PValue = gaussianUpperP(strangeness[i], strangeness[lo+1:i])
		}

		// Power martingale update over the p-value stream.
		p := res.PValue
		if p < 1e-6 {
			p = 1e-6
		}
		martingale *= martingaleEpsilon * math.Pow(p, martingaleEpsilon-1)
		if martingale < 1e-12 {
			martingale = 1e-12
		}
		if martingale > 1 {
			res.Martingale = 1 - 1/martingale
		}

		res.Flagged = res.PValue < alpha
		out = append(out, res)
	}
	return out
}

// #endregion detect-change-points

// #region helpers

// median returns the middle value of a window. Zero for an empty window.
func median(window []float64) float64 {
	if len(window) == 0 {
		return 0
	}
	sorted := make([]float64, len(window))
	copy(sorted, window)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// gaussianUpperP scores s against prior strangeness values, one-sided:
// only unusually large strangeness counts as evidence.
func gaussianUpperP(s float64, prior []float64) float64 {
	if len(prior) == 0 {
		return 1
	}
	var sum float64
	for _, v := range prior {
		sum += v
	}
	mean := sum / float64(len(prior))

	var ss float64
	for _, v := range prior {
		d := v - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(prior)))
	if std == 0 {
		if s <= mean {
			return 1
		}
		return 0
	}

	z := (s - mean) / std
	return 0.5 * math.Erfc(z/math.Sqrt2)
}

// #endregion helpers
