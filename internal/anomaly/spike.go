package anomaly

// #region imports
import "math"

// #endregion

// #region spike-point

// spikePoint is the per-index output of spike detection.
type spikePoint struct {
	Index   int
	Flagged bool
	Score   float64 // absolute residual from the decomposition
	PValue  float64
}

// #endregion

// #region detect-spikes

// detectSpikes runs seasonal/trend decomposition over the series and flags
// transient single-point deviations. The trend is fit over a training
// window of half the series; residuals are scored against the residual
// distribution of a lookback window of a quarter of the series.
// Returns nil when the series is shorter than the configured minimum.
func detectSpikes(series []float64, cfg Config) []spikePoint {
	n := len(series)
	if n < cfg.MinHistory {
		return nil
	}

	train := n / 2
	lookback := n / 4
	if lookback < 4 {
		lookback = 4
	}

	// Residual of each evaluated point against its trend+season estimate.
	resid := make(map[int]float64, n-train)
	for i := train; i < n; i++ {
		expected := seasonalTrendEstimate(series[i-train:i], cfg.Season)
		resid[i] = series[i] - expected
	}

	alpha := 1 - cfg.Confidence
	out := make([]spikePoint, 0, n-train)
	for i := train; i < n; i++ {
		var prior []float64
		for j := i - lookback; j < i; j++ {
			if r, ok := resid[j]; ok {
				prior = append(prior, r)
			}
		}

		pt := spikePoint{Index: i, Score: math.Abs(resid[i]), PValue: 1}
		if len(prior) >= 3 {
			pt.PValue = gaussianTwoSidedP(resid[i], prior)
			pt.Flagged = pt.PValue < alpha
		}
		out = append(out, pt)
	}
	return out
}

// #endregion detect-spikes

// #region estimate

// seasonalTrendEstimate fits a least-squares line over the window, then
// adds the mean residual of the window points sharing the next point's
// seasonal phase.
func seasonalTrendEstimate(window []float64, season int) float64 {
	m := len(window)
	slope, intercept := leastSquares(window)
	trend := intercept + slope*float64(m) // extrapolate one step past the window

	if season <= 1 {
		return trend
	}

	// Phase of the point being estimated is m mod season relative to the
	// window start; average the detrended values at that phase.
	phase := m % season
	var sum float64
	var count int
	for j := phase; j < m; j += season {
		sum += window[j] - (intercept + slope*float64(j))
		count++
	}
	if count == 0 {
		return trend
	}
	return trend + sum/float64(count)
}

// leastSquares fits y = slope*x + intercept over window indices 0..m-1.
func leastSquares(window []float64) (slope, intercept float64) {
	m := float64(len(window))
	if m == 0 {
		return 0, 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range window {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	den := m*sumXX - sumX*sumX
	if den == 0 {
		return 0, sumY / m
	}
	slope = (m*sumXY - sumX*sumY) / den
	intercept = (sumY - slope*sumX) / m
	return slope, intercept
}

// #endregion estimate

// #region p-value

// gaussianTwoSidedP scores r against the empirical mean and spread of
// prior residuals. A degenerate (zero variance) prior yields p=1 when r
// matches the mean and p=0 otherwise.
func gaussianTwoSidedP(r float64, prior []float64) float64 {
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
		if r == mean {
			return 1
		}
		return 0
	}

	z := math.Abs(r-mean) / std
	return math.Erfc(z / math.Sqrt2)
}

// #endregion p-value
