package cardiac

import "math"

// FilterOptions controls the cleaning of a beat-to-beat interval
// series before HRV features are computed.
type FilterOptions struct {
	// RemoveOutliers drops intervals outside [LowRR, HighRR].
	RemoveOutliers bool
	// RemoveEctopic drops beats differing from the previous accepted
	// beat by more than EctopicRatio of its value (Malik criterion).
	RemoveEctopic bool
	// LowRR and HighRR bound physiologically plausible intervals, in
	// milliseconds.
	LowRR, HighRR float64
	// EctopicRatio is the relative change that marks an ectopic beat.
	EctopicRatio float64
}

// DefaultFilter is the standard cleaning configuration: outliers
// outside 300-2000 ms and ectopic beats per the 20% Malik criterion,
// both replaced by linear interpolation.
func DefaultFilter() FilterOptions {
	return FilterOptions{
		RemoveOutliers: true,
		RemoveEctopic:  true,
		LowRR:          300,
		HighRR:         2000,
		EctopicRatio:   0.2,
	}
}

// FilterBBI returns a cleaned copy of bbi. Removed intervals are
// filled by linear interpolation between their neighbours; leading and
// trailing gaps take the nearest accepted value.
func FilterBBI(bbi []float64, opts FilterOptions) []float64 {
	out := make([]float64, len(bbi))
	copy(out, bbi)

	if opts.RemoveOutliers {
		for i, v := range out {
			if v < opts.LowRR || v > opts.HighRR {
				out[i] = math.NaN()
			}
		}
		interpolateNaN(out)
	}
	if opts.RemoveEctopic {
		prev := math.NaN()
		for i, v := range out {
			if math.IsNaN(prev) {
				prev = v
				continue
			}
			if math.Abs(v-prev) > opts.EctopicRatio*prev {
				out[i] = math.NaN()
				continue
			}
			prev = v
		}
		interpolateNaN(out)
	}
	return out
}

// interpolateNaN fills NaN runs in place by linear interpolation,
// extending the nearest finite value over the edges.
func interpolateNaN(values []float64) {
	n := len(values)
	lastFinite := -1
	for i := 0; i < n; i++ {
		if math.IsNaN(values[i]) {
			continue
		}
		if lastFinite >= 0 && lastFinite < i-1 {
			lo, hi := values[lastFinite], values[i]
			span := float64(i - lastFinite)
			for j := lastFinite + 1; j < i; j++ {
				values[j] = lo + (hi-lo)*float64(j-lastFinite)/span
			}
		} else if lastFinite < 0 {
			for j := 0; j < i; j++ {
				values[j] = values[i]
			}
		}
		lastFinite = i
	}
	if lastFinite >= 0 {
		for j := lastFinite + 1; j < n; j++ {
			values[j] = values[lastFinite]
		}
	}
}
