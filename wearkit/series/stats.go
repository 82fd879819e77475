package series

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// dropNaN returns the finite entries of values, preserving order.
func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// Mean returns the NaN-aware mean of values, NaN when nothing is finite.
func Mean(values []float64) float64 {
	clean := dropNaN(values)
	if len(clean) == 0 {
		return math.NaN()
	}
	return stat.Mean(clean, nil)
}

// Std returns the NaN-aware population standard deviation.
func Std(values []float64) float64 {
	clean := dropNaN(values)
	if len(clean) == 0 {
		return math.NaN()
	}
	if len(clean) == 1 {
		return 0
	}
	return math.Sqrt(stat.PopVariance(clean, nil))
}

// Min returns the NaN-aware minimum of values.
func Min(values []float64) float64 {
	clean := dropNaN(values)
	if len(clean) == 0 {
		return math.NaN()
	}
	min := clean[0]
	for _, v := range clean[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// Max returns the NaN-aware maximum of values.
func Max(values []float64) float64 {
	clean := dropNaN(values)
	if len(clean) == 0 {
		return math.NaN()
	}
	max := clean[0]
	for _, v := range clean[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// Quantile returns the NaN-aware empirical p-quantile (0 <= p <= 1).
func Quantile(p float64, values []float64) float64 {
	clean := dropNaN(values)
	if len(clean) == 0 {
		return math.NaN()
	}
	sort.Float64s(clean)
	return stat.Quantile(p, stat.Empirical, clean, nil)
}

// Diff returns successive differences values[i+1]-values[i].
func Diff(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = values[i] - values[i-1]
	}
	return out
}

// MeanClock computes the circular mean of "HH:MM" clock times, so that
// e.g. 23:00 and 01:00 average to 00:00 rather than 12:00.
func MeanClock(times []string) (string, error) {
	if len(times) == 0 {
		return "", fmt.Errorf("no clock times to average")
	}
	const day = 24 * 60 * 60
	var sumSin, sumCos float64
	for _, s := range times {
		var h, m int
		if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
			return "", fmt.Errorf("parse clock time %q: %w", s, err)
		}
		angle := float64(h*3600+m*60) * 2 * math.Pi / day
		sumSin += math.Sin(angle)
		sumCos += math.Cos(angle)
	}
	meanAngle := math.Atan2(sumSin/float64(len(times)), sumCos/float64(len(times)))
	seconds := meanAngle * day / (2 * math.Pi)
	if seconds < 0 {
		seconds += day
	}
	// Round to the nearest minute so an exact mean never truncates to
	// the minute below it.
	minutes := int(math.Round(seconds/60)) % (24 * 60)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60), nil
}
