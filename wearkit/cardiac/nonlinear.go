package cardiac

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/lifespan-research/wearkit/wearkit/series"
)

// Poincare holds the nonlinear Poincaré plot descriptors of one
// interval series: short-term variability (SD1), long-term
// variability (SD2), their ratio and the fitted ellipse area.
type Poincare struct {
	SD1         float64
	SD2         float64
	Ratio       float64
	EllipseArea float64
}

// PoincareOf computes the Poincaré descriptors of a cleaned
// beat-to-beat series. Fewer than three intervals yield NaN output.
func PoincareOf(bbi []float64) Poincare {
	if len(bbi) < 3 {
		nan := math.NaN()
		return Poincare{SD1: nan, SD2: nan, Ratio: nan, EllipseArea: nan}
	}
	diffs := series.Diff(bbi)
	diffVar := stat.Variance(diffs, nil)
	totalVar := stat.Variance(bbi, nil)

	sd1 := math.Sqrt(diffVar / 2)
	sd2 := math.Sqrt(2*totalVar - diffVar/2)
	return Poincare{
		SD1:         sd1,
		SD2:         sd2,
		Ratio:       sd2 / sd1,
		EllipseArea: math.Pi * sd1 * sd2,
	}
}

// PoincareResult carries one user's Poincaré descriptors, or the
// error that prevented computing them.
type PoincareResult struct {
	Features Poincare
	Err      error
}

// PoincareFeatures computes the nonlinear HRV features of each
// selected user over the window, after cleaning the interval series.
func PoincareFeatures(src Source, users any, start, end *time.Time, opts FilterOptions) (map[string]PoincareResult, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]PoincareResult, len(ids))
	for _, id := range ids {
		bbi, err := loadIntervals(src, id, start, end, opts)
		if err != nil {
			out[id] = PoincareResult{Err: err}
			continue
		}
		out[id] = PoincareResult{Features: PoincareOf(bbi)}
	}
	return out, nil
}

// Features bundles every HRV domain for one user.
type Features struct {
	Time      TimeDomain
	Frequency FrequencyDomain
	Nonlinear Poincare
	Err       error
}

// AllFeatures computes time, frequency and nonlinear domain HRV
// features of each selected user over the window with a single read
// of the interval series.
func AllFeatures(src Source, users any, start, end *time.Time, opts FilterOptions) (map[string]Features, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Features, len(ids))
	for _, id := range ids {
		bbi, err := loadIntervals(src, id, start, end, opts)
		if err != nil {
			out[id] = Features{Err: err}
			continue
		}
		out[id] = Features{
			Time:      TimeDomainOf(bbi),
			Frequency: FrequencyDomainOf(bbi),
			Nonlinear: PoincareOf(bbi),
		}
	}
	return out, nil
}
