package cardiac

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/lifespan-research/wearkit/wearkit/series"
)

// TimeDomain holds the time-domain HRV features of one interval
// series. Intervals are milliseconds, heart rates beats per minute.
type TimeDomain struct {
	MeanRR   float64
	MedianRR float64
	RangeRR  float64
	SDNN     float64
	RMSSD    float64
	SDSD     float64
	NN50     float64
	PNN50    float64
	NN20     float64
	PNN20    float64
	MeanHR   float64
	StdHR    float64
	MinHR    float64
	MaxHR    float64
}

// TimeDomainOf computes the time-domain features of a cleaned
// beat-to-beat series. Fewer than two intervals yield all-NaN output.
func TimeDomainOf(bbi []float64) TimeDomain {
	if len(bbi) < 2 {
		return TimeDomain{
			MeanRR: math.NaN(), MedianRR: math.NaN(), RangeRR: math.NaN(),
			SDNN: math.NaN(), RMSSD: math.NaN(), SDSD: math.NaN(),
			NN50: math.NaN(), PNN50: math.NaN(), NN20: math.NaN(), PNN20: math.NaN(),
			MeanHR: math.NaN(), StdHR: math.NaN(), MinHR: math.NaN(), MaxHR: math.NaN(),
		}
	}

	sorted := make([]float64, len(bbi))
	copy(sorted, bbi)
	sort.Float64s(sorted)

	diffs := series.Diff(bbi)
	var sumSq float64
	var nn50, nn20 float64
	for _, d := range diffs {
		sumSq += d * d
		if math.Abs(d) > 50 {
			nn50++
		}
		if math.Abs(d) > 20 {
			nn20++
		}
	}

	hr := make([]float64, len(bbi))
	for i, v := range bbi {
		hr[i] = 60000 / v
	}

	return TimeDomain{
		MeanRR:   stat.Mean(bbi, nil),
		MedianRR: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		RangeRR:  sorted[len(sorted)-1] - sorted[0],
		SDNN:     stat.StdDev(bbi, nil),
		RMSSD:    math.Sqrt(sumSq / float64(len(diffs))),
		SDSD:     stat.StdDev(diffs, nil),
		NN50:     nn50,
		PNN50:    nn50 / float64(len(diffs)) * 100,
		NN20:     nn20,
		PNN20:    nn20 / float64(len(diffs)) * 100,
		MeanHR:   stat.Mean(hr, nil),
		StdHR:    stat.StdDev(hr, nil),
		MinHR:    series.Min(hr),
		MaxHR:    series.Max(hr),
	}
}

// TimeDomainResult carries one user's time-domain features, or the
// error that prevented computing them.
type TimeDomainResult struct {
	Features TimeDomain
	Err      error
}

// TimeDomainFeatures computes the time-domain HRV features of each
// selected user over the window, after cleaning the interval series.
func TimeDomainFeatures(src Source, users any, start, end *time.Time, opts FilterOptions) (map[string]TimeDomainResult, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]TimeDomainResult, len(ids))
	for _, id := range ids {
		bbi, err := loadIntervals(src, id, start, end, opts)
		if err != nil {
			out[id] = TimeDomainResult{Err: err}
			continue
		}
		out[id] = TimeDomainResult{Features: TimeDomainOf(bbi)}
	}
	return out, nil
}

// loadIntervals reads and cleans a user's beat-to-beat series.
func loadIntervals(src Source, user string, start, end *time.Time, opts FilterOptions) ([]float64, error) {
	samples, err := src.LoadBBI(user, start, end)
	if err != nil {
		return nil, err
	}
	bbi := make([]float64, len(samples))
	for i, s := range samples {
		bbi[i] = s.Value
	}
	return FilterBBI(bbi, opts), nil
}
