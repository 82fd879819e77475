package cardiac

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/lifespan-research/wearkit/wearkit/loader"
	"github.com/lifespan-research/wearkit/wearkit/series"
	"github.com/lifespan-research/wearkit/wearkit/sleep"
)

// nightBucket is the short-term analysis window the night is split
// into.
const nightBucket = 5 * time.Minute

// NightOptions controls the night-windowed HRV metrics.
type NightOptions struct {
	// Coverage is the fraction of expected beats a bucket must hold
	// to enter the nightly mean. Zero means 0.7.
	Coverage float64
	// FilterAwake drops beats recorded during mid-sleep awakenings,
	// located on the night's hypnogram.
	FilterAwake bool
	// Resolution is the hypnogram resolution used to locate
	// awakenings. Zero means one minute.
	Resolution time.Duration
	// MinPeriods is the minimum number of accepted buckets a night
	// needs for the spectral metrics. Zero means 10.
	MinPeriods int
}

func (o NightOptions) withDefaults() NightOptions {
	if o.Coverage == 0 {
		o.Coverage = 0.7
	}
	if o.Resolution <= 0 {
		o.Resolution = time.Minute
	}
	if o.MinPeriods == 0 {
		o.MinPeriods = 10
	}
	return o
}

// NightRMSSD computes per-night RMSSD: the mean over five-minute
// buckets with sufficient beat coverage, rounded to one decimal.
func NightRMSSD(src Source, users any, start, end *time.Time, opts NightOptions) (map[string]series.Result, error) {
	return nightStatistic(src, users, start, end, opts, 1, rmssdOf)
}

// NightSDNN computes per-night SDNN over five-minute buckets.
func NightSDNN(src Source, users any, start, end *time.Time, opts NightOptions) (map[string]series.Result, error) {
	return nightStatistic(src, users, start, end, opts, 1, sdnnOf)
}

// NightLF computes per-night absolute LF power over five-minute
// buckets; nights with fewer than MinPeriods accepted buckets are
// dropped.
func NightLF(src Source, users any, start, end *time.Time, opts NightOptions) (map[string]series.Result, error) {
	opts = opts.withDefaults()
	return nightStatistic(src, users, start, end, opts, opts.MinPeriods, lfOf)
}

// NightHF computes per-night absolute HF power over five-minute
// buckets; nights with fewer than MinPeriods accepted buckets are
// dropped.
func NightHF(src Source, users any, start, end *time.Time, opts NightOptions) (map[string]series.Result, error) {
	opts = opts.withDefaults()
	return nightStatistic(src, users, start, end, opts, opts.MinPeriods, hfOf)
}

// NightLFHF computes the per-night ratio of LF to HF power, for the
// nights where both are available.
func NightLFHF(src Source, users any, start, end *time.Time, opts NightOptions) (map[string]series.Result, error) {
	lf, err := NightLF(src, users, start, end, opts)
	if err != nil {
		return nil, err
	}
	hf, err := NightHF(src, users, start, end, opts)
	if err != nil {
		return nil, err
	}
	out := make(map[string]series.Result, len(lf))
	for id, lfr := range lf {
		hfr := hf[id]
		if lfr.Err != nil {
			out[id] = lfr
			continue
		}
		if hfr.Err != nil {
			out[id] = hfr
			continue
		}
		days := make(map[series.Date]float64)
		for d, lfv := range lfr.Days {
			if hfv, ok := hfr.Days[d]; ok && hfv != 0 {
				days[d] = lfv / hfv
			}
		}
		out[id] = series.Daily(days)
	}
	return out, nil
}

func rmssdOf(bbi []float64) float64 {
	diffs := series.Diff(bbi)
	if len(diffs) == 0 {
		return math.NaN()
	}
	var sumSq float64
	for _, d := range diffs {
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(diffs)))
}

func sdnnOf(bbi []float64) float64 {
	if len(bbi) < 2 {
		return math.NaN()
	}
	return stat.StdDev(bbi, nil)
}

func lfOf(bbi []float64) float64 { return FrequencyDomainOf(bbi).LF }
func hfOf(bbi []float64) float64 { return FrequencyDomainOf(bbi).HF }

func nightStatistic(src Source, users any, start, end *time.Time, opts NightOptions, minPeriods int, fn func([]float64) float64) (map[string]series.Result, error) {
	opts = opts.withDefaults()
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]series.Result, len(ids))
	for _, id := range ids {
		days, err := nightDays(src, id, start, end, opts, minPeriods, fn)
		if err != nil {
			out[id] = series.Failed(err)
			continue
		}
		out[id] = series.Daily(days)
	}
	return out, nil
}

func nightDays(src Source, user string, start, end *time.Time, opts NightOptions, minPeriods int, fn func([]float64) float64) (map[series.Date]float64, error) {
	windows, err := sleep.Windows(src, user, start, end)
	if err != nil {
		return nil, err
	}
	r := windows[user]
	if r.Err != nil {
		return nil, r.Err
	}

	days := make(map[series.Date]float64, len(r.Days))
	for _, date := range series.SortedDates(r.Days) {
		w := r.Days[date]
		samples, err := src.LoadBBI(user, &w.Bedtime, &w.WakeupTime)
		if err != nil {
			return nil, err
		}
		if opts.FilterAwake {
			samples, err = dropAwake(src, user, date, samples, opts.Resolution)
			if err != nil {
				return nil, err
			}
		}

		values := nightBucketValues(samples, opts.Coverage, minPeriods > 1, fn)
		if len(values) < minPeriods {
			continue
		}
		days[date] = math.Round(stat.Mean(values, nil)*10) / 10
	}
	return days, nil
}

// nightBucketValues splits the night's beats into five-minute buckets
// and evaluates fn on every bucket that holds more than five beats
// and more than coverage of the count its mean interval predicts.
func nightBucketValues(samples []loader.Sample, coverage float64, dropNaN bool, fn func([]float64) float64) []float64 {
	buckets := make(map[time.Time][]float64)
	for _, s := range samples {
		key := s.Timestamp.Truncate(nightBucket)
		buckets[key] = append(buckets[key], s.Value)
	}

	var out []float64
	for _, bbi := range buckets {
		if len(bbi) <= 5 {
			continue
		}
		mean := stat.Mean(bbi, nil)
		expected := nightBucket.Seconds() / (mean / 1000)
		if float64(len(bbi)) <= expected*coverage {
			continue
		}
		v := fn(bbi)
		if v == 0 || (dropNaN && math.IsNaN(v)) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// dropAwake removes beats recorded inside a mid-sleep awakening, as
// located on the night's hypnogram.
func dropAwake(src Source, user string, date series.Date, samples []loader.Sample, resolution time.Duration) ([]loader.Sample, error) {
	dayStart := time.Date(date.Year, date.Month, date.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	dayEnd := dayStart.AddDate(0, 0, 2)
	hypnograms, err := sleep.Hypnograms(src, user, &dayStart, &dayEnd, resolution)
	if err != nil {
		return nil, err
	}
	h, ok := hypnograms[date]
	if !ok {
		return samples, nil
	}

	starts, ends := h.Awakenings()
	out := samples[:0]
	for _, s := range samples {
		inside := false
		for i := range starts {
			if s.Timestamp.After(starts[i]) && s.Timestamp.Before(ends[i]) {
				inside = true
				break
			}
		}
		if !inside {
			out = append(out, s)
		}
	}
	return out, nil
}
