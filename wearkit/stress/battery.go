package stress

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/lifespan-research/wearkit/wearkit/loader"
	"github.com/lifespan-research/wearkit/wearkit/series"
	"github.com/lifespan-research/wearkit/wearkit/sleep"
)

// BodyBattery returns the raw body battery time series per user.
func BodyBattery(src Source, users any, start, end *time.Time) (map[string]SeriesResult, error) {
	return Series(src, users, start, end)
}

// MinBodyBattery returns the lowest body battery reading per calendar
// day.
func MinBodyBattery(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	return batteryByDay(src, users, start, end, series.Min)
}

// MaxBodyBattery returns the highest body battery reading per
// calendar day.
func MaxBodyBattery(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	return batteryByDay(src, users, start, end, series.Max)
}

func batteryByDay(src Source, users any, start, end *time.Time, collapse func([]float64) float64) (map[string]series.Result, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]series.Result, len(ids))
	for _, id := range ids {
		samples, err := src.LoadStress(id, start, end)
		if err != nil {
			out[id] = series.Failed(err)
			continue
		}
		byDay := make(map[series.Date][]float64)
		for _, s := range samples {
			if math.IsNaN(s.BodyBattery) {
				continue
			}
			d := series.DateOf(s.Timestamp)
			byDay[d] = append(byDay[d], s.BodyBattery)
		}
		days := make(map[series.Date]float64, len(byDay))
		for d, values := range byDay {
			days[d] = collapse(values)
		}
		out[id] = series.Daily(days)
	}
	return out, nil
}

// SleepRecovery returns the body battery gained over each night: the
// last reading of the sleep window minus the first.
func SleepRecovery(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	return nightBattery(src, users, start, end, func(values []float64) float64 {
		return values[len(values)-1] - values[0]
	})
}

// WakingBodyBattery returns the body battery level at the end of each
// night.
func WakingBodyBattery(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	return nightBattery(src, users, start, end, func(values []float64) float64 {
		return values[len(values)-1]
	})
}

// SleepOnsetBodyBattery returns the body battery level at the start
// of each night.
func SleepOnsetBodyBattery(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	return nightBattery(src, users, start, end, func(values []float64) float64 {
		return values[0]
	})
}

func nightBattery(src Source, users any, start, end *time.Time, pick func([]float64) float64) (map[string]series.Result, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]series.Result, len(ids))
	for _, id := range ids {
		days, err := nightBatteryDays(src, id, start, end, pick)
		if err != nil {
			out[id] = series.Failed(err)
			continue
		}
		out[id] = series.Daily(days)
	}
	return out, nil
}

func nightBatteryDays(src Source, user string, start, end *time.Time, pick func([]float64) float64) (map[series.Date]float64, error) {
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
		samples, err := src.LoadStress(user, &w.Bedtime, &w.WakeupTime)
		if err != nil {
			return nil, err
		}
		sort.Slice(samples, func(i, j int) bool {
			return samples[i].Timestamp.Before(samples[j].Timestamp)
		})
		var values []float64
		for _, s := range samples {
			if !math.IsNaN(s.BodyBattery) {
				values = append(values, s.BodyBattery)
			}
		}
		if len(values) == 0 {
			continue
		}
		days[date] = pick(values)
	}
	return days, nil
}

// NightAverageStress returns the mean stress level of each night,
// excluding unreliable samples and the mid-sleep awakenings located
// on the night's hypnogram, rounded to one decimal.
func NightAverageStress(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]series.Result, len(ids))
	for _, id := range ids {
		days, err := nightStressDays(src, id, start, end)
		if err != nil {
			out[id] = series.Failed(err)
			continue
		}
		out[id] = series.Daily(days)
	}
	return out, nil
}

func nightStressDays(src Source, user string, start, end *time.Time) (map[series.Date]float64, error) {
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
		samples, err := src.LoadStress(user, &w.Bedtime, &w.WakeupTime)
		if err != nil {
			return nil, err
		}
		samples, err = dropAwake(src, user, date, samples)
		if err != nil {
			return nil, err
		}
		var levels []float64
		for _, s := range samples {
			if !unreliable(s.Level) {
				levels = append(levels, s.Level)
			}
		}
		if len(levels) == 0 {
			continue
		}
		days[date] = math.Round(stat.Mean(levels, nil)*10) / 10
	}
	return days, nil
}

// dropAwake removes stress samples recorded inside a mid-sleep
// awakening.
func dropAwake(src Source, user string, date series.Date, samples []loader.StressSample) ([]loader.StressSample, error) {
	dayStart := time.Date(date.Year, date.Month, date.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	dayEnd := dayStart.AddDate(0, 0, 2)
	hypnograms, err := sleep.Hypnograms(src, user, &dayStart, &dayEnd, time.Minute)
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
