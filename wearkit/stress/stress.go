// Package stress derives stress and body battery statistics from the
// Garmin stress stream and the daily summary: daily and period
// averages, time spent per stress band, body battery extremes and the
// battery recovered during sleep.
package stress

import (
	"fmt"
	"math"
	"time"

	"github.com/lifespan-research/wearkit/wearkit/loader"
	"github.com/lifespan-research/wearkit/wearkit/series"
)

// Source is the loader surface the stress queries need.
// *loader.Loader satisfies it.
type Source interface {
	FullIDs() []string
	LoadStress(user string, start, end *time.Time) ([]loader.StressSample, error)
	LoadDailySummary(user string, start, end *time.Time) ([]loader.DailySummary, error)
	LoadSleepSummary(user string, start, end *time.Time, sameDayFilter bool) ([]loader.SleepSummary, error)
	LoadSleepStage(user string, start, end *time.Time) ([]loader.SleepStage, error)
}

// unreliable reports whether a stress level is one of the sentinel
// values Garmin uses for unmeasurable samples.
func unreliable(level float64) bool {
	return level == -1 || level == -2 || math.IsNaN(level)
}

// SeriesResult carries one user's raw stress samples.
type SeriesResult struct {
	Samples []loader.StressSample
	Err     error
}

// Series returns the raw stress time series per user, including the
// -1/-2 sentinel samples.
func Series(src Source, users any, start, end *time.Time) (map[string]SeriesResult, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]SeriesResult, len(ids))
	for _, id := range ids {
		samples, err := src.LoadStress(id, start, end)
		out[id] = SeriesResult{Samples: samples, Err: err}
	}
	return out, nil
}

// DailyStats is one day's stress summary.
type DailyStats struct {
	Average float64
	Maximum float64
}

// StatsResult carries one user's per-day stress summaries.
type StatsResult struct {
	Days map[series.Date]DailyStats
	Err  error
}

// DailyStatistics returns average and maximum stress per calendar day
// from the daily summary. Days whose average is missing or -1 are
// dropped.
func DailyStatistics(src Source, users any, start, end *time.Time) (map[string]StatsResult, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]StatsResult, len(ids))
	for _, id := range ids {
		summaries, err := src.LoadDailySummary(id, start, end)
		if err != nil {
			out[id] = StatsResult{Err: err}
			continue
		}
		days := make(map[series.Date]DailyStats, len(summaries))
		for _, d := range summaries {
			if unreliable(d.AverageStress) {
				continue
			}
			days[d.CalendarDate] = DailyStats{Average: d.AverageStress, Maximum: d.MaximumStress}
		}
		out[id] = StatsResult{Days: days}
	}
	return out, nil
}

// AverageStress returns the per-day average stress level.
func AverageStress(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	stats, err := DailyStatistics(src, users, start, end)
	if err != nil {
		return nil, err
	}
	out := make(map[string]series.Result, len(stats))
	for id, r := range stats {
		if r.Err != nil {
			out[id] = series.Failed(r.Err)
			continue
		}
		days := make(map[series.Date]float64, len(r.Days))
		for d, s := range r.Days {
			days[d] = s.Average
		}
		out[id] = series.Daily(days)
	}
	return out, nil
}

// PeriodStats is the collapse of a user's daily stress over a window:
// the mean of the daily averages and the maximum of the daily maxima.
type PeriodStats struct {
	Average float64
	Maximum float64
	Err     error
}

// PeriodStatistics collapses the daily stress statistics over the
// whole window, rounding the average to one decimal.
func PeriodStatistics(src Source, users any, start, end *time.Time) (map[string]PeriodStats, error) {
	stats, err := DailyStatistics(src, users, start, end)
	if err != nil {
		return nil, err
	}
	out := make(map[string]PeriodStats, len(stats))
	for id, r := range stats {
		if r.Err != nil {
			out[id] = PeriodStats{Average: math.NaN(), Maximum: math.NaN(), Err: r.Err}
			continue
		}
		var avgs, maxes []float64
		for _, s := range r.Days {
			avgs = append(avgs, s.Average)
			maxes = append(maxes, s.Maximum)
		}
		out[id] = PeriodStats{
			Average: math.Round(series.Mean(avgs)*10) / 10,
			Maximum: series.Max(maxes),
		}
	}
	return out, nil
}

// AverageWeekday returns each user's mean stress over Monday-Friday
// days, rounded to one decimal.
func AverageWeekday(src Source, users any, start, end *time.Time) (map[string]series.Summary, error) {
	return averageByDayKind(src, users, start, end, false)
}

// AverageWeekend returns each user's mean stress over Saturday-Sunday
// days, rounded to one decimal.
func AverageWeekend(src Source, users any, start, end *time.Time) (map[string]series.Summary, error) {
	return averageByDayKind(src, users, start, end, true)
}

func averageByDayKind(src Source, users any, start, end *time.Time, weekend bool) (map[string]series.Summary, error) {
	stats, err := DailyStatistics(src, users, start, end)
	if err != nil {
		return nil, err
	}
	out := make(map[string]series.Summary, len(stats))
	for id, r := range stats {
		if r.Err != nil {
			out[id] = series.Summary{Value: math.NaN(), Err: r.Err}
			continue
		}
		var values []float64
		var days []series.Date
		for _, d := range series.SortedDates(r.Days) {
			if d.IsWeekend() != weekend {
				continue
			}
			values = append(values, r.Days[d].Average)
			days = append(days, d)
		}
		out[id] = series.Summary{
			Value: math.Round(series.Mean(values)*10) / 10,
			Days:  days,
		}
	}
	return out, nil
}

// Band enumerates the Garmin stress bands of the daily summary.
type Band int

const (
	BandRest          Band = iota // stress level 0-25
	BandLow                       // 25-50
	BandMedium                    // 50-75
	BandHigh                      // 75-100
	BandActivity                  // activity-masked samples
	BandUncategorized             // unreliable samples (-1/-2)
)

var bandNames = map[Band]string{
	BandRest:          "rest",
	BandLow:           "low",
	BandMedium:        "medium",
	BandHigh:          "high",
	BandActivity:      "activity",
	BandUncategorized: "uncategorized",
}

func (b Band) String() string {
	if name, ok := bandNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Band(%d)", int(b))
}

// Valid reports whether b names a known band.
func (b Band) Valid() bool {
	_, ok := bandNames[b]
	return ok
}

func (b Band) of(d loader.DailySummary) float64 {
	switch b {
	case BandRest:
		return d.RestStressMs
	case BandLow:
		return d.LowStressMs
	case BandMedium:
		return d.MediumStressMs
	case BandHigh:
		return d.HighStressMs
	case BandActivity:
		return d.ActivityStressMs
	case BandUncategorized:
		return d.UncategorizedMs
	default:
		panic("unreachable")
	}
}

// BandDuration returns the milliseconds spent per day in one stress
// band, from the daily summary.
func BandDuration(src Source, users any, band Band, start, end *time.Time) (map[string]series.Result, error) {
	if !band.Valid() {
		return nil, fmt.Errorf("stress: unknown band %d", int(band))
	}
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]series.Result, len(ids))
	for _, id := range ids {
		summaries, err := src.LoadDailySummary(id, start, end)
		if err != nil {
			out[id] = series.Failed(err)
			continue
		}
		days := make(map[series.Date]float64, len(summaries))
		for _, d := range summaries {
			days[d.CalendarDate] = band.of(d)
		}
		out[id] = series.Daily(days)
	}
	return out, nil
}

// QualifierResult carries one user's per-day stress qualifiers.
type QualifierResult struct {
	Days map[series.Date]string
	Err  error
}

// Qualifiers returns the daily stress qualifier, the label Garmin
// attaches to each day's stress profile.
func Qualifiers(src Source, users any, start, end *time.Time) (map[string]QualifierResult, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]QualifierResult, len(ids))
	for _, id := range ids {
		summaries, err := src.LoadDailySummary(id, start, end)
		if err != nil {
			out[id] = QualifierResult{Err: err}
			continue
		}
		days := make(map[series.Date]string, len(summaries))
		for _, d := range summaries {
			if d.StressQualifier != "" {
				days[d.CalendarDate] = d.StressQualifier
			}
		}
		out[id] = QualifierResult{Days: days}
	}
	return out, nil
}
