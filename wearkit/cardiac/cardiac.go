// Package cardiac derives heart rate and heart rate variability
// statistics: daily summary heart rates, time/frequency/nonlinear
// domain HRV features from beat-to-beat intervals, and night-windowed
// short-term HRV metrics.
package cardiac

import (
	"fmt"
	"time"

	"github.com/lifespan-research/wearkit/wearkit/loader"
	"github.com/lifespan-research/wearkit/wearkit/series"
)

// Source is the loader surface the cardiac queries need.
// *loader.Loader satisfies it. It is a superset of sleep.Source so
// night metrics can reuse the per-night sleep windows.
type Source interface {
	FullIDs() []string
	LoadDailySummary(user string, start, end *time.Time) ([]loader.DailySummary, error)
	LoadBBI(user string, start, end *time.Time) ([]loader.Sample, error)
	LoadSleepSummary(user string, start, end *time.Time, sameDayFilter bool) ([]loader.SleepSummary, error)
	LoadSleepStage(user string, start, end *time.Time) ([]loader.SleepStage, error)
}

// HRStatistic enumerates the per-day heart rates of the daily summary.
type HRStatistic int

const (
	RestingHR HRStatistic = iota
	AverageHR
	MaximumHR
	MinimumHR
)

var hrStatisticNames = map[HRStatistic]string{
	RestingHR: "restingHeartRate",
	AverageHR: "averageHeartRate",
	MaximumHR: "maxHeartRate",
	MinimumHR: "minHeartRate",
}

func (s HRStatistic) String() string {
	if name, ok := hrStatisticNames[s]; ok {
		return name
	}
	return fmt.Sprintf("HRStatistic(%d)", int(s))
}

// Valid reports whether s names a known statistic.
func (s HRStatistic) Valid() bool {
	_, ok := hrStatisticNames[s]
	return ok
}

func (s HRStatistic) of(d loader.DailySummary) float64 {
	switch s {
	case RestingHR:
		return d.RestingHeartRate
	case AverageHR:
		return d.AverageHeartRate
	case MaximumHR:
		return d.MaximumHeartRate
	case MinimumHR:
		return d.MinimumHeartRate
	default:
		panic("unreachable")
	}
}

// Daily computes one heart rate statistic per calendar day for each
// selected user. A failing user keeps its key with the error recorded.
func Daily(src Source, users any, stat HRStatistic, start, end *time.Time) (map[string]series.Result, error) {
	if !stat.Valid() {
		return nil, fmt.Errorf("cardiac: unknown statistic %d", int(stat))
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
			days[d.CalendarDate] = stat.of(d)
		}
		out[id] = series.Daily(days)
	}
	return out, nil
}

// Collapsed computes one heart rate statistic per user as the
// NaN-aware mean over days, together with the contributing days.
func Collapsed(src Source, users any, stat HRStatistic, start, end *time.Time) (map[string]series.Summary, error) {
	daily, err := Daily(src, users, stat, start, end)
	if err != nil {
		return nil, err
	}
	out := make(map[string]series.Summary, len(daily))
	for id, r := range daily {
		out[id] = series.Collapse(r)
	}
	return out, nil
}

// RestHeartRate returns the per-day heart rate at rest.
func RestHeartRate(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	return Daily(src, users, RestingHR, start, end)
}

// AvgHeartRate returns the per-day average heart rate.
func AvgHeartRate(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	return Daily(src, users, AverageHR, start, end)
}

// MaxHeartRate returns the per-day maximum heart rate.
func MaxHeartRate(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	return Daily(src, users, MaximumHR, start, end)
}

// MinHeartRate returns the per-day minimum heart rate.
func MinHeartRate(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	return Daily(src, users, MinimumHR, start, end)
}
