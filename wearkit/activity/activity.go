// Package activity derives movement statistics from the per-epoch
// activity stream and the daily summary: raw activity and step series,
// daily step and distance counts, intensity minutes, and average time
// spent per activity level split by weekday and weekend.
package activity

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lifespan-research/wearkit/wearkit/loader"
	"github.com/lifespan-research/wearkit/wearkit/series"
)

// Source is the loader surface the activity queries need.
// *loader.Loader satisfies it.
type Source interface {
	FullIDs() []string
	LoadEpochs(user string, start, end *time.Time) ([]loader.EpochSample, error)
	LoadDailySummary(user string, start, end *time.Time) ([]loader.DailySummary, error)
}

// Level enumerates the activity intensities the epoch stream tags
// samples with.
type Level int

const (
	LevelSedentary Level = iota
	LevelActive
	LevelHighlyActive
)

var levelNames = map[Level]string{
	LevelSedentary:    "SEDENTARY",
	LevelActive:       "ACTIVE",
	LevelHighlyActive: "HIGHLY_ACTIVE",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Valid reports whether l names a known activity level.
func (l Level) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// Levels lists all activity levels in ascending order of intensity.
func Levels() []Level {
	return []Level{LevelSedentary, LevelActive, LevelHighlyActive}
}

const msPerMinute = 1000 * 60

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// SeriesResult carries one user's epochs for a single activity level.
type SeriesResult struct {
	Samples []loader.EpochSample
	Err     error
}

// Series returns the raw epoch samples tagged with one activity level,
// per user.
func Series(src Source, users any, level Level, start, end *time.Time) (map[string]SeriesResult, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("activity: unknown level %d", int(level))
	}
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]SeriesResult, len(ids))
	for _, id := range ids {
		epochs, err := src.LoadEpochs(id, start, end)
		if err != nil {
			out[id] = SeriesResult{Err: err}
			continue
		}
		var samples []loader.EpochSample
		for _, e := range epochs {
			if e.Intensity == level.String() {
				samples = append(samples, e)
			}
		}
		out[id] = SeriesResult{Samples: samples}
	}
	return out, nil
}

// StepsResult carries one user's step counts summed per epoch
// timestamp.
type StepsResult struct {
	Samples []loader.Sample
	Err     error
}

// StepsSeries returns per-epoch step counts. Epochs share a timestamp
// when a 15-minute window spans more than one intensity, so steps are
// summed per timestamp.
func StepsSeries(src Source, users any, start, end *time.Time) (map[string]StepsResult, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]StepsResult, len(ids))
	for _, id := range ids {
		epochs, err := src.LoadEpochs(id, start, end)
		if err != nil {
			out[id] = StepsResult{Err: err}
			continue
		}
		byTime := make(map[time.Time]float64, len(epochs))
		for _, e := range epochs {
			byTime[e.Timestamp] += e.Steps
		}
		samples := make([]loader.Sample, 0, len(byTime))
		for ts, steps := range byTime {
			samples = append(samples, loader.Sample{Timestamp: ts, Value: steps})
		}
		sort.Slice(samples, func(i, j int) bool {
			return samples[i].Timestamp.Before(samples[j].Timestamp)
		})
		out[id] = StepsResult{Samples: samples}
	}
	return out, nil
}

// dailyField returns one daily summary column keyed by calendar day.
func dailyField(src Source, users any, start, end *time.Time, field func(loader.DailySummary) float64) (map[string]series.Result, error) {
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
			days[d.CalendarDate] = field(d)
		}
		out[id] = series.Daily(days)
	}
	return out, nil
}

// DailySteps returns the total step count per calendar day from the
// daily summary.
func DailySteps(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	return dailyField(src, users, start, end, func(d loader.DailySummary) float64 { return d.Steps })
}

// DailyDistance returns the distance covered per calendar day, in
// meters.
func DailyDistance(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	return dailyField(src, users, start, end, func(d loader.DailySummary) float64 { return d.DistanceMeters })
}

// DailyStepsGoal returns the device step goal per calendar day.
func DailyStepsGoal(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	return dailyField(src, users, start, end, func(d loader.DailySummary) float64 { return d.StepsGoal })
}

// Collapsed reduces a per-day query to one NaN-aware mean per user,
// with the contributing days.
func Collapsed(daily map[string]series.Result) map[string]series.Summary {
	out := make(map[string]series.Summary, len(daily))
	for id, r := range daily {
		out[id] = series.Collapse(r)
	}
	return out
}

// Intensity is one day's moderate and vigorous intensity time, in
// minutes.
type Intensity struct {
	Moderate float64
	Vigorous float64
}

// Merged folds the pair into a single figure counting vigorous time
// double, the convention behind weekly intensity targets.
func (i Intensity) Merged() float64 {
	return i.Moderate + 2*i.Vigorous
}

// IntensityResult carries one user's per-day intensity minutes.
type IntensityResult struct {
	Days map[series.Date]Intensity
	Err  error
}

// DailyIntensity returns moderate and vigorous intensity minutes per
// calendar day from the daily summary.
func DailyIntensity(src Source, users any, start, end *time.Time) (map[string]IntensityResult, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]IntensityResult, len(ids))
	for _, id := range ids {
		summaries, err := src.LoadDailySummary(id, start, end)
		if err != nil {
			out[id] = IntensityResult{Err: err}
			continue
		}
		days := make(map[series.Date]Intensity, len(summaries))
		for _, d := range summaries {
			days[d.CalendarDate] = Intensity{
				Moderate: d.ModerateIntensityMs / msPerMinute,
				Vigorous: d.VigorousIntensityMs / msPerMinute,
			}
		}
		out[id] = IntensityResult{Days: days}
	}
	return out, nil
}

// DailyMergedIntensity returns the merged intensity minutes per
// calendar day, vigorous time counted double.
func DailyMergedIntensity(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	intensity, err := DailyIntensity(src, users, start, end)
	if err != nil {
		return nil, err
	}
	out := make(map[string]series.Result, len(intensity))
	for id, r := range intensity {
		if r.Err != nil {
			out[id] = series.Failed(r.Err)
			continue
		}
		days := make(map[series.Date]float64, len(r.Days))
		for d, v := range r.Days {
			days[d] = v.Merged()
		}
		out[id] = series.Daily(days)
	}
	return out, nil
}
