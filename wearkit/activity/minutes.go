package activity

import (
	"fmt"
	"math"
	"time"

	"github.com/lifespan-research/wearkit/wearkit/loader"
	"github.com/lifespan-research/wearkit/wearkit/series"
)

// LevelMinutes maps each activity level to an averaged figure: daily
// minutes, or the percentage of recorded time when queried as a ratio.
type LevelMinutes map[Level]float64

// LevelResult carries one user's averaged time per activity level.
type LevelResult struct {
	Minutes LevelMinutes
	Err     error
}

// dayLevels sums epoch active time per calendar day and level.
func dayLevels(epochs []loader.EpochSample) map[series.Date]map[Level]float64 {
	out := make(map[series.Date]map[Level]float64)
	for _, e := range epochs {
		var level Level
		switch e.Intensity {
		case LevelSedentary.String():
			level = LevelSedentary
		case LevelActive.String():
			level = LevelActive
		case LevelHighlyActive.String():
			level = LevelHighlyActive
		default:
			continue
		}
		day := series.DateOf(e.Timestamp)
		if out[day] == nil {
			out[day] = make(map[Level]float64, len(levelNames))
		}
		out[day][level] += e.ActiveTimeMs
	}
	return out
}

// averageLevels collapses per-day level sums into one figure per
// level. Plain averages cover only the days a level was recorded on;
// ratios are computed per day against that day's total recorded time,
// missing levels counting as zero, then averaged over all days.
func averageLevels(days map[series.Date]map[Level]float64, asRatio bool) LevelMinutes {
	out := make(LevelMinutes, len(levelNames))
	if asRatio {
		sums := make(map[Level]float64, len(levelNames))
		for _, levels := range days {
			var total float64
			for _, ms := range levels {
				total += ms
			}
			if total == 0 {
				continue
			}
			for _, level := range Levels() {
				sums[level] += levels[level] / total * 100
			}
		}
		n := float64(len(days))
		for _, level := range Levels() {
			out[level] = round1(sums[level] / n)
		}
		return out
	}
	for _, level := range Levels() {
		var sum float64
		var n int
		for _, levels := range days {
			if ms, ok := levels[level]; ok {
				sum += ms
				n++
			}
		}
		if n > 0 {
			out[level] = round1(sum / float64(n) / msPerMinute)
		}
	}
	return out
}

// AverageDailyMinutes returns each user's mean daily minutes per
// activity level, computed from the epoch stream. With asRatio the
// figures are instead the mean share of recorded time, in percent.
func AverageDailyMinutes(src Source, users any, start, end *time.Time, asRatio bool) (map[string]LevelResult, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]LevelResult, len(ids))
	for _, id := range ids {
		epochs, err := src.LoadEpochs(id, start, end)
		if err != nil {
			out[id] = LevelResult{Err: err}
			continue
		}
		days := dayLevels(epochs)
		if len(days) == 0 {
			out[id] = LevelResult{Minutes: LevelMinutes{}}
			continue
		}
		out[id] = LevelResult{Minutes: averageLevels(days, asRatio)}
	}
	return out, nil
}

// AverageLevelMinutes returns one level's figure from
// AverageDailyMinutes per user, zero when the level was never
// recorded.
func AverageLevelMinutes(src Source, users any, level Level, start, end *time.Time, asRatio bool) (map[string]series.Summary, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("activity: unknown level %d", int(level))
	}
	all, err := AverageDailyMinutes(src, users, start, end, asRatio)
	if err != nil {
		return nil, err
	}
	out := make(map[string]series.Summary, len(all))
	for id, r := range all {
		if r.Err != nil {
			out[id] = series.Summary{Value: math.NaN(), Err: r.Err}
			continue
		}
		out[id] = series.Summary{Value: r.Minutes[level]}
	}
	return out, nil
}

// WeeklyResult carries one user's averaged time per activity level for
// each day of the week.
type WeeklyResult struct {
	Days map[time.Weekday]LevelMinutes
	Err  error
}

// WeeklyMinutes returns, per user and per weekday, the mean minutes
// spent at each activity level, from the epoch stream. With asRatio
// the figures are the mean share of recorded time in percent. Only
// weekdays with recorded data appear.
func WeeklyMinutes(src Source, users any, start, end *time.Time, asRatio bool) (map[string]WeeklyResult, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]WeeklyResult, len(ids))
	for _, id := range ids {
		epochs, err := src.LoadEpochs(id, start, end)
		if err != nil {
			out[id] = WeeklyResult{Err: err}
			continue
		}
		days := dayLevels(epochs)
		byWeekday := make(map[time.Weekday]map[series.Date]map[Level]float64, 7)
		for day, levels := range days {
			wd := day.Time(time.UTC).Weekday()
			if byWeekday[wd] == nil {
				byWeekday[wd] = make(map[series.Date]map[Level]float64)
			}
			byWeekday[wd][day] = levels
		}
		weekly := make(map[time.Weekday]LevelMinutes, len(byWeekday))
		for wd, wdDays := range byWeekday {
			levels := averageLevels(wdDays, asRatio)
			// Weekdays present in the data report every level, absent
			// ones as zero.
			for _, level := range Levels() {
				if _, ok := levels[level]; !ok {
					levels[level] = 0
				}
			}
			weekly[wd] = levels
		}
		out[id] = WeeklyResult{Days: weekly}
	}
	return out, nil
}

// WeekdayLevelMinutes returns one level's Monday-Friday average from
// WeeklyMinutes per user, rounded to one decimal.
func WeekdayLevelMinutes(src Source, users any, level Level, start, end *time.Time, asRatio bool) (map[string]series.Summary, error) {
	return weeklyLevelAverage(src, users, level, start, end, asRatio, false)
}

// WeekendLevelMinutes returns one level's Saturday-Sunday average from
// WeeklyMinutes per user, rounded to one decimal.
func WeekendLevelMinutes(src Source, users any, level Level, start, end *time.Time, asRatio bool) (map[string]series.Summary, error) {
	return weeklyLevelAverage(src, users, level, start, end, asRatio, true)
}

func weeklyLevelAverage(src Source, users any, level Level, start, end *time.Time, asRatio, weekend bool) (map[string]series.Summary, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("activity: unknown level %d", int(level))
	}
	weekly, err := WeeklyMinutes(src, users, start, end, asRatio)
	if err != nil {
		return nil, err
	}
	out := make(map[string]series.Summary, len(weekly))
	for id, r := range weekly {
		if r.Err != nil {
			out[id] = series.Summary{Value: math.NaN(), Err: r.Err}
			continue
		}
		var values []float64
		for wd, levels := range r.Days {
			if isWeekend(wd) != weekend {
				continue
			}
			values = append(values, levels[level])
		}
		out[id] = series.Summary{Value: round1(series.Mean(values))}
	}
	return out, nil
}

func isWeekend(wd time.Weekday) bool {
	return wd == time.Saturday || wd == time.Sunday
}
