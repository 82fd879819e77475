package activity

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifespan-research/wearkit/wearkit/loader"
	"github.com/lifespan-research/wearkit/wearkit/series"
)

type fakeSource struct {
	users     []string
	epochs    map[string][]loader.EpochSample
	summaries map[string][]loader.DailySummary
	errs      map[string]error
}

func (f *fakeSource) FullIDs() []string { return f.users }

func (f *fakeSource) LoadEpochs(user string, _, _ *time.Time) ([]loader.EpochSample, error) {
	if err := f.errs[user]; err != nil {
		return nil, err
	}
	return f.epochs[user], nil
}

func (f *fakeSource) LoadDailySummary(user string, _, _ *time.Time) ([]loader.DailySummary, error) {
	if err := f.errs[user]; err != nil {
		return nil, err
	}
	return f.summaries[user], nil
}

func at(day, hour int) time.Time {
	return time.Date(2023, 1, day, hour, 0, 0, 0, time.UTC)
}

func epoch(day, hour int, intensity string, activeMin, steps float64) loader.EpochSample {
	return loader.EpochSample{
		Timestamp:    at(day, hour),
		Intensity:    intensity,
		ActiveTimeMs: activeMin * msPerMinute,
		Steps:        steps,
	}
}

func TestSeries(t *testing.T) {
	src := &fakeSource{
		users: []string{"user-01_a", "user-02_b"},
		epochs: map[string][]loader.EpochSample{
			"user-01_a": {
				epoch(2, 10, "ACTIVE", 10, 500),
				epoch(2, 11, "SEDENTARY", 15, 0),
				epoch(2, 12, "ACTIVE", 8, 300),
			},
		},
		errs: map[string]error{"user-02_b": errors.New("corrupt export")},
	}

	out, err := Series(src, "all", LevelActive, nil, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.NoError(t, out["user-01_a"].Err)
	require.Len(t, out["user-01_a"].Samples, 2)
	assert.Equal(t, at(2, 10), out["user-01_a"].Samples[0].Timestamp)
	assert.Equal(t, at(2, 12), out["user-01_a"].Samples[1].Timestamp)
	assert.Error(t, out["user-02_b"].Err)

	_, err = Series(src, "all", Level(9), nil, nil)
	assert.Error(t, err)
}

func TestStepsSeries(t *testing.T) {
	src := &fakeSource{
		users: []string{"user-01_a"},
		epochs: map[string][]loader.EpochSample{
			"user-01_a": {
				epoch(2, 11, "SEDENTARY", 12, 20),
				epoch(2, 10, "ACTIVE", 10, 400),
				epoch(2, 10, "SEDENTARY", 5, 30),
			},
		},
	}

	out, err := StepsSeries(src, "all", nil, nil)
	require.NoError(t, err)
	samples := out["user-01_a"].Samples
	require.Len(t, samples, 2)
	// Same-timestamp epochs collapse to one summed sample, output is
	// chronological.
	assert.Equal(t, at(2, 10), samples[0].Timestamp)
	assert.Equal(t, 430.0, samples[0].Value)
	assert.Equal(t, at(2, 11), samples[1].Timestamp)
	assert.Equal(t, 20.0, samples[1].Value)
}

func TestDailySummaryFields(t *testing.T) {
	jan2 := series.Date{Year: 2023, Month: time.January, Day: 2}
	jan3 := series.Date{Year: 2023, Month: time.January, Day: 3}
	src := &fakeSource{
		users: []string{"user-01_a", "user-02_b"},
		summaries: map[string][]loader.DailySummary{
			"user-01_a": {
				{CalendarDate: jan2, Steps: 8000, DistanceMeters: 6000, StepsGoal: 10000},
				{CalendarDate: jan3, Steps: 12000, DistanceMeters: 9000, StepsGoal: 10000},
			},
		},
		errs: map[string]error{"user-02_b": errors.New("corrupt export")},
	}

	steps, err := DailySteps(src, "all", nil, nil)
	require.NoError(t, err)
	require.True(t, steps["user-01_a"].OK())
	assert.Equal(t, 8000.0, steps["user-01_a"].Days[jan2])
	assert.Equal(t, 12000.0, steps["user-01_a"].Days[jan3])
	assert.False(t, steps["user-02_b"].OK())

	distance, err := DailyDistance(src, "user-01_a", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 9000.0, distance["user-01_a"].Days[jan3])

	goal, err := DailyStepsGoal(src, "user-01_a", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, goal["user-01_a"].Days[jan2])

	collapsed := Collapsed(steps)
	assert.Equal(t, 10000.0, collapsed["user-01_a"].Value)
	assert.Len(t, collapsed["user-01_a"].Days, 2)
	assert.Error(t, collapsed["user-02_b"].Err)
}

func TestDailyIntensity(t *testing.T) {
	jan2 := series.Date{Year: 2023, Month: time.January, Day: 2}
	src := &fakeSource{
		users: []string{"user-01_a"},
		summaries: map[string][]loader.DailySummary{
			"user-01_a": {
				{CalendarDate: jan2, ModerateIntensityMs: 20 * msPerMinute, VigorousIntensityMs: 10 * msPerMinute},
			},
		},
	}

	out, err := DailyIntensity(src, "all", nil, nil)
	require.NoError(t, err)
	got := out["user-01_a"].Days[jan2]
	assert.Equal(t, 20.0, got.Moderate)
	assert.Equal(t, 10.0, got.Vigorous)
	assert.Equal(t, 40.0, got.Merged())

	merged, err := DailyMergedIntensity(src, "all", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 40.0, merged["user-01_a"].Days[jan2])
}

func minuteSource() *fakeSource {
	return &fakeSource{
		users: []string{"user-01_a"},
		epochs: map[string][]loader.EpochSample{
			"user-01_a": {
				epoch(2, 10, "SEDENTARY", 60, 0),
				epoch(2, 12, "ACTIVE", 30, 2000),
				epoch(3, 10, "SEDENTARY", 30, 0),
			},
		},
	}
}

func TestAverageDailyMinutes(t *testing.T) {
	out, err := AverageDailyMinutes(minuteSource(), "all", nil, nil, false)
	require.NoError(t, err)
	minutes := out["user-01_a"].Minutes
	// Sedentary averages over both days, active only over the day it
	// was recorded on.
	assert.Equal(t, 45.0, minutes[LevelSedentary])
	assert.Equal(t, 30.0, minutes[LevelActive])
	_, ok := minutes[LevelHighlyActive]
	assert.False(t, ok)
}

func TestAverageDailyMinutesAsRatio(t *testing.T) {
	out, err := AverageDailyMinutes(minuteSource(), "all", nil, nil, true)
	require.NoError(t, err)
	minutes := out["user-01_a"].Minutes
	// Day one splits 60/30, day two is all sedentary, so the shares
	// average (66.7+100)/2 and (33.3+0)/2.
	assert.InDelta(t, 83.3, minutes[LevelSedentary], 0.05)
	assert.InDelta(t, 16.7, minutes[LevelActive], 0.05)
	assert.Equal(t, 0.0, minutes[LevelHighlyActive])
}

func TestAverageLevelMinutes(t *testing.T) {
	out, err := AverageLevelMinutes(minuteSource(), "all", LevelHighlyActive, nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out["user-01_a"].Value)

	out, err = AverageLevelMinutes(minuteSource(), "all", LevelSedentary, nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 45.0, out["user-01_a"].Value)

	_, err = AverageLevelMinutes(minuteSource(), "all", Level(9), nil, nil, false)
	assert.Error(t, err)
}

func weeklySource() *fakeSource {
	// January 2nd 2023 is a Monday, the 7th a Saturday.
	return &fakeSource{
		users: []string{"user-01_a"},
		epochs: map[string][]loader.EpochSample{
			"user-01_a": {
				epoch(2, 10, "SEDENTARY", 60, 0),
				epoch(2, 12, "ACTIVE", 30, 2000),
				epoch(7, 10, "SEDENTARY", 20, 0),
			},
		},
	}
}

func TestWeeklyMinutes(t *testing.T) {
	out, err := WeeklyMinutes(weeklySource(), "all", nil, nil, false)
	require.NoError(t, err)
	days := out["user-01_a"].Days
	require.Len(t, days, 2)
	assert.Equal(t, 60.0, days[time.Monday][LevelSedentary])
	assert.Equal(t, 30.0, days[time.Monday][LevelActive])
	assert.Equal(t, 0.0, days[time.Monday][LevelHighlyActive])
	assert.Equal(t, 20.0, days[time.Saturday][LevelSedentary])
	assert.Equal(t, 0.0, days[time.Saturday][LevelActive])
}

func TestWeekdayWeekendLevelMinutes(t *testing.T) {
	weekday, err := WeekdayLevelMinutes(weeklySource(), "all", LevelSedentary, nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 60.0, weekday["user-01_a"].Value)

	weekend, err := WeekendLevelMinutes(weeklySource(), "all", LevelSedentary, nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 20.0, weekend["user-01_a"].Value)

	weekendActive, err := WeekendLevelMinutes(weeklySource(), "all", LevelActive, nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 0.0, weekendActive["user-01_a"].Value)
}
