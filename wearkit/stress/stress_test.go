package stress

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifespan-research/wearkit/wearkit/loader"
	"github.com/lifespan-research/wearkit/wearkit/series"
)

type fakeSource struct {
	users     []string
	samples   map[string][]loader.StressSample
	dailies   map[string][]loader.DailySummary
	dailyErr  map[string]error
	summaries map[string][]loader.SleepSummary
	stages    map[string][]loader.SleepStage
}

func (f *fakeSource) FullIDs() []string { return f.users }

func (f *fakeSource) LoadStress(user string, start, end *time.Time) ([]loader.StressSample, error) {
	var out []loader.StressSample
	for _, s := range f.samples[user] {
		if start != nil && s.Timestamp.Before(*start) {
			continue
		}
		if end != nil && s.Timestamp.After(*end) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSource) LoadDailySummary(user string, _, _ *time.Time) ([]loader.DailySummary, error) {
	if err := f.dailyErr[user]; err != nil {
		return nil, err
	}
	return f.dailies[user], nil
}

func (f *fakeSource) LoadSleepSummary(user string, _, _ *time.Time, _ bool) ([]loader.SleepSummary, error) {
	return f.summaries[user], nil
}

func (f *fakeSource) LoadSleepStage(user string, _, _ *time.Time) ([]loader.SleepStage, error) {
	return f.stages[user], nil
}

var (
	monday   = series.Date{Year: 2023, Month: time.January, Day: 2}
	tuesday  = series.Date{Year: 2023, Month: time.January, Day: 3}
	saturday = series.Date{Year: 2023, Month: time.January, Day: 7}
)

func statsSource() *fakeSource {
	return &fakeSource{
		users: []string{"user-01_a", "user-02_b"},
		dailies: map[string][]loader.DailySummary{
			"user-01_a": {
				{CalendarDate: monday, AverageStress: 30, MaximumStress: 71, RestStressMs: 3600000, StressQualifier: "BALANCED"},
				{CalendarDate: tuesday, AverageStress: -1, MaximumStress: 99},
				{CalendarDate: saturday, AverageStress: 50, MaximumStress: 88, RestStressMs: 1800000, StressQualifier: "STRESSFUL"},
			},
		},
		dailyErr: map[string]error{"user-02_b": errors.New("corrupt export")},
	}
}

func TestDailyStatistics(t *testing.T) {
	out, err := DailyStatistics(statsSource(), "all", nil, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Error(t, out["user-02_b"].Err)

	r := out["user-01_a"]
	require.NoError(t, r.Err)
	// The -1 average day is unmeasured and dropped.
	require.Len(t, r.Days, 2)
	assert.Equal(t, DailyStats{Average: 30, Maximum: 71}, r.Days[monday])
	assert.Equal(t, DailyStats{Average: 50, Maximum: 88}, r.Days[saturday])
}

func TestPeriodStatistics(t *testing.T) {
	out, err := PeriodStatistics(statsSource(), "user-01_a", nil, nil)
	require.NoError(t, err)
	s := out["user-01_a"]
	require.NoError(t, s.Err)
	assert.InDelta(t, 40, s.Average, 1e-9)
	assert.InDelta(t, 88, s.Maximum, 1e-9)
}

func TestAverageWeekdayWeekend(t *testing.T) {
	weekday, err := AverageWeekday(statsSource(), "user-01_a", nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 30, weekday["user-01_a"].Value, 1e-9)
	assert.Equal(t, []series.Date{monday}, weekday["user-01_a"].Days)

	weekend, err := AverageWeekend(statsSource(), "user-01_a", nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 50, weekend["user-01_a"].Value, 1e-9)
	assert.Equal(t, []series.Date{saturday}, weekend["user-01_a"].Days)
}

func TestBandDuration(t *testing.T) {
	out, err := BandDuration(statsSource(), "user-01_a", BandRest, nil, nil)
	require.NoError(t, err)
	r := out["user-01_a"]
	require.True(t, r.OK())
	assert.Equal(t, 3600000.0, r.Days[monday])
	assert.Equal(t, 1800000.0, r.Days[saturday])

	_, err = BandDuration(statsSource(), "user-01_a", Band(42), nil, nil)
	require.Error(t, err)
}

func TestQualifiers(t *testing.T) {
	out, err := Qualifiers(statsSource(), "user-01_a", nil, nil)
	require.NoError(t, err)
	r := out["user-01_a"]
	require.NoError(t, r.Err)
	assert.Equal(t, "BALANCED", r.Days[monday])
	assert.Equal(t, "STRESSFUL", r.Days[saturday])
	// The day without a qualifier stays absent.
	_, ok := r.Days[tuesday]
	assert.False(t, ok)
}

func TestBodyBatteryByDay(t *testing.T) {
	day1 := time.Date(2023, 1, 2, 8, 0, 0, 0, time.UTC)
	day2 := time.Date(2023, 1, 3, 8, 0, 0, 0, time.UTC)
	src := &fakeSource{
		users: []string{"user-01_a"},
		samples: map[string][]loader.StressSample{
			"user-01_a": {
				{Timestamp: day1, Level: 25, BodyBattery: 80},
				{Timestamp: day1.Add(time.Hour), Level: 40, BodyBattery: 55},
				{Timestamp: day2, Level: 30, BodyBattery: math.NaN()},
				{Timestamp: day2.Add(time.Hour), Level: 35, BodyBattery: 60},
			},
		},
	}

	min, err := MinBodyBattery(src, "all", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 55.0, min["user-01_a"].Days[monday])
	assert.Equal(t, 60.0, min["user-01_a"].Days[tuesday])

	max, err := MaxBodyBattery(src, "all", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 80.0, max["user-01_a"].Days[monday])
	assert.Equal(t, 60.0, max["user-01_a"].Days[tuesday])
}

func nightSource() *fakeSource {
	bed := time.Date(2023, 1, 1, 23, 0, 0, 0, time.UTC)
	return &fakeSource{
		users: []string{"user-01_a"},
		summaries: map[string][]loader.SleepSummary{
			"user-01_a": {{
				ID:           "night-1",
				Timestamp:    bed,
				CalendarDate: monday,
				DurationMs:   8 * 60 * 60000,
			}},
		},
		samples: map[string][]loader.StressSample{
			"user-01_a": {
				{Timestamp: bed.Add(30 * time.Minute), Level: 20, BodyBattery: 30},
				{Timestamp: bed.Add(4 * time.Hour), Level: -1, BodyBattery: math.NaN()},
				{Timestamp: bed.Add(7 * time.Hour), Level: 40, BodyBattery: 80},
			},
		},
	}
}

func TestSleepRecovery(t *testing.T) {
	out, err := SleepRecovery(nightSource(), "all", nil, nil)
	require.NoError(t, err)
	r := out["user-01_a"]
	require.True(t, r.OK())
	assert.Equal(t, 50.0, r.Days[monday])
}

func TestWakingAndOnsetBodyBattery(t *testing.T) {
	waking, err := WakingBodyBattery(nightSource(), "all", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 80.0, waking["user-01_a"].Days[monday])

	onset, err := SleepOnsetBodyBattery(nightSource(), "all", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 30.0, onset["user-01_a"].Days[monday])
}

func TestNightAverageStress(t *testing.T) {
	out, err := NightAverageStress(nightSource(), "all", nil, nil)
	require.NoError(t, err)
	r := out["user-01_a"]
	require.True(t, r.OK())
	// The -1 sample is unreliable and excluded from the mean.
	assert.InDelta(t, 30, r.Days[monday], 1e-9)
}
