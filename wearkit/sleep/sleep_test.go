package sleep

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
	summaries map[string][]loader.SleepSummary
	stages    map[string][]loader.SleepStage
	errs      map[string]error
}

func (f *fakeSource) FullIDs() []string { return f.users }

func (f *fakeSource) LoadSleepSummary(user string, _, _ *time.Time, _ bool) ([]loader.SleepSummary, error) {
	if err := f.errs[user]; err != nil {
		return nil, err
	}
	return f.summaries[user], nil
}

func (f *fakeSource) LoadSleepStage(user string, _, _ *time.Time) ([]loader.SleepStage, error) {
	return f.stages[user], nil
}

func at(day, hour, minute int) time.Time {
	return time.Date(2023, 1, day, hour, minute, 0, 0, time.UTC)
}

func stage(id string, ts time.Time, kind loader.Stage, minutes float64) loader.SleepStage {
	return loader.SleepStage{SummaryID: id, Timestamp: ts, Stage: kind, DurationMs: minutes * 60000}
}

// testNight: in bed 23:00-03:15, 240 min asleep, 15 min awake.
func testNight() (loader.SleepSummary, []loader.SleepStage) {
	summary := loader.SleepSummary{
		ID:           "night-1",
		Timestamp:    at(1, 23, 0),
		CalendarDate: series.Date{Year: 2023, Month: time.January, Day: 2},
		DurationMs:   240 * 60000,
		AwakeMs:      15 * 60000,
		N1Ms:         120 * 60000,
		N2Ms:         math.NaN(),
		N3Ms:         60 * 60000,
		RemMs:        60 * 60000,
		Score:        82,
		Validation:   "ENHANCED_FINAL",
	}
	stages := []loader.SleepStage{
		stage("night-1", at(1, 23, 0), loader.StageAwake, 10),
		stage("night-1", at(1, 23, 10), loader.StageN1, 120),
		stage("night-1", at(2, 1, 10), loader.StageN3, 60),
		stage("night-1", at(2, 2, 10), loader.StageAwake, 5),
		stage("night-1", at(2, 2, 15), loader.StageREM, 60),
	}
	return summary, stages
}

func TestNewNight(t *testing.T) {
	summary, stages := testNight()
	n := newNight(summary, stages)

	assert.InDelta(t, 255, n.TIB, 1e-9)
	assert.InDelta(t, 240, n.TST, 1e-9)
	assert.InDelta(t, 240.0/255*100, n.SE, 1e-9)
	assert.InDelta(t, 245, n.SPT, 1e-9)
	assert.InDelta(t, 240.0/245*100, n.SME, 1e-9)
	assert.InDelta(t, 5, n.WASO, 1e-9)

	assert.InDelta(t, 10, n.LatN1, 1e-9)
	assert.InDelta(t, 130, n.LatN3, 1e-9)
	assert.InDelta(t, 195, n.LatREM, 1e-9)
	assert.True(t, math.IsNaN(n.LatN2))
	assert.InDelta(t, 10, n.SOL, 1e-9)

	assert.InDelta(t, 50, n.PctN1, 1e-9)
	assert.InDelta(t, 25, n.PctN3, 1e-9)
	assert.InDelta(t, 25, n.PctREM, 1e-9)
	assert.InDelta(t, 75, n.PctNREM, 1e-9)
	assert.True(t, math.IsNaN(n.PctN2))

	assert.Equal(t, 2.0, n.CountAwake)
	assert.Equal(t, 1.0, n.CountN1)
	assert.Equal(t, 1.0, n.CountN3)
	assert.Equal(t, 1.0, n.CountREM)

	assert.Equal(t, at(2, 3, 15), n.WakeupTime)
	assert.Equal(t, at(2, 1, 7).Add(30*time.Second), n.Midpoint)
}

func TestNightWithoutStages(t *testing.T) {
	summary, _ := testNight()
	n := newNight(summary, nil)

	assert.True(t, math.IsNaN(n.SPT))
	assert.True(t, math.IsNaN(n.WASO))
	assert.True(t, math.IsNaN(n.SOL))
	assert.True(t, math.IsNaN(n.CountAwake))
	// Summary-only statistics survive missing stage data.
	assert.InDelta(t, 255, n.TIB, 1e-9)
	assert.InDelta(t, 240, n.TST, 1e-9)
}

func TestDaily(t *testing.T) {
	summary, stages := testNight()
	src := &fakeSource{
		users:     []string{"user-01_a", "user-02_b"},
		summaries: map[string][]loader.SleepSummary{"user-01_a": {summary}},
		stages:    map[string][]loader.SleepStage{"user-01_a": stages},
		errs:      map[string]error{"user-02_b": errors.New("corrupt export")},
	}

	results, err := Daily(src, "all", SE, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// One bad user never aborts the batch; its key stays with the error.
	require.True(t, results["user-01_a"].OK())
	assert.False(t, results["user-02_b"].OK())

	days := results["user-01_a"].Days
	require.Len(t, days, 1)
	assert.InDelta(t, 240.0/255*100, days[series.Date{Year: 2023, Month: time.January, Day: 2}], 1e-9)
}

func TestDailyInvalidStatistic(t *testing.T) {
	_, err := Daily(&fakeSource{}, "all", Statistic(999), nil, nil)
	require.Error(t, err)
}

func TestDailyInvalidUserSelection(t *testing.T) {
	_, err := Daily(&fakeSource{}, 42, SE, nil, nil)
	require.Error(t, err)
}

func TestCollapsed(t *testing.T) {
	summary, stages := testNight()
	second := summary
	second.ID = "night-2"
	second.Timestamp = at(2, 23, 0)
	second.CalendarDate = series.Date{Year: 2023, Month: time.January, Day: 3}
	second.DurationMs = 300 * 60000
	src := &fakeSource{
		users:     []string{"user-01_a"},
		summaries: map[string][]loader.SleepSummary{"user-01_a": {summary, second}},
		stages:    map[string][]loader.SleepStage{"user-01_a": stages},
	}

	out, err := Collapsed(src, "user-01_a", TST, series.TransformMean, nil, nil)
	require.NoError(t, err)
	s := out["user-01_a"]
	require.NoError(t, s.Err)
	assert.InDelta(t, 240, s.Value, 1e-9) // TST depends only on stage columns, equal both nights
	assert.Len(t, s.Days, 2)

	out, err = Collapsed(src, "user-01_a", TIB, series.TransformMax, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 315, out["user-01_a"].Value, 1e-9)
}

func TestCPDMidpoint(t *testing.T) {
	// Night 1: midpoint 01:00, night 2: midpoint 03:00.
	nights := []loader.SleepSummary{
		{
			ID: "n1", Timestamp: at(1, 21, 0), DurationMs: 8 * 60 * 60000,
			CalendarDate: series.Date{Year: 2023, Month: time.January, Day: 2},
		},
		{
			ID: "n2", Timestamp: at(2, 23, 0), DurationMs: 8 * 60 * 60000,
			CalendarDate: series.Date{Year: 2023, Month: time.January, Day: 3},
		},
	}
	src := &fakeSource{
		users:     []string{"user-01_a"},
		summaries: map[string][]loader.SleepSummary{"user-01_a": nights},
	}
	chronos := map[string]Chronotype{"user-01_a": {Bedtime: "23:00", WakeTime: "07:00"}}

	out, err := CPDMidpoint(src, "all", nil, nil, chronos)
	require.NoError(t, err)
	r := out["user-01_a"]
	require.True(t, r.OK())

	jan2 := series.Date{Year: 2023, Month: time.January, Day: 2}
	jan3 := series.Date{Year: 2023, Month: time.January, Day: 3}
	// Chronotype midpoint is 03:00. Night 1 deviates 2h with no
	// irregularity term; night 2 matches the chronotype but deviates
	// 2h from the previous night.
	assert.InDelta(t, 2, r.Days[jan2], 1e-9)
	assert.InDelta(t, 2, r.Days[jan3], 1e-9)
}

func TestCPDDuration(t *testing.T) {
	nights := []loader.SleepSummary{
		{
			ID: "n1", Timestamp: at(1, 23, 0), DurationMs: 8 * 60 * 60000,
			CalendarDate: series.Date{Year: 2023, Month: time.January, Day: 2},
		},
		{
			ID: "n2", Timestamp: at(2, 23, 0), DurationMs: 6 * 60 * 60000,
			CalendarDate: series.Date{Year: 2023, Month: time.January, Day: 3},
		},
	}
	src := &fakeSource{
		users:     []string{"user-01_a"},
		summaries: map[string][]loader.SleepSummary{"user-01_a": nights},
	}
	chronos := map[string]Chronotype{"user-01_a": {Bedtime: "23:00", WakeTime: "07:00"}}

	out, err := CPDDuration(src, "all", nil, nil, chronos)
	require.NoError(t, err)
	r := out["user-01_a"]
	require.True(t, r.OK())

	jan2 := series.Date{Year: 2023, Month: time.January, Day: 2}
	jan3 := series.Date{Year: 2023, Month: time.January, Day: 3}
	// Night 1 hits the 8h chronotype exactly; night 2 is 2h short of
	// both the chronotype and the previous night.
	assert.InDelta(t, 0, r.Days[jan2], 1e-9)
	assert.InDelta(t, math.Hypot(2, 2), r.Days[jan3], 1e-9)
}

func TestChronotypeFromPair(t *testing.T) {
	c, err := ChronotypeFromPair([]string{"23:30", "07:30"})
	require.NoError(t, err)
	assert.Equal(t, "23:30", c.Bedtime)

	_, err = ChronotypeFromPair([]string{"23:30"})
	require.Error(t, err)
}

func TestHypnograms(t *testing.T) {
	summary := loader.SleepSummary{
		ID:           "night-1",
		Timestamp:    at(1, 23, 0),
		CalendarDate: series.Date{Year: 2023, Month: time.January, Day: 2},
		DurationMs:   4 * 60000,
	}
	src := &fakeSource{
		users:     []string{"user-01_a"},
		summaries: map[string][]loader.SleepSummary{"user-01_a": {summary}},
		stages: map[string][]loader.SleepStage{"user-01_a": {
			stage("night-1", at(1, 23, 0), loader.StageN1, 2),
			stage("night-1", at(1, 23, 2), loader.StageN3, 2),
		}},
	}

	out, err := Hypnograms(src, "user-01_a", nil, nil, time.Minute)
	require.NoError(t, err)
	require.Len(t, out, 1)

	h := out[series.Date{Year: 2023, Month: time.January, Day: 2}]
	require.Len(t, h.Stages, 4)
	assert.Equal(t, []float64{1, 1, 3, 3}, h.Levels())
	assert.Equal(t, at(1, 23, 0), h.Start)
	assert.Equal(t, at(1, 23, 4), h.End)
}

func TestAwakenings(t *testing.T) {
	h := Hypnogram{
		Start:      at(1, 23, 0),
		Resolution: time.Minute,
		Stages: []loader.Stage{
			loader.StageAwake, loader.StageN1, loader.StageAwake, loader.StageAwake,
			loader.StageN3, loader.StageAwake,
		},
	}
	starts, ends := h.Awakenings()
	// The leading awake period and the unfinished trailing one do not
	// count as awakenings.
	require.Len(t, starts, 1)
	require.Len(t, ends, 1)
	assert.Equal(t, at(1, 23, 2), starts[0])
	assert.Equal(t, at(1, 23, 4), ends[0])
}

func TestWindowsAndMeanClocks(t *testing.T) {
	summary, stages := testNight()
	src := &fakeSource{
		users:     []string{"user-01_a"},
		summaries: map[string][]loader.SleepSummary{"user-01_a": {summary}},
		stages:    map[string][]loader.SleepStage{"user-01_a": stages},
	}

	out, err := Windows(src, "all", nil, nil)
	require.NoError(t, err)
	r := out["user-01_a"]
	require.NoError(t, r.Err)
	w := r.Days[series.Date{Year: 2023, Month: time.January, Day: 2}]
	assert.Equal(t, at(1, 23, 0), w.Bedtime)
	assert.Equal(t, at(2, 3, 15), w.WakeupTime)

	bed, wake, mid, err := MeanClocks(r)
	require.NoError(t, err)
	assert.Equal(t, "23:00", bed)
	assert.Equal(t, "03:15", wake)
	assert.Equal(t, "01:07", mid)
}
