package adherence

import (
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifespan-research/wearkit/wearkit/loader"
	"github.com/lifespan-research/wearkit/wearkit/series"
)

type fakeSource struct {
	users   []string
	quests  map[string]map[string]*series.Table
	todos   map[string]map[string]*series.Table
	repeats map[string]bool
	bbi     map[string][]loader.Sample
	sleeps  map[string][]loader.SleepSummary
	errs    map[string]error
}

func (f *fakeSource) FullIDs() []string { return f.users }

func (f *fakeSource) tasksFor(user, folder string) map[string]*series.Table {
	if folder == loader.MetricTodo {
		return f.todos[user]
	}
	return f.quests[user]
}

func (f *fakeSource) AvailableTasks(user, folder string) ([]string, error) {
	if err := f.errs[user]; err != nil {
		return nil, err
	}
	var names []string
	for name := range f.tasksFor(user, folder) {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeSource) LoadQuestionnaire(user, name string, _, _ *time.Time) (*series.Table, error) {
	if table, ok := f.quests[user][name]; ok {
		return table, nil
	}
	return nil, fmt.Errorf("no questionnaire %q", name)
}

func (f *fakeSource) LoadTodo(user, name string, _, _ *time.Time) (*series.Table, error) {
	if table, ok := f.todos[user][name]; ok {
		return table, nil
	}
	return nil, fmt.Errorf("no todo %q", name)
}

func (f *fakeSource) TaskRepeats(user, folder, name string) (bool, error) {
	if _, ok := f.tasksFor(user, folder)[name]; !ok {
		return false, fmt.Errorf("no task %q for %s", name, user)
	}
	return f.repeats[name], nil
}

func (f *fakeSource) LoadBBI(user string, _, _ *time.Time) ([]loader.Sample, error) {
	if err := f.errs[user]; err != nil {
		return nil, err
	}
	return f.bbi[user], nil
}

func (f *fakeSource) LoadSleepSummary(user string, _, _ *time.Time, _ bool) ([]loader.SleepSummary, error) {
	if err := f.errs[user]; err != nil {
		return nil, err
	}
	return f.sleeps[user], nil
}

func at(day, hour, minute int) time.Time {
	return time.Date(2023, 1, day, hour, minute, 0, 0, time.UTC)
}

// taskTable builds a minimal task export with one record per
// timestamp.
func taskTable(times ...time.Time) *series.Table {
	table := series.NewTable([]string{"unixTimestampInMs", "taskScheduleRepeat"})
	for _, ts := range times {
		table.AppendRow([]string{fmt.Sprint(ts.UnixMilli()), "true"}, ts)
	}
	return table
}

func fillSource() *fakeSource {
	return &fakeSource{
		users: []string{"user-01_a", "user-02_b"},
		quests: map[string]map[string]*series.Table{
			"user-01_a": {
				// A retry half an hour after the first fill, then a
				// genuinely separate evening fill.
				"morning-diary": taskTable(at(2, 8, 0), at(2, 8, 30), at(2, 20, 0)),
			},
			"user-02_b": {
				"morning-diary": taskTable(at(2, 8, 0)),
				"exit-survey":   taskTable(at(5, 10, 0)),
			},
		},
		repeats: map[string]bool{"morning-diary": true},
	}
}

func TestQuestionnaireFills(t *testing.T) {
	out, err := QuestionnaireFills(fillSource(), "all", "all", nil, nil, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)

	first := out["user-01_a"]
	require.NoError(t, first.Err)
	assert.Equal(t, Fill{Filled: 2, Repeats: true}, first.Tasks["morning-diary"])
	// user-01 never received the exit survey; its schedule flag comes
	// from user-02's export.
	assert.Equal(t, Fill{Filled: 0, Repeats: false}, first.Tasks["exit-survey"])

	second := out["user-02_b"]
	require.NoError(t, second.Err)
	assert.Equal(t, Fill{Filled: 1, Repeats: true}, second.Tasks["morning-diary"])
	assert.Equal(t, Fill{Filled: 1, Repeats: false}, second.Tasks["exit-survey"])
}

func TestQuestionnaireFillsSelection(t *testing.T) {
	out, err := QuestionnaireFills(fillSource(), "user-01_a", "morning-diary", nil, nil, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out["user-01_a"].Tasks, 1)

	_, err = QuestionnaireFills(fillSource(), "all", 42, nil, nil, 0)
	assert.Error(t, err)
}

func TestTodoFills(t *testing.T) {
	src := &fakeSource{
		users: []string{"user-01_a"},
		todos: map[string]map[string]*series.Table{
			"user-01_a": {
				"wear-device": taskTable(at(2, 9, 0), at(3, 9, 0)),
			},
		},
		repeats: map[string]bool{"wear-device": true},
	}

	out, err := TodoFills(src, "all", "all", nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, Fill{Filled: 2, Repeats: true}, out["user-01_a"].Tasks["wear-device"])
}

func TestQuestionnaireAdherence(t *testing.T) {
	out, err := QuestionnaireAdherence(fillSource(), "all", "all", 10, nil, nil, 0)
	require.NoError(t, err)

	first := out["user-01_a"].Tasks
	assert.Equal(t, TaskAdherence{Filled: 2, Expected: 10, Percent: 20}, first["morning-diary"])
	// Never-filled one-off task scores zero.
	assert.Equal(t, TaskAdherence{Filled: 0, Expected: 1, Percent: 0}, first["exit-survey"])

	second := out["user-02_b"].Tasks
	assert.Equal(t, TaskAdherence{Filled: 1, Expected: 10, Percent: 10}, second["morning-diary"])
	assert.Equal(t, TaskAdherence{Filled: 1, Expected: 1, Percent: 100}, second["exit-survey"])
}

func TestMetricAdherence(t *testing.T) {
	jan2 := series.Date{Year: 2023, Month: time.January, Day: 2}
	samples := []loader.Sample{
		{Timestamp: at(2, 0, 10), Value: 60},
		{Timestamp: at(2, 0, 10), Value: 61}, // duplicate second
		{Timestamp: at(2, 0, 11), Value: 62},
		{Timestamp: at(2, 0, 12), Value: 63},
	}
	src := &fakeSource{
		users: []string{"user-01_a", "user-02_b"},
		errs:  map[string]error{"user-02_b": errors.New("corrupt export")},
	}
	load := func(user string, _, _ *time.Time) ([]loader.Sample, error) {
		if user == "user-02_b" {
			return nil, src.errs[user]
		}
		return samples, nil
	}

	out, err := MetricAdherence(src, "all", load, time.Minute, nil, nil)
	require.NoError(t, err)
	require.True(t, out["user-01_a"].OK())
	// 3 distinct sampled seconds against 1440 expected per-minute
	// samples.
	assert.InDelta(t, 3.0/1440*100, out["user-01_a"].Days[jan2], 0.005)
	assert.False(t, out["user-02_b"].OK())
}

func TestWearTime(t *testing.T) {
	jan2 := series.Date{Year: 2023, Month: time.January, Day: 2}
	jan3 := series.Date{Year: 2023, Month: time.January, Day: 3}
	src := &fakeSource{
		users: []string{"user-01_a"},
		bbi: map[string][]loader.Sample{
			"user-01_a": {
				{Timestamp: at(2, 10, 0), Value: 1800000},
				{Timestamp: at(2, 11, 0), Value: 1800000},
				{Timestamp: at(3, 10, 0), Value: 900000},
			},
		},
	}

	out, err := WearTime(src, "all", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out["user-01_a"].Days[jan2])
	assert.Equal(t, 0.25, out["user-01_a"].Days[jan3])
}

func TestNights(t *testing.T) {
	jan2 := series.Date{Year: 2023, Month: time.January, Day: 2}
	jan3 := series.Date{Year: 2023, Month: time.January, Day: 3}
	src := &fakeSource{
		users: []string{"user-01_a", "user-02_b"},
		sleeps: map[string][]loader.SleepSummary{
			"user-01_a": {
				{CalendarDate: jan2},
				{CalendarDate: jan3},
			},
		},
		errs: map[string]error{"user-02_b": errors.New("corrupt export")},
	}

	out, err := Nights(src, "all", at(2, 0, 0), at(6, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, NightCount{Nights: 2, Expected: 4, Percent: 50}, out["user-01_a"])
	assert.Error(t, out["user-02_b"].Err)
	assert.Equal(t, 4, out["user-02_b"].Expected)
}
