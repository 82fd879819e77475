// Package adherence tracks how completely participants follow a study
// protocol: questionnaire and todo fill counts against the expected
// schedule, per-day sample coverage of metric streams, device wear
// time, and the number of recorded nights.
package adherence

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lifespan-research/wearkit/wearkit/loader"
	"github.com/lifespan-research/wearkit/wearkit/series"
)

// Source is the loader surface the adherence queries need.
// *loader.Loader satisfies it.
type Source interface {
	FullIDs() []string
	AvailableTasks(user, folder string) ([]string, error)
	LoadQuestionnaire(user, name string, start, end *time.Time) (*series.Table, error)
	LoadTodo(user, name string, start, end *time.Time) (*series.Table, error)
	TaskRepeats(user, folder, name string) (bool, error)
	LoadBBI(user string, start, end *time.Time) ([]loader.Sample, error)
	LoadSleepSummary(user string, start, end *time.Time, sameDayFilter bool) ([]loader.SleepSummary, error)
}

// DefaultSafeDelta is the minimum gap between two records of the same
// task for both to count as separate fills. Closer records are retries
// of the same scheduled fill.
const DefaultSafeDelta = 6 * time.Hour

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Fill is one task's fill count for one user.
type Fill struct {
	Filled  int
	Repeats bool
}

// FillResult carries one user's fill counts keyed by task id.
type FillResult struct {
	Tasks map[string]Fill
	Err   error
}

// QuestionnaireFills counts filled questionnaires per user and task,
// deduplicating records closer together than safeDelta. tasks follows
// the usual selection shape: "all", a single id, or a slice.
func QuestionnaireFills(src Source, users, tasks any, start, end *time.Time, safeDelta time.Duration) (map[string]FillResult, error) {
	return taskFills(src, users, tasks, loader.MetricQuestionnaire, start, end, safeDelta)
}

// TodoFills counts completed todos per user and task, deduplicating
// records closer together than safeDelta.
func TodoFills(src Source, users, tasks any, start, end *time.Time, safeDelta time.Duration) (map[string]FillResult, error) {
	return taskFills(src, users, tasks, loader.MetricTodo, start, end, safeDelta)
}

func taskFills(src Source, users, tasks any, folder string, start, end *time.Time, safeDelta time.Duration) (map[string]FillResult, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	if safeDelta <= 0 {
		safeDelta = DefaultSafeDelta
	}
	names, err := expandTasks(src, tasks, folder)
	if err != nil {
		return nil, err
	}
	out := make(map[string]FillResult, len(ids))
	for _, id := range ids {
		available, err := src.AvailableTasks(id, folder)
		if err != nil {
			out[id] = FillResult{Err: err}
			continue
		}
		has := make(map[string]bool, len(available))
		for _, t := range available {
			has[t] = true
		}
		result := FillResult{Tasks: make(map[string]Fill, len(names))}
		for _, name := range names {
			if !has[name] {
				// The user never received this task; repeatability can
				// still be read from another user's export.
				result.Tasks[name] = Fill{Repeats: repeatsAnywhere(src, folder, name)}
				continue
			}
			table, err := loadTask(src, folder, id, name, start, end)
			if err != nil {
				result.Err = err
				break
			}
			repeats, err := src.TaskRepeats(id, folder, name)
			if err != nil {
				repeats = repeatsAnywhere(src, folder, name)
			}
			result.Tasks[name] = Fill{
				Filled:  countFills(table.Times(), safeDelta),
				Repeats: repeats,
			}
		}
		out[id] = result
	}
	return out, nil
}

func loadTask(src Source, folder, user, name string, start, end *time.Time) (*series.Table, error) {
	if folder == loader.MetricTodo {
		return src.LoadTodo(user, name, start, end)
	}
	return src.LoadQuestionnaire(user, name, start, end)
}

// countFills counts records separated by more than safeDelta from the
// previous one. The records arrive in file order, which is
// chronological.
func countFills(times []time.Time, safeDelta time.Duration) int {
	count := 0
	for i, ts := range times {
		if i == 0 || ts.Sub(times[i-1]) > safeDelta {
			count++
		}
	}
	return count
}

// repeatsAnywhere scans every participant for the task's schedule
// flag. It reports false when nobody has the task.
func repeatsAnywhere(src Source, folder, name string) bool {
	for _, id := range src.FullIDs() {
		if repeats, err := src.TaskRepeats(id, folder, name); err == nil {
			return repeats
		}
	}
	return false
}

// expandTasks resolves the task selection to a sorted list: "all"
// unions the task ids present across every participant.
func expandTasks(src Source, tasks any, folder string) ([]string, error) {
	switch v := tasks.(type) {
	case nil:
		return expandTasks(src, "all", folder)
	case string:
		if v != "all" {
			return []string{v}, nil
		}
		seen := make(map[string]bool)
		for _, id := range src.FullIDs() {
			names, err := src.AvailableTasks(id, folder)
			if err != nil {
				continue
			}
			for _, name := range names {
				seen[name] = true
			}
		}
		out := make([]string, 0, len(seen))
		for name := range seen {
			out = append(out, name)
		}
		sort.Strings(out)
		return out, nil
	case []string:
		return v, nil
	default:
		return nil, fmt.Errorf("adherence: invalid task selection %T", tasks)
	}
}

// TaskAdherence relates a task's fill count to its expected count over
// a study window. A repeating task is expected once per day; a one-off
// task exactly once.
type TaskAdherence struct {
	Filled   int
	Expected int
	Percent  float64
}

// AdherenceResult carries one user's adherence rates keyed by task id.
type AdherenceResult struct {
	Tasks map[string]TaskAdherence
	Err   error
}

// QuestionnaireAdherence rates questionnaire fills against a study of
// days days.
func QuestionnaireAdherence(src Source, users, tasks any, days int, start, end *time.Time, safeDelta time.Duration) (map[string]AdherenceResult, error) {
	fills, err := QuestionnaireFills(src, users, tasks, start, end, safeDelta)
	if err != nil {
		return nil, err
	}
	return rateFills(fills, days), nil
}

// TodoAdherence rates todo completions against a study of days days.
func TodoAdherence(src Source, users, tasks any, days int, start, end *time.Time, safeDelta time.Duration) (map[string]AdherenceResult, error) {
	fills, err := TodoFills(src, users, tasks, start, end, safeDelta)
	if err != nil {
		return nil, err
	}
	return rateFills(fills, days), nil
}

func rateFills(fills map[string]FillResult, days int) map[string]AdherenceResult {
	out := make(map[string]AdherenceResult, len(fills))
	for id, r := range fills {
		if r.Err != nil {
			out[id] = AdherenceResult{Err: r.Err}
			continue
		}
		tasks := make(map[string]TaskAdherence, len(r.Tasks))
		for name, fill := range r.Tasks {
			a := TaskAdherence{Filled: fill.Filled, Expected: 1}
			if fill.Repeats {
				a.Expected = days
				a.Percent = round2(float64(fill.Filled) / float64(days) * 100)
			} else if fill.Filled == 1 {
				a.Percent = 100
			}
			tasks[name] = a
		}
		out[id] = AdherenceResult{Tasks: tasks}
	}
	return out
}
