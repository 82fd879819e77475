package series

import (
	"fmt"
	"math"
)

// Result is the per-participant outcome of a daily statistic query.
// A failed participant carries Err and nil Days; callers can always
// distinguish "queried but failed/empty" from "never requested" because
// the participant keeps its key in the output map either way.
type Result struct {
	Days map[Date]float64
	Err  error
}

// OK reports whether the participant produced usable data.
func (r Result) OK() bool { return r.Err == nil }

// Values returns the per-day values in chronological order.
func (r Result) Values() []float64 {
	dates := SortedDates(r.Days)
	out := make([]float64, len(dates))
	for i, d := range dates {
		out[i] = r.Days[d]
	}
	return out
}

// Failed wraps an error into a Result, preserving the swallow-and-record
// failure isolation contract: one bad participant never aborts a batch.
func Failed(err error) Result { return Result{Err: err} }

// Daily wraps a per-day map into a successful Result.
func Daily(days map[Date]float64) Result { return Result{Days: days} }

// Summary is the collapsed form of a Result: a single NaN-aware mean
// plus the list of calendar days that contributed to it.
type Summary struct {
	Value float64
	Days  []Date
	Err   error
}

// Collapse reduces a Result to its NaN-aware mean and contributing days.
func Collapse(r Result) Summary {
	if r.Err != nil {
		return Summary{Value: math.NaN(), Err: r.Err}
	}
	dates := SortedDates(r.Days)
	contributing := make([]Date, 0, len(dates))
	values := make([]float64, 0, len(dates))
	for _, d := range dates {
		v := r.Days[d]
		values = append(values, v)
		if !math.IsNaN(v) {
			contributing = append(contributing, d)
		}
	}
	return Summary{Value: Mean(values), Days: contributing}
}

// Transform enumerates the supported collapses of a per-day statistic.
type Transform int

const (
	TransformNone Transform = iota
	TransformMean
	TransformStd
	TransformMin
	TransformMax
)

// Apply collapses values according to the transform.
func (k Transform) Apply(values []float64) (float64, error) {
	switch k {
	case TransformMean:
		return Mean(values), nil
	case TransformStd:
		return Std(values), nil
	case TransformMin:
		return Min(values), nil
	case TransformMax:
		return Max(values), nil
	default:
		return math.NaN(), fmt.Errorf("unsupported transform %d", k)
	}
}

// UserSource is the minimal view of a loader needed to expand user
// selections. *loader.Loader satisfies it.
type UserSource interface {
	FullIDs() []string
}

// ExpandUsers resolves the "all" | single id | id list convention used
// by every statistic function. A nil selection means "all".
func ExpandUsers(src UserSource, users any) ([]string, error) {
	switch v := users.(type) {
	case nil:
		return src.FullIDs(), nil
	case string:
		if v == "all" {
			return src.FullIDs(), nil
		}
		return []string{v}, nil
	case []string:
		return v, nil
	default:
		return nil, fmt.Errorf("user selection must be \"all\", a string id or a []string, got %T", users)
	}
}
