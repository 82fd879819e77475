// Package respiration derives pulse oximetry and respiratory rate
// statistics: SpO2 at rest (mean and low percentiles) and breaths per
// minute over the whole day, waking hours or sleep.
package respiration

import (
	"fmt"
	"time"

	"github.com/lifespan-research/wearkit/wearkit/loader"
	"github.com/lifespan-research/wearkit/wearkit/series"
)

// Source is the loader surface the respiration queries need.
// *loader.Loader satisfies it.
type Source interface {
	FullIDs() []string
	LoadPulseOx(user string, start, end *time.Time) ([]loader.FlaggedSample, error)
	LoadRespiration(user string, start, end *time.Time) ([]loader.FlaggedSample, error)
}

// Statistic enumerates the per-day collapses of rest SpO2. The low
// percentiles matter clinically: sustained desaturation shows up in
// P10 before it moves the mean.
type Statistic int

const (
	MeanSpO2 Statistic = iota
	P10SpO2
	P20SpO2
	P30SpO2
)

var statisticNames = map[Statistic]string{
	MeanSpO2: "meanPulseOx",
	P10SpO2:  "p10PulseOx",
	P20SpO2:  "p20PulseOx",
	P30SpO2:  "p30PulseOx",
}

func (s Statistic) String() string {
	if name, ok := statisticNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Statistic(%d)", int(s))
}

// Valid reports whether s names a known statistic.
func (s Statistic) Valid() bool {
	_, ok := statisticNames[s]
	return ok
}

func (s Statistic) of(values []float64) float64 {
	switch s {
	case MeanSpO2:
		return series.Mean(values)
	case P10SpO2:
		return series.Quantile(0.1, values)
	case P20SpO2:
		return series.Quantile(0.2, values)
	case P30SpO2:
		return series.Quantile(0.3, values)
	default:
		panic("unreachable")
	}
}

// RestPulseOx computes one SpO2 statistic per calendar day over the
// sleeping samples of each selected user.
func RestPulseOx(src Source, users any, stat Statistic, start, end *time.Time) (map[string]series.Result, error) {
	if !stat.Valid() {
		return nil, fmt.Errorf("respiration: unknown statistic %d", int(stat))
	}
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]series.Result, len(ids))
	for _, id := range ids {
		samples, err := src.LoadPulseOx(id, start, end)
		if err != nil {
			out[id] = series.Failed(err)
			continue
		}
		byDay := make(map[series.Date][]float64)
		for _, s := range samples {
			if !s.Sleep {
				continue
			}
			d := series.DateOf(s.Timestamp)
			byDay[d] = append(byDay[d], s.Value)
		}
		days := make(map[series.Date]float64, len(byDay))
		for d, values := range byDay {
			days[d] = stat.of(values)
		}
		out[id] = series.Daily(days)
	}
	return out, nil
}

// MeanRestPulseOx returns the mean SpO2 during sleep per day.
func MeanRestPulseOx(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	return RestPulseOx(src, users, MeanSpO2, start, end)
}

// P10RestPulseOx returns the 10th percentile of SpO2 during sleep per
// day.
func P10RestPulseOx(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	return RestPulseOx(src, users, P10SpO2, start, end)
}

// P20RestPulseOx returns the 20th percentile of SpO2 during sleep per
// day.
func P20RestPulseOx(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	return RestPulseOx(src, users, P20SpO2, start, end)
}

// P30RestPulseOx returns the 30th percentile of SpO2 during sleep per
// day.
func P30RestPulseOx(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	return RestPulseOx(src, users, P30SpO2, start, end)
}

// Scope selects which respiration samples enter the daily mean.
type Scope int

const (
	ScopeAll Scope = iota
	ScopeWaking
	ScopeRest
)

// Options controls the breaths per minute queries.
type Options struct {
	// RemoveZero drops samples reporting zero breaths per minute,
	// which the device emits when it loses the signal.
	RemoveZero bool
}

// BreathsPerMinute computes the mean respiratory rate per calendar
// day for each selected user, restricted to the given scope.
func BreathsPerMinute(src Source, users any, scope Scope, start, end *time.Time, opts Options) (map[string]series.Result, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]series.Result, len(ids))
	for _, id := range ids {
		samples, err := src.LoadRespiration(id, start, end)
		if err != nil {
			out[id] = series.Failed(err)
			continue
		}
		byDay := make(map[series.Date][]float64)
		for _, s := range samples {
			if opts.RemoveZero && s.Value <= 0 {
				continue
			}
			if scope == ScopeWaking && s.Sleep {
				continue
			}
			if scope == ScopeRest && !s.Sleep {
				continue
			}
			d := series.DateOf(s.Timestamp)
			byDay[d] = append(byDay[d], s.Value)
		}
		days := make(map[series.Date]float64, len(byDay))
		for d, values := range byDay {
			days[d] = series.Mean(values)
		}
		out[id] = series.Daily(days)
	}
	return out, nil
}

// RestBreathsPerMinute returns the mean respiratory rate during sleep
// per day.
func RestBreathsPerMinute(src Source, users any, start, end *time.Time, opts Options) (map[string]series.Result, error) {
	return BreathsPerMinute(src, users, ScopeRest, start, end, opts)
}

// WakingBreathsPerMinute returns the mean respiratory rate during
// waking hours per day.
func WakingBreathsPerMinute(src Source, users any, start, end *time.Time, opts Options) (map[string]series.Result, error) {
	return BreathsPerMinute(src, users, ScopeWaking, start, end, opts)
}

// Collapsed reduces a breaths per minute query to one NaN-aware mean
// per user, with the contributing days.
func Collapsed(src Source, users any, scope Scope, start, end *time.Time, opts Options) (map[string]series.Summary, error) {
	daily, err := BreathsPerMinute(src, users, scope, start, end, opts)
	if err != nil {
		return nil, err
	}
	out := make(map[string]series.Summary, len(daily))
	for id, r := range daily {
		out[id] = series.Collapse(r)
	}
	return out, nil
}
