package sleep

import (
	"fmt"
	"math"
	"time"

	"github.com/lifespan-research/wearkit/wearkit/series"
)

// Chronotype is a participant's habitual sleep window as "HH:MM"
// clock times. When no chronotype is known the reference is derived
// from the participant's own data instead.
type Chronotype struct {
	Bedtime  string
	WakeTime string
}

// ChronotypeFromPair adapts the two-element form used in config files.
func ChronotypeFromPair(pair []string) (Chronotype, error) {
	if len(pair) != 2 {
		return Chronotype{}, fmt.Errorf("sleep: chronotype needs [bedtime, waketime], got %d entries", len(pair))
	}
	return Chronotype{Bedtime: pair[0], WakeTime: pair[1]}, nil
}

// midpointClock is the circular midpoint of the chronotype window.
func (c Chronotype) midpointClock() (string, error) {
	return series.MeanClock([]string{c.Bedtime, c.WakeTime})
}

// durationHours is the length of the chronotype window in hours,
// wrapping across midnight.
func (c Chronotype) durationHours() (float64, error) {
	bed, err := time.Parse("15:04", c.Bedtime)
	if err != nil {
		return 0, fmt.Errorf("sleep: chronotype bedtime: %w", err)
	}
	wake, err := time.Parse("15:04", c.WakeTime)
	if err != nil {
		return 0, fmt.Errorf("sleep: chronotype waketime: %w", err)
	}
	hours := wake.Sub(bed).Hours()
	if hours < 0 {
		hours += 24
	}
	return hours, nil
}

// CPDMidpoint computes the Composite Phase Deviation of sleep midpoint
// per night: the Euclidean norm of a mistiming term (deviation from
// the chronotype midpoint) and an irregularity term (deviation from
// the previous night's midpoint). The first recorded night carries no
// irregularity term. Chronotypes are keyed by full user id; users
// without one use the circular mean of their own midpoints.
func CPDMidpoint(src Source, users any, start, end *time.Time, chronotypes map[string]Chronotype) (map[string]series.Result, error) {
	return cpdQuery(src, users, start, end, chronotypes, cpdMidpoints)
}

// CPDDuration computes the Composite Phase Deviation of sleep duration
// per night, mirroring CPDMidpoint against duration in hours.
func CPDDuration(src Source, users any, start, end *time.Time, chronotypes map[string]Chronotype) (map[string]series.Result, error) {
	return cpdQuery(src, users, start, end, chronotypes, cpdDurations)
}

func cpdQuery(src Source, users any, start, end *time.Time, chronotypes map[string]Chronotype,
	compute func([]Night, *Chronotype) (map[series.Date]float64, error),
) (map[string]series.Result, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]series.Result, len(ids))
	for _, id := range ids {
		nights, err := loadNights(src, id, start, end)
		if err != nil {
			out[id] = series.Failed(err)
			continue
		}
		var chrono *Chronotype
		if c, ok := chronotypes[id]; ok {
			chrono = &c
		}
		days, err := compute(nights, chrono)
		if err != nil {
			out[id] = series.Failed(err)
			continue
		}
		out[id] = series.Daily(days)
	}
	return out, nil
}

// referenceAt anchors a clock time onto a calendar date. An evening
// clock (between 14:00 and midnight) belongs to the night before the
// calendar date, so it is shifted back one day.
func referenceAt(d series.Date, hour, minute, second int) time.Time {
	ref := time.Date(d.Year, d.Month, d.Day, hour, minute, second, 0, time.UTC)
	if hour > 14 {
		ref = ref.AddDate(0, 0, -1)
	}
	return ref
}

func cpdMidpoints(nights []Night, chrono *Chronotype) (map[series.Date]float64, error) {
	if len(nights) == 0 {
		return nil, nil
	}

	var clock string
	var err error
	if chrono != nil {
		clock, err = chrono.midpointClock()
	} else {
		times := make([]string, len(nights))
		for i, n := range nights {
			times[i] = n.Midpoint.Format("15:04")
		}
		clock, err = series.MeanClock(times)
	}
	if err != nil {
		return nil, err
	}
	ref, err := time.Parse("15:04", clock)
	if err != nil {
		return nil, fmt.Errorf("sleep: reference midpoint: %w", err)
	}

	out := make(map[series.Date]float64, len(nights))
	var prev *time.Time
	for i := range nights {
		n := nights[i]
		chronoMidpoint := referenceAt(n.Date, ref.Hour(), ref.Minute(), 0)
		mistiming := chronoMidpoint.Sub(n.Midpoint).Hours()

		irregularity := 0.0
		if prev != nil {
			proxy := referenceAt(n.Date, prev.Hour(), prev.Minute(), prev.Second())
			irregularity = proxy.Sub(n.Midpoint).Hours()
		}
		prev = &nights[i].Midpoint

		out[n.Date] = math.Hypot(mistiming, irregularity)
	}
	return out, nil
}

func cpdDurations(nights []Night, chrono *Chronotype) (map[series.Date]float64, error) {
	if len(nights) == 0 {
		return nil, nil
	}

	durations := make([]float64, len(nights))
	for i, n := range nights {
		durations[i] = n.DurationMs / (1000 * 60 * 60)
	}

	var reference float64
	var err error
	if chrono != nil {
		reference, err = chrono.durationHours()
		if err != nil {
			return nil, err
		}
	} else {
		reference = series.Mean(durations)
	}

	out := make(map[series.Date]float64, len(nights))
	prev := math.NaN()
	for i, n := range nights {
		mistiming := reference - durations[i]
		irregularity := 0.0
		if !math.IsNaN(prev) {
			irregularity = prev - durations[i]
		}
		prev = durations[i]
		out[n.Date] = math.Hypot(mistiming, irregularity)
	}
	return out, nil
}
