package sleep

import (
	"fmt"
	"time"

	"github.com/lifespan-research/wearkit/wearkit/series"
)

// Statistic enumerates the per-night sleep statistics. Invalid values
// are rejected when the query is built, not deep inside a computation.
type Statistic int

const (
	TIB Statistic = iota
	SPT
	TST
	SE
	SME
	WASO
	SOL
	N1Duration
	N2Duration
	N3Duration
	REMDuration
	NREMDuration
	AwakeDuration
	UnmeasurableDuration
	N1Latency
	N2Latency
	N3Latency
	REMLatency
	N1Percentage
	N2Percentage
	N3Percentage
	REMPercentage
	NREMPercentage
	Score
	AwakeCount
	N1Count
	N2Count
	N3Count
	REMCount
)

// Statistics lists every numeric per-night statistic.
var Statistics = []Statistic{
	TIB, SPT, TST, SE, SME, WASO, SOL,
	N1Duration, N2Duration, N3Duration, REMDuration, NREMDuration,
	AwakeDuration, UnmeasurableDuration,
	N1Latency, N2Latency, N3Latency, REMLatency,
	N1Percentage, N2Percentage, N3Percentage, REMPercentage, NREMPercentage,
	Score,
	AwakeCount, N1Count, N2Count, N3Count, REMCount,
}

var statisticNames = map[Statistic]string{
	TIB:                  "TIB",
	SPT:                  "SPT",
	TST:                  "TST",
	SE:                   "SE",
	SME:                  "SME",
	WASO:                 "WASO",
	SOL:                  "SOL",
	N1Duration:           "N1",
	N2Duration:           "N2",
	N3Duration:           "N3",
	REMDuration:          "REM",
	NREMDuration:         "NREM",
	AwakeDuration:        "AWAKE",
	UnmeasurableDuration: "UNMEASURABLE",
	N1Latency:            "Lat_N1",
	N2Latency:            "Lat_N2",
	N3Latency:            "Lat_N3",
	REMLatency:           "Lat_REM",
	N1Percentage:         "%N1",
	N2Percentage:         "%N2",
	N3Percentage:         "%N3",
	REMPercentage:        "%REM",
	NREMPercentage:       "%NREM",
	Score:                "SCORE",
	AwakeCount:           "countAwake",
	N1Count:              "countN1",
	N2Count:              "countN2",
	N3Count:              "countN3",
	REMCount:             "countREM",
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

// of extracts the statistic's value from a night.
func (s Statistic) of(n Night) float64 {
	switch s {
	case TIB:
		return n.TIB
	case SPT:
		return n.SPT
	case TST:
		return n.TST
	case SE:
		return n.SE
	case SME:
		return n.SME
	case WASO:
		return n.WASO
	case SOL:
		return n.SOL
	case N1Duration:
		return n.N1
	case N2Duration:
		return n.N2
	case N3Duration:
		return n.N3
	case REMDuration:
		return n.REM
	case NREMDuration:
		return n.NREM
	case AwakeDuration:
		return n.Awake
	case UnmeasurableDuration:
		return n.Unmeasurable
	case N1Latency:
		return n.LatN1
	case N2Latency:
		return n.LatN2
	case N3Latency:
		return n.LatN3
	case REMLatency:
		return n.LatREM
	case N1Percentage:
		return n.PctN1
	case N2Percentage:
		return n.PctN2
	case N3Percentage:
		return n.PctN3
	case REMPercentage:
		return n.PctREM
	case NREMPercentage:
		return n.PctNREM
	case Score:
		return n.Score
	case AwakeCount:
		return n.CountAwake
	case N1Count:
		return n.CountN1
	case N2Count:
		return n.CountN2
	case N3Count:
		return n.CountN3
	case REMCount:
		return n.CountREM
	default:
		panic("unreachable")
	}
}

// Daily computes one statistic per calendar day for each selected
// user. A failing user keeps its key with the error recorded.
func Daily(src Source, users any, stat Statistic, start, end *time.Time) (map[string]series.Result, error) {
	if !stat.Valid() {
		return nil, fmt.Errorf("sleep: unknown statistic %d", int(stat))
	}
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
		days := make(map[series.Date]float64, len(nights))
		for _, n := range nights {
			days[n.Date] = stat.of(n)
		}
		out[id] = series.Daily(days)
	}
	return out, nil
}

// Collapsed computes one statistic per user, collapsed over days with
// the given transform, together with the contributing days.
func Collapsed(src Source, users any, stat Statistic, tr series.Transform, start, end *time.Time) (map[string]series.Summary, error) {
	daily, err := Daily(src, users, stat, start, end)
	if err != nil {
		return nil, err
	}
	out := make(map[string]series.Summary, len(daily))
	for id, r := range daily {
		if r.Err != nil {
			out[id] = series.Summary{Err: r.Err}
			continue
		}
		s := series.Collapse(r)
		if tr != series.TransformMean {
			v, err := tr.Apply(r.Values())
			if err != nil {
				return nil, err
			}
			s.Value = v
		}
		out[id] = s
	}
	return out, nil
}

// AllDaily computes every numeric statistic for every night of each
// selected user, keyed by calendar day and statistic name.
func AllDaily(src Source, users any, start, end *time.Time) (map[string]map[series.Date]map[string]float64, error) {
	byUser, err := Nights(src, users, start, end)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[series.Date]map[string]float64, len(byUser))
	for id, r := range byUser {
		if r.Err != nil {
			out[id] = nil
			continue
		}
		days := make(map[series.Date]map[string]float64, len(r.Nights))
		for _, n := range r.Nights {
			values := make(map[string]float64, len(Statistics))
			for _, stat := range Statistics {
				values[stat.String()] = stat.of(n)
			}
			days[n.Date] = values
		}
		out[id] = days
	}
	return out, nil
}

// SleepWindow is the trio of per-night timestamps.
type SleepWindow struct {
	Bedtime    time.Time
	WakeupTime time.Time
	Midpoint   time.Time
}

// WindowsResult carries one user's per-day sleep windows.
type WindowsResult struct {
	Days map[series.Date]SleepWindow
	Err  error
}

// Windows returns bedtime, wake-up time and midpoint per night.
func Windows(src Source, users any, start, end *time.Time) (map[string]WindowsResult, error) {
	byUser, err := Nights(src, users, start, end)
	if err != nil {
		return nil, err
	}
	out := make(map[string]WindowsResult, len(byUser))
	for id, r := range byUser {
		if r.Err != nil {
			out[id] = WindowsResult{Err: r.Err}
			continue
		}
		days := make(map[series.Date]SleepWindow, len(r.Nights))
		for _, n := range r.Nights {
			days[n.Date] = SleepWindow{Bedtime: n.Bedtime, WakeupTime: n.WakeupTime, Midpoint: n.Midpoint}
		}
		out[id] = WindowsResult{Days: days}
	}
	return out, nil
}

// MeanClocks collapses a user's sleep windows into circular-mean
// "HH:MM" clock times for bedtime, wake-up and midpoint.
func MeanClocks(r WindowsResult) (bed, wake, mid string, err error) {
	if r.Err != nil {
		return "", "", "", r.Err
	}
	var beds, wakes, mids []string
	for _, d := range series.SortedDates(r.Days) {
		w := r.Days[d]
		beds = append(beds, w.Bedtime.Format("15:04"))
		wakes = append(wakes, w.WakeupTime.Format("15:04"))
		mids = append(mids, w.Midpoint.Format("15:04"))
	}
	if bed, err = series.MeanClock(beds); err != nil {
		return "", "", "", err
	}
	if wake, err = series.MeanClock(wakes); err != nil {
		return "", "", "", err
	}
	if mid, err = series.MeanClock(mids); err != nil {
		return "", "", "", err
	}
	return bed, wake, mid, nil
}
