package sleep

import (
	"math"
	"sort"
	"time"

	"github.com/lifespan-research/wearkit/wearkit/loader"
	"github.com/lifespan-research/wearkit/wearkit/series"
)

const msPerMinute = 60 * 1000

// Night holds every statistic derived from one sleep summary and its
// stages. Durations and latencies are minutes, percentages are 0-100.
// Garmin never reports N2, so N2-derived values stay NaN; a night
// without stage data keeps NaN for all stage-derived statistics.
type Night struct {
	SummaryID string
	Date      series.Date

	Bedtime    time.Time
	WakeupTime time.Time
	Midpoint   time.Time

	Score      float64
	DurationMs float64

	TIB  float64 // time in bed: sleep + awake
	SPT  float64 // sleep period time: first to last non-awake stage
	TST  float64 // total sleep time: N1+N2+N3+REM
	SE   float64 // sleep efficiency: TST/TIB
	SME  float64 // sleep maintenance efficiency: TST/SPT
	WASO float64 // wake after sleep onset
	SOL  float64 // sleep onset latency

	N1, N2, N3, REM, NREM      float64
	Awake, Unmeasurable        float64
	LatN1, LatN2, LatN3        float64
	LatREM                     float64
	PctN1, PctN2, PctN3        float64
	PctREM, PctNREM            float64
	CountAwake, CountN1        float64
	CountN2, CountN3, CountREM float64
}

// nz treats NaN as zero for sums over stage durations.
func nz(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func newNight(s loader.SleepSummary, stages []loader.SleepStage) Night {
	sort.Slice(stages, func(i, j int) bool { return stages[i].Timestamp.Before(stages[j].Timestamp) })

	n := Night{
		SummaryID:  s.ID,
		Date:       s.CalendarDate,
		Bedtime:    s.Timestamp,
		Score:      s.Score,
		DurationMs: s.DurationMs,
	}
	n.WakeupTime = s.Timestamp.Add(time.Duration(nz(s.DurationMs)+nz(s.AwakeMs)) * time.Millisecond)
	n.Midpoint = s.Timestamp.Add(n.WakeupTime.Sub(s.Timestamp) / 2)

	n.N1 = s.N1Ms / msPerMinute
	n.N2 = s.N2Ms / msPerMinute
	n.N3 = s.N3Ms / msPerMinute
	n.REM = s.RemMs / msPerMinute
	n.Awake = s.AwakeMs / msPerMinute
	n.Unmeasurable = s.UnmeasurableMs / msPerMinute

	stageTotal := nz(s.N1Ms) + nz(s.N2Ms) + nz(s.N3Ms) + nz(s.RemMs)
	n.NREM = (stageTotal - nz(s.RemMs)) / msPerMinute
	n.TST = stageTotal / msPerMinute
	n.TIB = (s.DurationMs + s.AwakeMs) / msPerMinute
	n.SE = n.TST / n.TIB * 100
	n.PctN1 = s.N1Ms / stageTotal * 100
	n.PctN2 = s.N2Ms / stageTotal * 100
	n.PctN3 = s.N3Ms / stageTotal * 100
	n.PctREM = s.RemMs / stageTotal * 100
	n.PctNREM = (stageTotal - nz(s.RemMs)) / stageTotal * 100

	n.SPT = sleepPeriodTime(stages)
	n.SME = n.TST / n.SPT * 100
	n.WASO = wakeAfterSleepOnset(stages)

	n.LatN1 = stageLatency(stages, loader.StageN1, s.Timestamp)
	n.LatN2 = stageLatency(stages, loader.StageN2, s.Timestamp)
	n.LatN3 = stageLatency(stages, loader.StageN3, s.Timestamp)
	n.LatREM = stageLatency(stages, loader.StageREM, s.Timestamp)
	n.SOL = series.Min([]float64{n.LatN1, n.LatN2, n.LatN3, n.LatREM})

	if len(stages) == 0 {
		n.CountAwake, n.CountN1, n.CountN2 = math.NaN(), math.NaN(), math.NaN()
		n.CountN3, n.CountREM = math.NaN(), math.NaN()
	} else {
		for _, st := range stages {
			switch st.Stage {
			case loader.StageAwake:
				n.CountAwake++
			case loader.StageN1:
				n.CountN1++
			case loader.StageN2:
				n.CountN2++
			case loader.StageN3:
				n.CountN3++
			case loader.StageREM:
				n.CountREM++
			}
		}
	}
	return n
}

// sleepPeriodTime is the span in minutes from the start of the first
// non-awake stage to the end of the last one.
func sleepPeriodTime(stages []loader.SleepStage) float64 {
	var asleep []loader.SleepStage
	for _, st := range stages {
		if st.Stage != loader.StageAwake {
			asleep = append(asleep, st)
		}
	}
	if len(asleep) == 0 {
		return math.NaN()
	}
	first := asleep[0]
	last := asleep[len(asleep)-1]
	endMs := float64(last.Timestamp.UnixMilli()) + last.DurationMs
	return (endMs - float64(first.Timestamp.UnixMilli())) / msPerMinute
}

// wakeAfterSleepOnset sums awake minutes between sleep onset and the
// final wake-up: a leading or trailing awake stage does not count.
func wakeAfterSleepOnset(stages []loader.SleepStage) float64 {
	if len(stages) == 0 {
		return math.NaN()
	}
	if stages[0].Stage == loader.StageAwake {
		stages = stages[1:]
	}
	if len(stages) > 0 && stages[len(stages)-1].Stage == loader.StageAwake {
		stages = stages[:len(stages)-1]
	}
	var waso float64
	for _, st := range stages {
		if st.Stage == loader.StageAwake {
			waso += st.DurationMs
		}
	}
	return waso / msPerMinute
}

// stageLatency is the delay in minutes from bedtime to the first
// occurrence of the stage, NaN when the stage never occurs.
func stageLatency(stages []loader.SleepStage, stage loader.Stage, bedtime time.Time) float64 {
	for _, st := range stages {
		if st.Stage == stage {
			return st.Timestamp.Sub(bedtime).Minutes()
		}
	}
	return math.NaN()
}
