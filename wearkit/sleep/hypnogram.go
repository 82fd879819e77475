package sleep

import (
	"sort"
	"time"

	"github.com/lifespan-research/wearkit/wearkit/loader"
	"github.com/lifespan-research/wearkit/wearkit/series"
)

// Hypnogram is the per-interval stage reconstruction of one night,
// from bedtime to final wake-up at a fixed resolution.
type Hypnogram struct {
	Date       series.Date
	Start      time.Time
	End        time.Time
	Resolution time.Duration
	Stages     []loader.Stage
}

// StageLevel maps a stage onto the numeric level convention used for
// plotting hypnograms: unmeasurable -1, awake 0, N1 1, N2 2, N3 3,
// REM 4.
func StageLevel(s loader.Stage) float64 {
	switch s {
	case loader.StageUnmeasurable:
		return -1
	case loader.StageAwake:
		return 0
	case loader.StageN1:
		return 1
	case loader.StageN2:
		return 2
	case loader.StageN3:
		return 3
	case loader.StageREM:
		return 4
	default:
		return -1
	}
}

// Levels returns the hypnogram as numeric plot levels.
func (h Hypnogram) Levels() []float64 {
	out := make([]float64, len(h.Stages))
	for i, s := range h.Stages {
		out[i] = StageLevel(s)
	}
	return out
}

// Awakenings returns the paired start and end times of the mid-sleep
// awake periods of a hypnogram: an awakening starts when the stage
// drops to awake from sleep and ends when sleep resumes. Leading and
// trailing awake periods are not awakenings.
func (h Hypnogram) Awakenings() (starts, ends []time.Time) {
	levels := h.Levels()
	for i := 1; i < len(levels); i++ {
		at := h.Start.Add(time.Duration(i) * h.Resolution)
		if levels[i] == 0 && levels[i-1] > 0 {
			starts = append(starts, at)
		}
		if levels[i] > 0 && levels[i-1] == 0 && len(starts) > len(ends) {
			ends = append(ends, at)
		}
	}
	if len(ends) < len(starts) {
		starts = starts[:len(ends)]
	}
	return starts, ends
}

// Hypnograms reconstructs one hypnogram per night for a user. The
// stage at each tick is the stage most recently entered at or before
// it; ticks before the first stage fall back to unknown.
func Hypnograms(src Source, user string, start, end *time.Time, resolution time.Duration) (map[series.Date]Hypnogram, error) {
	if resolution <= 0 {
		resolution = time.Minute
	}
	summaries, err := src.LoadSleepSummary(user, start, end, true)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return map[series.Date]Hypnogram{}, nil
	}

	first := summaries[0].Timestamp
	tail := summaries[len(summaries)-1]
	last := tail.Timestamp.Add(time.Duration(nz(tail.DurationMs)+nz(tail.AwakeMs)) * time.Millisecond)
	stages, err := src.LoadSleepStage(user, &first, &last)
	if err != nil {
		return nil, err
	}
	byID := make(map[string][]loader.SleepStage)
	for _, st := range stages {
		byID[st.SummaryID] = append(byID[st.SummaryID], st)
	}

	out := make(map[series.Date]Hypnogram, len(summaries))
	for _, s := range summaries {
		nightStages := byID[s.ID]
		sort.Slice(nightStages, func(i, j int) bool {
			return nightStages[i].Timestamp.Before(nightStages[j].Timestamp)
		})

		bed := s.Timestamp
		wake := bed.Add(time.Duration(nz(s.DurationMs)+nz(s.AwakeMs)) * time.Millisecond)
		ticks := int(wake.Sub(bed) / resolution)

		values := make([]loader.Stage, ticks)
		cur := loader.StageUnknown
		next := 0
		for i := 0; i < ticks; i++ {
			at := bed.Add(time.Duration(i) * resolution)
			for next < len(nightStages) && !nightStages[next].Timestamp.After(at) {
				cur = nightStages[next].Stage
				next++
			}
			values[i] = cur
		}
		out[s.CalendarDate] = Hypnogram{
			Date:       s.CalendarDate,
			Start:      bed,
			End:        wake,
			Resolution: resolution,
			Stages:     values,
		}
	}
	return out, nil
}
