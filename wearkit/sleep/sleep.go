// Package sleep derives per-night sleep statistics from sleep summary
// and sleep stage exports: durations, efficiencies, latencies, stage
// percentages and counts, sleep timestamps, regularity (CPD) scores
// and per-minute hypnograms.
package sleep

import (
	"time"

	"github.com/lifespan-research/wearkit/wearkit/loader"
	"github.com/lifespan-research/wearkit/wearkit/series"
)

// Source is the loader surface the sleep queries need.
// *loader.Loader satisfies it.
type Source interface {
	FullIDs() []string
	LoadSleepSummary(user string, start, end *time.Time, sameDayFilter bool) ([]loader.SleepSummary, error)
	LoadSleepStage(user string, start, end *time.Time) ([]loader.SleepStage, error)
}

// loadNights reads a user's sleep summaries and the stages belonging
// to them, and derives one Night per summary. Stages are fetched over
// the span from the first summary's bedtime to the last summary's
// wake-up, then matched to summaries by id.
func loadNights(src Source, user string, start, end *time.Time) ([]Night, error) {
	summaries, err := src.LoadSleepSummary(user, start, end, true)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, nil
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

	nights := make([]Night, 0, len(summaries))
	for _, s := range summaries {
		nights = append(nights, newNight(s, byID[s.ID]))
	}
	return nights, nil
}

// NightsResult carries one user's nights, or the error that prevented
// computing them.
type NightsResult struct {
	Nights []Night
	Err    error
}

// Nights computes the full per-night record for each selected user.
// One failing user never aborts the batch: its entry carries the error.
func Nights(src Source, users any, start, end *time.Time) (map[string]NightsResult, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]NightsResult, len(ids))
	for _, id := range ids {
		nights, err := loadNights(src, id, start, end)
		out[id] = NightsResult{Nights: nights, Err: err}
	}
	return out, nil
}
