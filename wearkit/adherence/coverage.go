package adherence

import (
	"time"

	roaring "github.com/RoaringBitmap/roaring"

	"github.com/lifespan-research/wearkit/wearkit/loader"
	"github.com/lifespan-research/wearkit/wearkit/series"
)

const msPerHour = 1000 * 60 * 60

// SampleFunc loads one user's samples for a metric stream, the shape
// every typed Load method on the loader has.
type SampleFunc func(user string, start, end *time.Time) ([]loader.Sample, error)

// MetricAdherence returns the per-day sample coverage of one metric
// stream as a percentage of the samples a device emitting every period
// would produce. Coverage is counted through a bitmap of occupied
// seconds of day, so duplicated timestamps never inflate it.
func MetricAdherence(src Source, users any, load SampleFunc, period time.Duration, start, end *time.Time) (map[string]series.Result, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	expected := float64(24*time.Hour) / float64(period)
	out := make(map[string]series.Result, len(ids))
	for _, id := range ids {
		samples, err := load(id, start, end)
		if err != nil {
			out[id] = series.Failed(err)
			continue
		}
		seconds := make(map[series.Date]*roaring.Bitmap)
		for _, s := range samples {
			day := series.DateOf(s.Timestamp)
			bm, ok := seconds[day]
			if !ok {
				bm = roaring.New()
				seconds[day] = bm
			}
			ts := s.Timestamp
			bm.Add(uint32(ts.Hour()*3600 + ts.Minute()*60 + ts.Second()))
		}
		days := make(map[series.Date]float64, len(seconds))
		for day, bm := range seconds {
			days[day] = round2(float64(bm.GetCardinality()) / expected * 100)
		}
		out[id] = series.Daily(days)
	}
	return out, nil
}

// WearTime returns the hours of beat-to-beat interval coverage per
// calendar day. Summed interval durations approximate how long the
// device was actually worn.
func WearTime(src Source, users any, start, end *time.Time) (map[string]series.Result, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]series.Result, len(ids))
	for _, id := range ids {
		samples, err := src.LoadBBI(id, start, end)
		if err != nil {
			out[id] = series.Failed(err)
			continue
		}
		days := make(map[series.Date]float64)
		for _, s := range samples {
			days[series.DateOf(s.Timestamp)] += s.Value / msPerHour
		}
		out[id] = series.Daily(days)
	}
	return out, nil
}

// NightCount relates the number of recorded nights to the nights a
// study window spans.
type NightCount struct {
	Nights   int
	Expected int
	Percent  float64
	Err      error
}

// Nights counts the nights with a sleep summary inside [start, end)
// against the window's length in days.
func Nights(src Source, users any, start, end time.Time) (map[string]NightCount, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	expected := int(end.Sub(start).Hours() / 24)
	out := make(map[string]NightCount, len(ids))
	for _, id := range ids {
		summaries, err := src.LoadSleepSummary(id, &start, &end, true)
		if err != nil {
			out[id] = NightCount{Expected: expected, Err: err}
			continue
		}
		nights := make(map[series.Date]bool, len(summaries))
		for _, s := range summaries {
			nights[s.CalendarDate] = true
		}
		count := NightCount{Nights: len(nights), Expected: expected}
		if expected > 0 {
			count.Percent = round2(float64(len(nights)) / float64(expected) * 100)
		}
		out[id] = count
	}
	return out, nil
}
