package loader

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/lifespan-research/wearkit/wearkit/series"
)

// Sample is a single timestamped value from a metric stream.
type Sample struct {
	Timestamp time.Time
	Value     float64
}

// loadSamples reads one metric and projects a single value column.
func (l *Loader) loadSamples(user, metric, col string, start, end *time.Time) ([]Sample, error) {
	table, err := l.Load(user, metric, "", start, end)
	if err != nil {
		return nil, err
	}
	samples := make([]Sample, 0, table.Len())
	for i := 0; i < table.Len(); i++ {
		samples = append(samples, Sample{Timestamp: table.Time(i), Value: table.Float(i, col)})
	}
	return samples, nil
}

// LoadHeartRate reads per-sample heart rate in beats per minute.
func (l *Loader) LoadHeartRate(user string, start, end *time.Time) ([]Sample, error) {
	return l.loadSamples(user, MetricDailyHeartRate, ColHeartRate, start, end)
}

// LoadDeviceHeartRate reads heart rate streamed straight from the device.
func (l *Loader) LoadDeviceHeartRate(user string, start, end *time.Time) ([]Sample, error) {
	return l.loadSamples(user, MetricDeviceHeartRate, ColHeartRate, start, end)
}

// LoadBBI reads beat-to-beat intervals in milliseconds from the device.
func (l *Loader) LoadBBI(user string, start, end *time.Time) ([]Sample, error) {
	return l.loadSamples(user, MetricDeviceBBI, ColBBI, start, end)
}

// LoadSteps reads the device step stream.
func (l *Loader) LoadSteps(user string, start, end *time.Time) ([]Sample, error) {
	return l.loadSamples(user, MetricDeviceStep, ColSteps, start, end)
}

// StressSample carries one stress reading and the body battery level
// recorded with it. Garmin reports stress as -1 or -2 when the level
// could not be measured; those rows keep their raw value so callers
// can decide how to treat them.
type StressSample struct {
	Timestamp   time.Time
	Level       float64
	BodyBattery float64
}

// LoadStress reads the server-aggregated stress stream.
func (l *Loader) LoadStress(user string, start, end *time.Time) ([]StressSample, error) {
	table, err := l.Load(user, MetricStress, "", start, end)
	if err != nil {
		return nil, err
	}
	samples := make([]StressSample, 0, table.Len())
	for i := 0; i < table.Len(); i++ {
		samples = append(samples, StressSample{
			Timestamp:   table.Time(i),
			Level:       table.Float(i, ColStressLevel),
			BodyBattery: table.Float(i, ColBodyBattery),
		})
	}
	return samples, nil
}

// LoadDeviceStress reads the device stress stream.
func (l *Loader) LoadDeviceStress(user string, start, end *time.Time) ([]Sample, error) {
	return l.loadSamples(user, MetricDeviceStress, ColStressLevel, start, end)
}

// FlaggedSample is a sample annotated with whether it was recorded
// during sleep.
type FlaggedSample struct {
	Timestamp time.Time
	Value     float64
	Sleep     bool
}

// mergeSleepFlag marks the rows of the daily stream that also appear
// in the sleep stream. The daily export already contains the sleep
// samples, so the sleep table only contributes the flag; when no daily
// data exists the sleep samples are returned on their own.
func mergeSleepFlag(daily, sleep []Sample) []FlaggedSample {
	if len(daily) == 0 {
		out := make([]FlaggedSample, len(sleep))
		for i, s := range sleep {
			out[i] = FlaggedSample{Timestamp: s.Timestamp, Value: s.Value, Sleep: true}
		}
		return out
	}
	asleep := make(map[int64]struct{}, len(sleep))
	for _, s := range sleep {
		asleep[s.Timestamp.UnixMilli()] = struct{}{}
	}
	out := make([]FlaggedSample, len(daily))
	for i, s := range daily {
		_, ok := asleep[s.Timestamp.UnixMilli()]
		out[i] = FlaggedSample{Timestamp: s.Timestamp, Value: s.Value, Sleep: ok}
	}
	return out
}

// LoadPulseOx reads SpO2 samples, merging the daily and sleep streams
// and flagging samples recorded during sleep.
func (l *Loader) LoadPulseOx(user string, start, end *time.Time) ([]FlaggedSample, error) {
	daily, err := l.loadSamples(user, MetricDailyPulseOx, ColSpO2, start, end)
	if err != nil {
		return nil, err
	}
	sleep, err := l.loadSamples(user, MetricSleepPulseOx, ColSpO2, start, end)
	if err != nil {
		return nil, err
	}
	return mergeSleepFlag(daily, sleep), nil
}

// LoadRespiration reads breaths-per-minute samples, merging the daily
// and sleep streams and flagging samples recorded during sleep.
func (l *Loader) LoadRespiration(user string, start, end *time.Time) ([]FlaggedSample, error) {
	daily, err := l.loadSamples(user, MetricDailyRespiration, ColBreathsPerMinute, start, end)
	if err != nil {
		return nil, err
	}
	sleep, err := l.loadSamples(user, MetricSleepRespiration, ColBreathsPerMinute, start, end)
	if err != nil {
		return nil, err
	}
	return mergeSleepFlag(daily, sleep), nil
}

// LoadDevicePulseOx reads the on-device SDK SpO2 capture.
func (l *Loader) LoadDevicePulseOx(user string, start, end *time.Time) ([]Sample, error) {
	return l.loadSamples(user, MetricDevicePulseOx, ColSpO2, start, end)
}

// LoadDeviceRespiration reads the on-device SDK respiration capture.
func (l *Loader) LoadDeviceRespiration(user string, start, end *time.Time) ([]Sample, error) {
	return l.loadSamples(user, MetricDeviceRespiration, ColBreathsPerMinute, start, end)
}

// LoadBodyComposition reads the body composition stream as a raw
// table; its columns vary with the scale model, so no fixed projection
// is applied.
func (l *Loader) LoadBodyComposition(user string, start, end *time.Time) (*series.Table, error) {
	return l.Load(user, MetricBodyComposition, "", start, end)
}

// DailySummary is one day's aggregated activity and vitals record.
// Garmin re-exports the summary as the day progresses; LoadDailySummary
// keeps only the last snapshot per calendar date.
type DailySummary struct {
	Timestamp           time.Time
	CalendarDate        series.Date
	Steps               float64
	DistanceMeters      float64
	StepsGoal           float64
	ModerateIntensityMs float64
	VigorousIntensityMs float64
	AverageStress       float64
	MaximumStress       float64
	RestStressMs        float64
	LowStressMs         float64
	MediumStressMs      float64
	HighStressMs        float64
	ActivityStressMs    float64
	UncategorizedMs     float64
	StressQualifier     string
	RestingHeartRate    float64
	AverageHeartRate    float64
	MaximumHeartRate    float64
	MinimumHeartRate    float64
}

// LoadDailySummary reads the per-day summary stream.
func (l *Loader) LoadDailySummary(user string, start, end *time.Time) ([]DailySummary, error) {
	table, err := l.Load(user, MetricDailySummary, "", start, end)
	if err != nil {
		return nil, err
	}
	table = table.LastPerDate(ColCalendarDate)
	out := make([]DailySummary, 0, table.Len())
	for i := 0; i < table.Len(); i++ {
		date, err := series.ParseDate(table.Value(i, ColCalendarDate))
		if err != nil {
			continue
		}
		out = append(out, DailySummary{
			Timestamp:           table.Time(i),
			CalendarDate:        date,
			Steps:               table.Float(i, ColSteps),
			DistanceMeters:      table.Float(i, ColDistanceMeters),
			StepsGoal:           table.Float(i, ColStepsGoal),
			ModerateIntensityMs: table.Float(i, ColModerateIntensityMs),
			VigorousIntensityMs: table.Float(i, ColVigorousIntensityMs),
			AverageStress:       table.Float(i, ColAverageStress),
			MaximumStress:       table.Float(i, ColMaximumStress),
			RestStressMs:        table.Float(i, ColRestStressMs),
			LowStressMs:         table.Float(i, ColLowStressMs),
			MediumStressMs:      table.Float(i, ColMediumStressMs),
			HighStressMs:        table.Float(i, ColHighStressMs),
			ActivityStressMs:    table.Float(i, ColActivityStressMs),
			UncategorizedMs:     table.Float(i, ColUncategorizedMs),
			StressQualifier:     table.Value(i, ColStressQualifier),
			RestingHeartRate:    table.Float(i, ColRestingHeartRate),
			AverageHeartRate:    table.Float(i, ColAverageHeartRate),
			MaximumHeartRate:    table.Float(i, ColMaximumHeartRate),
			MinimumHeartRate:    table.Float(i, ColMinimumHeartRate),
		})
	}
	return out, nil
}

// EpochSample is one activity epoch.
type EpochSample struct {
	Timestamp    time.Time
	Intensity    string
	ActiveTimeMs float64
	Steps        float64
}

// LoadEpochs reads the per-epoch activity stream.
func (l *Loader) LoadEpochs(user string, start, end *time.Time) ([]EpochSample, error) {
	table, err := l.Load(user, MetricEpoch, "", start, end)
	if err != nil {
		return nil, err
	}
	out := make([]EpochSample, 0, table.Len())
	for i := 0; i < table.Len(); i++ {
		out = append(out, EpochSample{
			Timestamp:    table.Time(i),
			Intensity:    table.Value(i, ColIntensity),
			ActiveTimeMs: table.Float(i, ColActiveTimeMs),
			Steps:        table.Float(i, ColSteps),
		})
	}
	return out, nil
}

// Stage is a sleep stage. The export labels light and deep sleep the
// Garmin way; they are remapped onto the N1/N3 nomenclature on load.
type Stage int

const (
	StageUnknown Stage = iota
	StageAwake
	StageN1
	StageN2
	StageN3
	StageREM
	StageUnmeasurable
)

func (s Stage) String() string {
	switch s {
	case StageAwake:
		return "awake"
	case StageN1:
		return "n1"
	case StageN2:
		return "n2"
	case StageN3:
		return "n3"
	case StageREM:
		return "rem"
	case StageUnmeasurable:
		return "unmeasurable"
	default:
		return "unknown"
	}
}

func parseStage(raw string) Stage {
	switch raw {
	case stageRawAwake:
		return StageAwake
	case stageRawLight:
		return StageN1
	case stageRawDeep:
		return StageN3
	case stageRawRem:
		return StageREM
	case stageRawUnmeasurable:
		return StageUnmeasurable
	default:
		return StageUnknown
	}
}

// SleepStage is one contiguous stretch of a single sleep stage.
type SleepStage struct {
	SummaryID  string
	Timestamp  time.Time
	DurationMs float64
	Stage      Stage
}

// LoadSleepStage reads the sleep stage stream.
func (l *Loader) LoadSleepStage(user string, start, end *time.Time) ([]SleepStage, error) {
	table, err := l.Load(user, MetricSleepStage, "", start, end)
	if err != nil {
		return nil, err
	}
	out := make([]SleepStage, 0, table.Len())
	for i := 0; i < table.Len(); i++ {
		out = append(out, SleepStage{
			SummaryID:  table.Value(i, ColSleepSummaryID),
			Timestamp:  table.Time(i),
			DurationMs: table.Float(i, ColDurationMs),
			Stage:      parseStage(table.Value(i, ColSleepStageType)),
		})
	}
	return out, nil
}

// SleepSummary is one night's sleep record. N2 stays NaN: Garmin does
// not separate N2 from N1, the whole light-sleep block lands in N1.
type SleepSummary struct {
	ID               string
	Timestamp        time.Time
	UnixMs           int64
	TimezoneOffsetMs int64
	CalendarDate     series.Date
	DurationMs       float64
	N1Ms             float64
	N2Ms             float64
	N3Ms             float64
	RemMs            float64
	AwakeMs          float64
	UnmeasurableMs   float64
	Score            float64
	Validation       string
}

// validationRank orders sleep summary validation states from least to
// most reliable.
func validationRank(v string) int {
	switch v {
	case "AUTO_TENTATIVE":
		return 1
	case "AUTO_FINAL":
		return 2
	case "ENHANCED_TENTATIVE":
		return 3
	case "ENHANCED_FINAL":
		return 4
	default:
		return 0
	}
}

// LoadSleepSummary reads sleep summaries for [start, end]. The window
// is widened by one day on each side before resolving files, because a
// night's record is timestamped on the evening before its calendar
// date; the result is then cut back to the requested dates. With
// sameDayFilter set, multiple records sharing a calendar date collapse
// to the most reliable one (highest validation, then longest duration).
func (l *Loader) LoadSleepSummary(user string, start, end *time.Time, sameDayFilter bool) ([]SleepSummary, error) {
	var wStart, wEnd *time.Time
	if start != nil {
		s := start.AddDate(0, 0, -1)
		wStart = &s
	}
	if end != nil {
		e := end.AddDate(0, 0, 1)
		wEnd = &e
	}

	table, err := l.Load(user, MetricSleepSummary, "", wStart, wEnd)
	if err != nil {
		return nil, err
	}

	summaries := make([]SleepSummary, 0, table.Len())
	for i := 0; i < table.Len(); i++ {
		date, err := series.ParseDate(table.Value(i, ColCalendarDate))
		if err != nil {
			continue
		}
		unixMs, _ := strconv.ParseInt(table.Value(i, ColUnixTimestampMs), 10, 64)
		offsetMs, _ := strconv.ParseInt(table.Value(i, ColTimezoneOffsetMs), 10, 64)
		summaries = append(summaries, SleepSummary{
			ID:               table.Value(i, ColSleepSummaryID),
			Timestamp:        table.Time(i),
			UnixMs:           unixMs,
			TimezoneOffsetMs: offsetMs,
			CalendarDate:     date,
			DurationMs:       table.Float(i, ColDurationMs),
			N1Ms:             table.Float(i, ColLightSleepDuration),
			N2Ms:             math.NaN(),
			N3Ms:             table.Float(i, ColDeepSleepDurationMs),
			RemMs:            table.Float(i, ColRemSleepMs),
			AwakeMs:          table.Float(i, ColAwakeDurationMs),
			UnmeasurableMs:   table.Float(i, ColUnmeasurableSleepMs),
			Score:            table.Float(i, ColSleepScore),
			Validation:       table.Value(i, ColValidation),
		})
	}

	if sameDayFilter {
		summaries = bestPerDate(summaries)
	}

	// Cut the widened window back to the requested calendar dates.
	var cut []SleepSummary
	for _, s := range summaries {
		if start != nil && s.CalendarDate.Before(series.DateOf(*start)) {
			continue
		}
		if end != nil && s.CalendarDate.After(series.DateOf(*end)) {
			continue
		}
		cut = append(cut, s)
	}
	sort.Slice(cut, func(i, j int) bool { return cut[i].CalendarDate.Before(cut[j].CalendarDate) })
	return cut, nil
}

// bestPerDate keeps one summary per calendar date: the one with the
// highest validation rank, ties broken by the longest duration, then
// by latest file order.
func bestPerDate(summaries []SleepSummary) []SleepSummary {
	best := make(map[series.Date]int)
	for i, s := range summaries {
		j, ok := best[s.CalendarDate]
		if !ok {
			best[s.CalendarDate] = i
			continue
		}
		prev := summaries[j]
		switch {
		case validationRank(s.Validation) > validationRank(prev.Validation):
			best[s.CalendarDate] = i
		case validationRank(s.Validation) == validationRank(prev.Validation) && !(s.DurationMs < prev.DurationMs):
			best[s.CalendarDate] = i
		}
	}
	out := make([]SleepSummary, 0, len(best))
	for i, s := range summaries {
		if best[s.CalendarDate] == i {
			out = append(out, s)
		}
	}
	return out
}
