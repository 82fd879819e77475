package loader

import (
	"sort"
	"time"
)

// fileSpan pairs a file name with its recorded sample span.
type fileSpan struct {
	name  string
	stats FileTimeStats
}

func sortedSpans(files map[string]FileTimeStats) []fileSpan {
	spans := make([]fileSpan, 0, len(files))
	for name, stats := range files {
		spans = append(spans, fileSpan{name: name, stats: stats})
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].stats.FirstMs != spans[j].stats.FirstMs {
			return spans[i].stats.FirstMs < spans[j].stats.FirstMs
		}
		return spans[i].name < spans[j].name
	})
	return spans
}

// resolveRange picks the contiguous slice of the sorted file list that
// covers [start, end]. The lower bound is the file with the largest
// first-sample timestamp still at or before start (or, when every file
// starts after start, the file whose start is nearest to it); the
// upper bound mirrors this against last-sample timestamps and end.
// The selection assumes the files do not overlap in time.
func resolveRange(spans []fileSpan, start, end *time.Time) []string {
	if len(spans) == 0 {
		return nil
	}

	// A window entirely outside the recorded span selects nothing.
	if end != nil && end.UnixMilli() < spans[0].stats.FirstMs {
		return nil
	}
	if start != nil && start.UnixMilli() > spans[len(spans)-1].stats.LastMs {
		return nil
	}

	if len(spans) == 1 {
		return []string{spans[0].name}
	}

	low := 0
	if start != nil {
		startMs := start.UnixMilli()
		low = -1
		for i, s := range spans {
			if s.stats.FirstMs <= startMs {
				low = i
			}
		}
		if low < 0 {
			low = nearestIndex(spans, func(s fileSpan) int64 { return s.stats.FirstMs }, startMs)
		}
	}

	high := len(spans) - 1
	if end != nil {
		endMs := end.UnixMilli()
		high = -1
		for i := len(spans) - 1; i >= 0; i-- {
			if spans[i].stats.LastMs >= endMs {
				high = i
			}
		}
		if high < 0 {
			high = nearestIndex(spans, func(s fileSpan) int64 { return s.stats.LastMs }, endMs)
		}
	}

	if high < low {
		return nil
	}
	names := make([]string, 0, high-low+1)
	for _, s := range spans[low : high+1] {
		names = append(names, s.name)
	}
	return names
}

func nearestIndex(spans []fileSpan, key func(fileSpan) int64, target int64) int {
	best, bestDiff := 0, int64(-1)
	for i, s := range spans {
		diff := key(s) - target
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return best
}
