package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sourcegraph/conc/pool"
)

// metricIndex holds the per-file sample spans of one metric for one
// participant. Plain metrics index files directly; questionnaire and
// todo folders index files per task.
type metricIndex struct {
	files map[string]FileTimeStats            // fileName -> span
	tasks map[string]map[string]FileTimeStats // taskID -> fileName -> span

	firstMs int64
	lastMs  int64
	spanSet bool
}

func newMetricIndex() *metricIndex {
	return &metricIndex{
		files: make(map[string]FileTimeStats),
		tasks: make(map[string]map[string]FileTimeStats),
	}
}

func (m *metricIndex) widen(s FileTimeStats) {
	if !m.spanSet {
		m.firstMs, m.lastMs, m.spanSet = s.FirstMs, s.LastMs, true
		return
	}
	if s.FirstMs < m.firstMs {
		m.firstMs = s.FirstMs
	}
	if s.LastMs > m.lastMs {
		m.lastMs = s.LastMs
	}
}

// TimeIndex maps every participant's metric files to the time span of
// the samples they contain, so that range queries can pick files
// without opening them.
type TimeIndex struct {
	mu           sync.RWMutex
	participants map[string]map[string]*metricIndex // fullID -> metric -> index
	builtAt      time.Time
}

// Metrics returns the metric folders indexed for a participant, task
// folders included, sorted.
func (ti *TimeIndex) Metrics(fullID string) []string {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	metrics := ti.participants[fullID]
	out := make([]string, 0, len(metrics))
	for m := range metrics {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Tasks returns the task sub-folders indexed under a questionnaire or
// todo folder, sorted.
func (ti *TimeIndex) Tasks(fullID, folder string) []string {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	mi := ti.participants[fullID][folder]
	if mi == nil {
		return nil
	}
	out := make([]string, 0, len(mi.tasks))
	for t := range mi.tasks {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Files returns every indexed file for a metric with its span. For
// task folders pass the task id; for plain metrics leave it empty.
func (ti *TimeIndex) Files(fullID, metric, task string) map[string]FileTimeStats {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	mi := ti.participants[fullID][metric]
	if mi == nil {
		return nil
	}
	if task != "" {
		return mi.tasks[task]
	}
	return mi.files
}

// Span returns the overall first/last sample timestamps recorded for a
// metric, and whether any file carried a span at all.
func (ti *TimeIndex) Span(fullID, metric string) (FileTimeStats, bool) {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	mi := ti.participants[fullID][metric]
	if mi == nil || !mi.spanSet {
		return FileTimeStats{}, false
	}
	return FileTimeStats{FirstMs: mi.firstMs, LastMs: mi.lastMs}, true
}

// BuiltAt reports when the index scan finished.
func (ti *TimeIndex) BuiltAt() time.Time {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return ti.builtAt
}

// buildIndex scans every participant folder concurrently and reads the
// metadata block of each CSV file. Scanning is idempotent: rebuilding
// over the same directory yields an identical index.
func buildIndex(ctx context.Context, root string, folders []string, workers int, ign *ignore.GitIgnore) (*TimeIndex, error) {
	if workers <= 0 {
		workers = min(max(runtime.NumCPU()*2, 4), 32)
	}
	ti := &TimeIndex{participants: make(map[string]map[string]*metricIndex, len(folders))}

	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError()
	for _, folder := range folders {
		p.Go(func(ctx context.Context) error {
			metrics, err := scanParticipant(ctx, root, folder, ign)
			if err != nil {
				return fmt.Errorf("scanning %s: %w", folder, err)
			}
			ti.mu.Lock()
			ti.participants[folder] = metrics
			ti.mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	ti.builtAt = time.Now()
	return ti, nil
}

func scanParticipant(ctx context.Context, root, folder string, ign *ignore.GitIgnore) (map[string]*metricIndex, error) {
	base := filepath.Join(root, folder)
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, err
	}

	metrics := make(map[string]*metricIndex)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if ign != nil && ign.MatchesPath(filepath.Join(folder, name)) {
			slog.Debug("ignoring metric folder", "participant", folder, "metric", name)
			continue
		}
		mi := newMetricIndex()
		if IsTaskFolder(name) {
			if err := scanTaskFolder(filepath.Join(base, name), mi); err != nil {
				return nil, err
			}
		} else {
			files, err := scanMetricFolder(filepath.Join(base, name), mi)
			if err != nil {
				return nil, err
			}
			mi.files = files
		}
		metrics[name] = mi
	}
	return metrics, nil
}

func scanTaskFolder(dir string, mi *metricIndex) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		files, err := scanMetricFolder(filepath.Join(dir, e.Name()), mi)
		if err != nil {
			return err
		}
		mi.tasks[e.Name()] = files
	}
	return nil
}

func scanMetricFolder(dir string, mi *metricIndex) (map[string]FileTimeStats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make(map[string]FileTimeStats)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		stats, err := fileTimeStats(filepath.Join(dir, e.Name()))
		if err != nil {
			// A file the index cannot read is a file range queries would
			// silently miss, so indexing fails instead of skipping it.
			return nil, err
		}
		files[e.Name()] = stats
		mi.widen(stats)
	}
	return files, nil
}
