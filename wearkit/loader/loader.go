// Package loader indexes and reads Labfront wearable exports: one
// folder per participant, one sub-folder per metric, CSV files whose
// metadata block records the time span of the samples inside. The
// loader builds a time index over the whole export once, then answers
// range queries by reading only the files that cover the window.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/lifespan-research/wearkit/wearkit/series"
)

// DefaultIgnoreFile is the optional ignore file read from the export
// root to exclude folders from indexing.
const DefaultIgnoreFile = ".wearkitignore"

// Loader reads a Labfront export directory. The index it carries is
// immutable after construction; call Rescan to pick up new files.
type Loader struct {
	root       string
	workers    int
	ignoreFile string

	mu       sync.RWMutex
	registry *Registry
	index    *TimeIndex

	tzMu sync.Mutex
	tz   map[string]*time.Location
}

// Option configures a Loader.
type Option func(*Loader)

// WithScanWorkers bounds the number of concurrent participant scans.
func WithScanWorkers(n int) Option {
	return func(l *Loader) { l.workers = n }
}

// WithIgnoreFile overrides the ignore file name read from the export
// root. Pass an empty string to disable ignore handling.
func WithIgnoreFile(name string) Option {
	return func(l *Loader) { l.ignoreFile = name }
}

// New indexes the export rooted at path. A missing or unreadable root
// is an error: nothing can be answered without an index.
func New(ctx context.Context, root string, opts ...Option) (*Loader, error) {
	l := &Loader{
		root:       root,
		ignoreFile: DefaultIgnoreFile,
		tz:         make(map[string]*time.Location),
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.Rescan(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Rescan rebuilds the participant registry and the time index from
// the export directory. The previous index stays in effect until the
// new one is fully built.
func (l *Loader) Rescan(ctx context.Context) error {
	info, err := os.Stat(l.root)
	if err != nil {
		return fmt.Errorf("loader: export root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("loader: export root %s is not a directory", l.root)
	}

	var ign *ignore.GitIgnore
	if l.ignoreFile != "" {
		ignorePath := filepath.Join(l.root, l.ignoreFile)
		if _, err := os.Stat(ignorePath); err == nil {
			ign, err = ignore.CompileIgnoreFile(ignorePath)
			if err != nil {
				return fmt.Errorf("loader: reading %s: %w", ignorePath, err)
			}
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("loader: checking %s: %w", ignorePath, err)
		}
	}

	entries, err := os.ReadDir(l.root)
	if err != nil {
		return fmt.Errorf("loader: export root: %w", err)
	}
	var folders []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if ign != nil && ign.MatchesPath(e.Name()) {
			continue
		}
		folders = append(folders, e.Name())
	}

	registry := NewRegistry(folders)
	start := time.Now()
	index, err := buildIndex(ctx, l.root, registry.FullIDs(), l.workers, ign)
	if err != nil {
		return err
	}
	slog.Info("export indexed",
		"root", l.root,
		"participants", registry.Len(),
		"elapsed", time.Since(start))

	l.mu.Lock()
	l.registry, l.index = registry, index
	l.mu.Unlock()
	return nil
}

// Root returns the export root path.
func (l *Loader) Root() string { return l.root }

func (l *Loader) snapshot() (*Registry, *TimeIndex) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.registry, l.index
}

// UserIDs returns the bare ids of every indexed participant, sorted.
func (l *Loader) UserIDs() []string {
	reg, _ := l.snapshot()
	return reg.UserIDs()
}

// FullIDs returns the full folder names of every indexed participant.
func (l *Loader) FullIDs() []string {
	reg, _ := l.snapshot()
	return reg.FullIDs()
}

// Resolve maps a user reference to its participant record.
func (l *Loader) Resolve(user string) (*Participant, error) {
	reg, _ := l.snapshot()
	return reg.Resolve(user)
}

// AvailableMetrics returns the metric folders present for a user,
// sorted, task folders included.
func (l *Loader) AvailableMetrics(user string) ([]string, error) {
	reg, idx := l.snapshot()
	p, err := reg.Resolve(user)
	if err != nil {
		return nil, err
	}
	return idx.Metrics(p.FullID), nil
}

// AvailableTasks returns the task ids present under a questionnaire or
// todo folder for a user, sorted.
func (l *Loader) AvailableTasks(user, folder string) ([]string, error) {
	reg, idx := l.snapshot()
	p, err := reg.Resolve(user)
	if err != nil {
		return nil, err
	}
	return idx.Tasks(p.FullID, folder), nil
}

// resolveTaskID maps a task reference to the indexed task folder name.
// Labfront suffixes task folders with an id the same way it does for
// participants, so a bare task name resolves through its prefix.
func resolveTaskID(idx *TimeIndex, fullID, folder, task string) (string, bool) {
	tasks := idx.Tasks(fullID, folder)
	for _, t := range tasks {
		if t == task {
			return t, true
		}
	}
	var match string
	for _, t := range tasks {
		if strings.HasPrefix(t, task+"_") {
			if match != "" {
				return "", false
			}
			match = t
		}
	}
	return match, match != ""
}

// FilesInRange returns the ordered file names whose sample spans cover
// [start, end] for one metric of one user. Task metrics require the
// task name. A metric the user never recorded yields an empty list.
func (l *Loader) FilesInRange(user, metric, task string, start, end *time.Time) ([]string, error) {
	reg, idx := l.snapshot()
	p, err := reg.Resolve(user)
	if err != nil {
		return nil, err
	}
	if IsTaskFolder(metric) {
		if task == "" {
			return nil, fmt.Errorf("%w: metric %s", ErrMissingTaskName, metric)
		}
		taskID, ok := resolveTaskID(idx, p.FullID, metric, task)
		if !ok {
			return nil, nil
		}
		task = taskID
	} else {
		task = ""
	}
	files := idx.Files(p.FullID, metric, task)
	if len(files) == 0 {
		return nil, nil
	}
	return resolveRange(sortedSpans(files), start, end), nil
}

// Load reads one metric of one user over [start, end] into a single
// combined table with normalized local timestamps. Rows are kept in
// file order; within a file the export writes them chronologically.
func (l *Loader) Load(user, metric, task string, start, end *time.Time) (*series.Table, error) {
	files, err := l.FilesInRange(user, metric, task, start, end)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return series.NewTable(nil), nil
	}

	p, err := l.Resolve(user)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(l.root, p.FullID, metric)
	if IsTaskFolder(metric) {
		_, idx := l.snapshot()
		taskID, _ := resolveTaskID(idx, p.FullID, metric, task)
		dir = filepath.Join(dir, taskID)
	}

	skip, err := headerLength(filepath.Join(dir, files[0]))
	if err != nil {
		return nil, err
	}
	if metric == MetricQuestionnaire {
		kl, ok, err := keyLength(filepath.Join(dir, files[0]), skip)
		if err != nil {
			return nil, err
		}
		if ok {
			skip += kl + 1
		}
	}

	table := series.NewTable(nil)
	connect := IsConnectMetric(metric)
	for _, f := range files {
		header, rows, err := readRecords(filepath.Join(dir, f), skip)
		if err != nil {
			return nil, err
		}
		if header == nil {
			continue
		}
		l.appendRows(table, header, rows, connect)
	}
	return table.FilterTime(start, end), nil
}

// appendRows merges one file's records into the combined table and
// stamps each row with its normalized local time. Server-aggregated
// metrics carry a millisecond UTC offset; device metrics carry an IANA
// timezone name per row.
func (l *Loader) appendRows(table *series.Table, header []string, rows [][]string, connect bool) {
	unixIdx, offsetIdx, tzIdx := -1, -1, -1
	for i, name := range header {
		switch name {
		case ColUnixTimestampMs:
			unixIdx = i
		case ColTimezoneOffsetMs:
			offsetIdx = i
		case ColTimezone:
			tzIdx = i
		}
	}

	for _, rec := range rows {
		var local time.Time
		if unixIdx >= 0 && unixIdx < len(rec) {
			if ms, err := strconv.ParseInt(strings.TrimSpace(rec[unixIdx]), 10, 64); err == nil {
				switch {
				case connect && offsetIdx >= 0 && offsetIdx < len(rec):
					offset, _ := strconv.ParseInt(strings.TrimSpace(rec[offsetIdx]), 10, 64)
					local = time.UnixMilli(ms + offset).UTC()
				case tzIdx >= 0 && tzIdx < len(rec):
					local = stripZone(time.UnixMilli(ms).In(l.location(rec[tzIdx])))
				default:
					local = time.UnixMilli(ms).UTC()
				}
			}
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		table.AppendNamed(header, row, local)
	}
}

// location resolves an IANA timezone name, caching lookups. Unknown
// names fall back to UTC rather than dropping the row.
func (l *Loader) location(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	l.tzMu.Lock()
	defer l.tzMu.Unlock()
	if loc, ok := l.tz[name]; ok {
		return loc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("unknown timezone, assuming UTC", "timezone", name)
		loc = time.UTC
	}
	l.tz[name] = loc
	return loc
}

// stripZone rewrites a zoned instant as the same wall-clock time in
// UTC, matching the naive local timestamps used across the tables.
func stripZone(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
