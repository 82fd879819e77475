package series

import (
	"math"
	"strconv"
	"time"
)

// Table is the in-memory result of loading one or more export CSV files.
// Rows keep file order: within a file rows are chronological by
// construction of the export, but no global re-sort is applied after
// concatenation.
type Table struct {
	header []string
	index  map[string]int
	rows   [][]string
	times  []time.Time
}

// NewTable creates an empty table with the given column header.
func NewTable(header []string) *Table {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	return &Table{header: header, index: index}
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Columns returns the column names in file order.
func (t *Table) Columns() []string { return t.header }

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// AppendRow adds a data row together with its normalized local timestamp.
func (t *Table) AppendRow(row []string, localTime time.Time) {
	t.rows = append(t.rows, row)
	t.times = append(t.times, localTime)
}

// AppendNamed adds a row given as a column-name map, growing the header
// with any columns not yet seen. Files concatenated into one table may
// disagree on columns; alignment is by name, missing cells stay empty.
func (t *Table) AppendNamed(header []string, row map[string]string, localTime time.Time) {
	for _, name := range header {
		if _, ok := t.index[name]; !ok {
			t.index[name] = len(t.header)
			t.header = append(t.header, name)
		}
	}
	rec := make([]string, len(t.header))
	for name, v := range row {
		if j, ok := t.index[name]; ok {
			rec[j] = v
		}
	}
	t.AppendRow(rec, localTime)
}

// Value returns the raw string value at row i for the named column,
// or "" if the column does not exist or the row is short.
func (t *Table) Value(i int, col string) string {
	j, ok := t.index[col]
	if !ok || j >= len(t.rows[i]) {
		return ""
	}
	return t.rows[i][j]
}

// Time returns the normalized local timestamp of row i.
func (t *Table) Time(i int) time.Time { return t.times[i] }

// Times returns the normalized local timestamps of all rows.
func (t *Table) Times() []time.Time { return t.times }

// Float returns the value at row i parsed as float64, NaN when the cell
// is empty or unparsable. Missing values stay NaN so that downstream
// aggregations can stay NaN-aware instead of guessing zeros.
func (t *Table) Float(i int, col string) float64 {
	s := t.Value(i, col)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Floats returns a whole column parsed as float64 values.
func (t *Table) Floats(col string) []float64 {
	out := make([]float64, t.Len())
	for i := range t.rows {
		out[i] = t.Float(i, col)
	}
	return out
}

// Strings returns a whole column as raw strings.
func (t *Table) Strings(col string) []string {
	out := make([]string, t.Len())
	for i := range t.rows {
		out[i] = t.Value(i, col)
	}
	return out
}

// FilterTime returns a new table holding only rows whose local timestamp
// falls inside the inclusive [start, end] window. A nil bound is open.
func (t *Table) FilterTime(start, end *time.Time) *Table {
	out := NewTable(t.header)
	for i := range t.rows {
		ts := t.times[i]
		if start != nil && ts.Before(*start) {
			continue
		}
		if end != nil && ts.After(*end) {
			continue
		}
		out.AppendRow(t.rows[i], ts)
	}
	return out
}

// LastPerDate deduplicates rows sharing the same value in the named date
// column, keeping the last occurrence in row order. The export may emit
// several snapshots of a daily summary; the last one wins.
func (t *Table) LastPerDate(col string) *Table {
	last := make(map[string]int, t.Len())
	for i := range t.rows {
		last[t.Value(i, col)] = i
	}
	out := NewTable(t.header)
	for i := range t.rows {
		if last[t.Value(i, col)] == i {
			out.AppendRow(t.rows[i], t.times[i])
		}
	}
	return out
}
