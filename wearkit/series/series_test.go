package series

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats(t *testing.T) {
	values := []float64{2, math.NaN(), 4, 6}

	assert.Equal(t, 4.0, Mean(values))
	assert.Equal(t, 2.0, Min(values))
	assert.Equal(t, 6.0, Max(values))
	assert.InDelta(t, math.Sqrt(8.0/3), Std(values), 1e-12)
	assert.Equal(t, 0.0, Std([]float64{5}))

	assert.True(t, math.IsNaN(Mean(nil)))
	assert.True(t, math.IsNaN(Mean([]float64{math.NaN(), math.Inf(1)})))
	assert.True(t, math.IsNaN(Min(nil)))
}

func TestQuantile(t *testing.T) {
	values := []float64{10, math.NaN(), 30, 20, 40, 50}

	assert.Equal(t, 10.0, Quantile(0.1, values))
	assert.Equal(t, 30.0, Quantile(0.5, values))
	assert.Equal(t, 50.0, Quantile(1, values))
	assert.True(t, math.IsNaN(Quantile(0.5, nil)))
}

func TestDiff(t *testing.T) {
	assert.Equal(t, []float64{5, -3}, Diff([]float64{10, 15, 12}))
	assert.Nil(t, Diff([]float64{10}))
}

func TestMeanClock(t *testing.T) {
	got, err := MeanClock([]string{"23:00", "01:00"})
	require.NoError(t, err)
	assert.Equal(t, "00:00", got)

	got, err = MeanClock([]string{"23:00", "07:00"})
	require.NoError(t, err)
	assert.Equal(t, "03:00", got)

	got, err = MeanClock([]string{"08:30"})
	require.NoError(t, err)
	assert.Equal(t, "08:30", got)

	_, err = MeanClock(nil)
	assert.Error(t, err)
	_, err = MeanClock([]string{"morning"})
	assert.Error(t, err)
}

func TestDate(t *testing.T) {
	d, err := ParseDate("2023-01-02")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2023, Month: time.January, Day: 2}, d)
	assert.Equal(t, "2023-01-02", d.String())

	_, err = ParseDate("02/01/2023")
	assert.Error(t, err)

	assert.Equal(t, Date{Year: 2023, Month: time.February, Day: 1}, d.AddDays(30))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))

	// 2023-01-02 is a Monday, the 7th a Saturday.
	assert.False(t, d.IsWeekend())
	assert.True(t, Date{Year: 2023, Month: time.January, Day: 7}.IsWeekend())

	ts := time.Date(2023, 1, 2, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, d, DateOf(ts))
	assert.Equal(t, time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), d.Time(time.UTC))
}

func TestSortedDates(t *testing.T) {
	m := map[Date]float64{
		{Year: 2023, Month: time.January, Day: 7}: 1,
		{Year: 2022, Month: time.March, Day: 9}:   2,
		{Year: 2023, Month: time.January, Day: 2}: 3,
	}
	dates := SortedDates(m)
	require.Len(t, dates, 3)
	assert.Equal(t, Date{Year: 2022, Month: time.March, Day: 9}, dates[0])
	assert.Equal(t, Date{Year: 2023, Month: time.January, Day: 7}, dates[2])
}

func TestCollapse(t *testing.T) {
	jan2 := Date{Year: 2023, Month: time.January, Day: 2}
	jan3 := Date{Year: 2023, Month: time.January, Day: 3}
	jan4 := Date{Year: 2023, Month: time.January, Day: 4}
	r := Daily(map[Date]float64{jan2: 10, jan3: math.NaN(), jan4: 20})

	s := Collapse(r)
	require.NoError(t, s.Err)
	assert.Equal(t, 15.0, s.Value)
	// NaN days do not contribute.
	assert.Equal(t, []Date{jan2, jan4}, s.Days)

	failed := Collapse(Failed(errors.New("no data")))
	assert.Error(t, failed.Err)
	assert.True(t, math.IsNaN(failed.Value))
}

func TestTransform(t *testing.T) {
	values := []float64{1, 2, 3}

	for _, tc := range []struct {
		transform Transform
		want      float64
	}{
		{TransformMean, 2},
		{TransformMin, 1},
		{TransformMax, 3},
	} {
		got, err := tc.transform.Apply(values)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := TransformNone.Apply(values)
	assert.Error(t, err)
}

type stubSource struct{ ids []string }

func (s stubSource) FullIDs() []string { return s.ids }

func TestExpandUsers(t *testing.T) {
	src := stubSource{ids: []string{"user-01_a", "user-02_b"}}

	all, err := ExpandUsers(src, "all")
	require.NoError(t, err)
	assert.Equal(t, src.ids, all)

	all, err = ExpandUsers(src, nil)
	require.NoError(t, err)
	assert.Equal(t, src.ids, all)

	one, err := ExpandUsers(src, "user-01_a")
	require.NoError(t, err)
	assert.Equal(t, []string{"user-01_a"}, one)

	list, err := ExpandUsers(src, []string{"user-02_b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"user-02_b"}, list)

	_, err = ExpandUsers(src, 42)
	assert.Error(t, err)
}

func TestTableFilterAndLastPerDate(t *testing.T) {
	table := NewTable([]string{"calendarDate", "steps"})
	table.AppendRow([]string{"2023-01-02", "100"}, time.Date(2023, 1, 2, 8, 0, 0, 0, time.UTC))
	table.AppendRow([]string{"2023-01-02", "8000"}, time.Date(2023, 1, 2, 22, 0, 0, 0, time.UTC))
	table.AppendRow([]string{"2023-01-03", "4000"}, time.Date(2023, 1, 3, 22, 0, 0, 0, time.UTC))

	start := time.Date(2023, 1, 2, 12, 0, 0, 0, time.UTC)
	filtered := table.FilterTime(&start, nil)
	require.Equal(t, 2, filtered.Len())
	assert.Equal(t, 8000.0, filtered.Float(0, "steps"))

	last := table.LastPerDate("calendarDate")
	require.Equal(t, 2, last.Len())
	// The later export row wins for a repeated calendar date.
	assert.Equal(t, 8000.0, last.Float(0, "steps"))
	assert.Equal(t, 4000.0, last.Float(1, "steps"))

	assert.True(t, math.IsNaN(table.Float(0, "missing")))
}
