// Package viz renders metric query results as plots: per-night
// hypnograms, daily statistic charts and calendar-style adherence
// grids.
package viz

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/lifespan-research/wearkit/wearkit/series"
	"github.com/lifespan-research/wearkit/wearkit/sleep"
)

// stageTicks label the hypnogram's numeric stage levels.
var stageTicks = []plot.Tick{
	{Value: -1, Label: "unknown"},
	{Value: 0, Label: "awake"},
	{Value: 1, Label: "N1"},
	{Value: 2, Label: "N2"},
	{Value: 3, Label: "N3"},
	{Value: 4, Label: "REM"},
}

// Hypnogram renders one night's stage sequence as a step plot from
// bedtime to final wake-up.
func Hypnogram(h sleep.Hypnogram) (*plot.Plot, error) {
	levels := h.Levels()
	if len(levels) == 0 {
		return nil, fmt.Errorf("viz: hypnogram for %s has no stages", h.Date)
	}
	pts := make(plotter.XYs, len(levels))
	for i, level := range levels {
		at := h.Start.Add(time.Duration(i) * h.Resolution)
		pts[i].X = float64(at.Unix())
		pts[i].Y = level
	}

	p := plot.New()
	p.Title.Text = "Hypnogram " + h.Date.String()
	p.X.Tick.Marker = plot.TimeTicks{Format: "15:04"}
	p.Y.Tick.Marker = plot.ConstantTicks(stageTicks)
	p.Y.Min, p.Y.Max = -1.5, 4.5

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.StepStyle = plotter.PreStep
	p.Add(line)
	return p, nil
}

// DailyBars renders a per-day query result as a bar chart, one bar
// per calendar day in chronological order. Missing values plot as
// zero-height bars.
func DailyBars(title, ylabel string, r series.Result) (*plot.Plot, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	dates := series.SortedDates(r.Days)
	values := make(plotter.Values, len(dates))
	labels := make([]string, len(dates))
	for i, d := range dates {
		if v := r.Days[d]; !math.IsNaN(v) {
			values[i] = v
		}
		labels[i] = d.String()
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel
	p.X.Tick.Label.Rotation = math.Pi / 3
	p.X.Tick.Label.XAlign = -1

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return nil, err
	}
	p.Add(bars)
	p.NominalX(labels...)
	return p, nil
}

// DailyLine renders a per-day query result as a line over time.
// Missing values break the line into segments.
func DailyLine(title, ylabel string, r series.Result) (*plot.Plot, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	var pts plotter.XYs
	for _, d := range series.SortedDates(r.Days) {
		v := r.Days[d]
		if math.IsNaN(v) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(d.Time(time.UTC).Unix()), Y: v})
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel
	p.X.Tick.Marker = plot.TimeTicks{Format: "01-02"}

	line, pointsPlot, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, err
	}
	p.Add(line, pointsPlot)
	return p, nil
}

// adherenceGrid adapts per-user daily values to the heat map's grid:
// one row per user, one column per calendar day.
type adherenceGrid struct {
	users []string
	dates []series.Date
	z     [][]float64
}

func (g adherenceGrid) Dims() (c, r int)   { return len(g.dates), len(g.users) }
func (g adherenceGrid) Z(c, r int) float64 { return g.z[r][c] }
func (g adherenceGrid) X(c int) float64    { return float64(c) }
func (g adherenceGrid) Y(r int) float64    { return float64(r) }

// AdherenceGrid renders per-user daily coverage as a calendar heat
// map: users on the Y axis, days on the X axis. Users whose query
// failed and days a user has no data for stay blank.
func AdherenceGrid(title string, results map[string]series.Result) (*plot.Plot, error) {
	users := make([]string, 0, len(results))
	seen := make(map[series.Date]bool)
	for id, r := range results {
		users = append(users, id)
		for d := range r.Days {
			seen[d] = true
		}
	}
	sort.Strings(users)
	dates := make([]series.Date, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	if len(dates) == 0 {
		return nil, fmt.Errorf("viz: no days to plot")
	}

	zmin, zmax := math.Inf(1), math.Inf(-1)
	grid := adherenceGrid{users: users, dates: dates}
	for _, id := range users {
		row := make([]float64, len(dates))
		for i, d := range dates {
			v, ok := results[id].Days[d]
			if !ok || results[id].Err != nil {
				v = math.NaN()
			}
			row[i] = v
			if !math.IsNaN(v) {
				zmin = math.Min(zmin, v)
				zmax = math.Max(zmax, v)
			}
		}
		grid.z = append(grid.z, row)
	}
	if zmin == zmax {
		zmax = zmin + 1
	}

	colors := moreland.SmoothBlueRed()
	colors.SetMin(zmin)
	colors.SetMax(zmax)

	p := plot.New()
	p.Title.Text = title
	p.Add(plotter.NewHeatMap(grid, colors.Palette(255)))
	p.NominalX(dateLabels(dates)...)
	p.NominalY(users...)
	p.X.Tick.Label.Rotation = math.Pi / 3
	p.X.Tick.Label.XAlign = -1
	return p, nil
}

func dateLabels(dates []series.Date) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.String()
	}
	return out
}

// WritePNG saves a plot as a PNG file.
func WritePNG(p *plot.Plot, width, height vg.Length, path string) error {
	return p.Save(width, height, path)
}
