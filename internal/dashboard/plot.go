package dashboard

import (
	"errors"
	"io"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/mpc.driver/internal/db"
)

var ErrNoCycles = errors.New("no cycles to plot")

// Plot sizes for RenderRun.
const (
	PlotWidth  = 14 * vg.Inch
	PlotHeight = 6 * vg.Inch
)

// RenderRun draws cross-track error, heading error and the sent actuator
// values against time since the first cycle. format is any gonum/plot
// image format ("png", "svg", "pdf").
func RenderRun(w io.Writer, title string, cycles []db.CycleRecord, format string) error {
	if len(cycles) == 0 {
		return ErrNoCycles
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "value"
	p.Add(plotter.NewGrid())

	t0 := cycles[0].RecordedAt
	series := []struct {
		name string
		get  func(db.CycleRecord) float64
	}{
		{"cte (m)", func(c db.CycleRecord) float64 { return c.CTE }},
		{"epsi (rad)", func(c db.CycleRecord) float64 { return c.EPsi }},
		{"steer", func(c db.CycleRecord) float64 { return c.Steer }},
		{"throttle", func(c db.CycleRecord) float64 { return c.Throttle }},
	}
	for i, s := range series {
		pts := make(plotter.XYs, 0, len(cycles))
		for _, c := range cycles {
			pts = append(pts, plotter.XY{X: c.RecordedAt.Sub(t0).Seconds(), Y: s.get(c)})
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		l.Color = plotutil.Color(i)
		l.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add(s.name, l)
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(PlotWidth, PlotHeight, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// span is the wall time covered by cycles.
func span(cycles []db.CycleRecord) time.Duration {
	if len(cycles) < 2 {
		return 0
	}
	return cycles[len(cycles)-1].RecordedAt.Sub(cycles[0].RecordedAt)
}
