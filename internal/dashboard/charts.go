package dashboard

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/mpc.driver/internal/db"
	"github.com/banshee-data/mpc.driver/internal/mpc"
)

// TrajectoryChart plots the reference polyline and the predicted path of one
// cycle in the vehicle frame.
func TrajectoryChart(snap mpc.Snapshot) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "MPC trajectory", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Trajectory",
			Subtitle: fmt.Sprintf("cycle=%d status=%s at %s", snap.Seq, snap.Command.Status, snap.At.Format(time.RFC3339)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "x (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "y (m)", NameLocation: "middle", NameGap: 30}),
	)
	line.AddSeries("reference", pointData(snap.Command.Reference),
		charts.WithLineStyleOpts(opts.LineStyle{Color: "#f5c211", Width: 2}))
	line.AddSeries("predicted", pointData(snap.Command.Predicted),
		charts.WithLineStyleOpts(opts.LineStyle{Color: "#33d17a", Width: 2}))
	return line
}

func pointData(pts []mpc.Point) []opts.LineData {
	data := make([]opts.LineData, 0, len(pts))
	for _, p := range pts {
		data = append(data, opts.LineData{Value: []interface{}{p.X, p.Y}})
	}
	return data
}

// HistoryChart plots tracking errors and actuator commands over a window of
// journaled cycles.
func HistoryChart(runID string, cycles []db.CycleRecord) *charts.Line {
	x := make([]string, 0, len(cycles))
	cte := make([]opts.LineData, 0, len(cycles))
	epsi := make([]opts.LineData, 0, len(cycles))
	steer := make([]opts.LineData, 0, len(cycles))
	throttle := make([]opts.LineData, 0, len(cycles))
	solve := make([]opts.LineData, 0, len(cycles))
	for _, c := range cycles {
		x = append(x, strconv.FormatUint(c.Seq, 10))
		cte = append(cte, opts.LineData{Value: c.CTE})
		epsi = append(epsi, opts.LineData{Value: c.EPsi})
		steer = append(steer, opts.LineData{Value: c.Steer})
		throttle = append(throttle, opts.LineData{Value: c.Throttle})
		solve = append(solve, opts.LineData{Value: float64(c.Solve) / float64(time.Millisecond)})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "MPC history", Width: "100%", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Cycle history", Subtitle: fmt.Sprintf("run=%s cycles=%d", runID, len(cycles))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "cycle"}),
	)
	line.SetXAxis(x).
		AddSeries("cte (m)", cte).
		AddSeries("epsi (rad)", epsi).
		AddSeries("steer", steer).
		AddSeries("throttle", throttle).
		AddSeries("solve (ms)", solve)
	return line
}
