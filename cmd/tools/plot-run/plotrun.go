package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/mpc.driver/internal/dashboard"
	"github.com/banshee-data/mpc.driver/internal/db"
)

// plotRun writes the cycles of runID (or the latest run) to out and returns
// the run plotted and the number of cycles.
func plotRun(dbPath, runID, out string, limit int) (string, int, error) {
	j, err := db.NewDB(dbPath)
	if err != nil {
		return "", 0, err
	}
	defer j.Close()

	var run *db.Run
	if runID == "" {
		run, err = j.LatestRun()
	} else {
		run, err = j.GetRun(runID)
	}
	if err != nil {
		return "", 0, err
	}

	cycles, err := j.Cycles(run.ID, limit)
	if err != nil {
		return "", 0, err
	}

	format := strings.TrimPrefix(filepath.Ext(out), ".")
	if format == "" {
		format = "png"
	}
	f, err := os.Create(out)
	if err != nil {
		return "", 0, err
	}
	title := fmt.Sprintf("run %s (%s, started %s)", run.ID, run.Version, run.StartedAt.Format(time.RFC3339))
	if err := dashboard.RenderRun(f, title, cycles, format); err != nil {
		f.Close()
		os.Remove(out)
		return "", 0, err
	}
	if err := f.Close(); err != nil {
		return "", 0, err
	}
	return run.ID, len(cycles), nil
}

func listRuns(w io.Writer, dbPath string) error {
	j, err := db.NewDB(dbPath)
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.Runs(20)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tVERSION\tCYCLES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.ID, r.StartedAt.Format(time.RFC3339), r.Version, r.Cycles)
	}
	return tw.Flush()
}
