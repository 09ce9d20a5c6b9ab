// Command plot-run renders one journaled run to an image.
package main

import (
	"flag"
	"log"
	"os"
)

func main() {
	dbPath := flag.String("db", "mpc_journal.db", "path to the cycle journal")
	runID := flag.String("run", "", "run ID to plot (default: latest run)")
	out := flag.String("o", "run.png", "output file; the extension picks the format (png, svg, pdf)")
	limit := flag.Int("limit", 0, "plot only the last N cycles (0 plots all)")
	list := flag.Bool("list", false, "list recent runs and exit")
	flag.Parse()

	if _, err := os.Stat(*dbPath); err != nil {
		log.Fatalf("DB path %s not accessible: %v", *dbPath, err)
	}

	if *list {
		if err := listRuns(os.Stdout, *dbPath); err != nil {
			log.Fatalf("list failed: %v", err)
		}
		return
	}

	id, n, err := plotRun(*dbPath, *runID, *out, *limit)
	if err != nil {
		log.Fatalf("plot failed: %v", err)
	}
	log.Printf("wrote %d cycles of run %s to %s", n, id, *out)
}
