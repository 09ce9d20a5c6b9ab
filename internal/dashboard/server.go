// Package dashboard serves a small operator view of the controller: the
// latest planned trajectory, cycle history from the journal and a rendered
// plot of a whole run.
package dashboard

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"

	"github.com/banshee-data/mpc.driver/internal/db"
	"github.com/banshee-data/mpc.driver/internal/httputil"
	"github.com/banshee-data/mpc.driver/internal/mpc"
)

// LatestSource provides the most recent cycle. *mpc.Controller implements it.
type LatestSource interface {
	Latest() (mpc.Snapshot, bool)
}

// Journal is the read side of the run journal. *db.DB implements it.
type Journal interface {
	Cycles(runID string, limit int) ([]db.CycleRecord, error)
	Runs(limit int) ([]db.Run, error)
}

const (
	defaultWindow = 300
	maxWindow     = 100000
)

// Server serves the dashboard routes. Journal may be nil when the process
// runs without one; the history routes then answer 404.
type Server struct {
	Latest  LatestSource
	Journal Journal
	RunID   string // run shown when the request names none
}

// AttachRoutes registers the dashboard on mux.
func (s *Server) AttachRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/dashboard", s.handleIndex)
	mux.HandleFunc("/api/latest", s.handleLatest)
	mux.HandleFunc("/api/cycles", s.handleCycles)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/charts/trajectory", s.handleTrajectory)
	mux.HandleFunc("/charts/history", s.handleHistory)
	mux.HandleFunc("/plot.png", s.handlePlot)
}

func (s *Server) runID(r *http.Request) string {
	if id := r.URL.Query().Get("run"); id != "" {
		return id
	}
	return s.RunID
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	runID := s.runID(r)
	qs := ""
	if runID != "" {
		qs = "?run=" + url.QueryEscape(runID)
	}
	doc := fmt.Sprintf(indexHTML, html.EscapeString(runID), html.EscapeString(qs))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(doc))
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	snap, ok := s.Latest.Latest()
	if !ok {
		httputil.WriteJSONError(w, http.StatusNotFound, "no cycle yet")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

func (s *Server) cycles(w http.ResponseWriter, r *http.Request) (string, []db.CycleRecord, bool) {
	if s.Journal == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "journal disabled")
		return "", nil, false
	}
	limit, err := httputil.QueryInt(r, "limit", defaultWindow, 1, maxWindow)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return "", nil, false
	}
	runID := s.runID(r)
	if runID == "" {
		httputil.WriteJSONError(w, http.StatusBadRequest, "missing run")
		return "", nil, false
	}
	cycles, err := s.Journal.Cycles(runID, limit)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return "", nil, false
	}
	return runID, cycles, true
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	_, cycles, ok := s.cycles(w, r)
	if !ok {
		return
	}
	if cycles == nil {
		cycles = []db.CycleRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, cycles)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	if s.Journal == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "journal disabled")
		return
	}
	limit, err := httputil.QueryInt(r, "limit", 20, 1, 1000)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.Journal.Runs(limit)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	httputil.WriteJSON(w, http.StatusOK, runs)
}

func (s *Server) handleTrajectory(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	snap, ok := s.Latest.Latest()
	if !ok {
		httputil.WriteJSONError(w, http.StatusNotFound, "no cycle yet")
		return
	}
	httputil.WriteHTML(w, TrajectoryChart(snap))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	runID, cycles, ok := s.cycles(w, r)
	if !ok {
		return
	}
	httputil.WriteHTML(w, HistoryChart(runID, cycles))
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	runID, cycles, ok := s.cycles(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	title := fmt.Sprintf("run %s (%d cycles, %s)", runID, len(cycles), span(cycles))
	if err := RenderRun(w, title, cycles, "png"); err != nil {
		w.Header().Del("Content-Type")
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNoCycles) {
			status = http.StatusNotFound
		}
		httputil.WriteJSONError(w, status, err.Error())
	}
}

const indexHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <title>mpc-driver</title>
  <style>
    body { font-family: sans-serif; margin: 1em; }
    iframe { border: 0; width: 100%%; }
  </style>
</head>
<body>
  <h1>mpc-driver</h1>
  <p>run: <code>%[1]s</code> &middot; <a href="/api/latest">latest</a> &middot; <a href="/api/runs">runs</a> &middot; <a href="/debug/">debug</a></p>
  <iframe src="/charts/trajectory" height="540"></iframe>
  <iframe src="/charts/history%[2]s" height="540"></iframe>
  <img src="/plot.png%[2]s" alt="run plot" width="100%%">
</body>
</html>
`
