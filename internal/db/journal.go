package db

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/mpc.driver/internal/version"
)

// ErrUnknownRun is returned for a run ID the journal has never seen.
var ErrUnknownRun = errors.New("unknown run")

// Run is one process lifetime of the controller.
type Run struct {
	ID         string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	Version    string    `json:"version"`
	GitSHA     string    `json:"git_sha"`
	ConfigJSON string    `json:"config"`
	Cycles     int       `json:"cycles"`
}

// CycleRecord is one journaled control cycle. Steer and Throttle are the
// values sent to the actuator.
type CycleRecord struct {
	RunID      string        `json:"run_id"`
	Seq        uint64        `json:"seq"`
	RecordedAt time.Time     `json:"recorded_at"`
	SpeedMPS   float64       `json:"speed_mps"`
	CTE        float64       `json:"cte"`
	EPsi       float64       `json:"epsi"`
	Steer      float64       `json:"steer"`
	Throttle   float64       `json:"throttle"`
	Delay      time.Duration `json:"delay"`
	Solve      time.Duration `json:"solve"`
	Cycle      time.Duration `json:"cycle"`
	Status     string        `json:"status"`
	Fallback   bool          `json:"fallback"`
	Objective  float64       `json:"objective"`
	Violation  float64       `json:"violation"`
	Iterations int           `json:"iterations"`
	Error      string        `json:"error,omitempty"`
}

// StartRun registers a new run and returns its ID.
func (db *DB) StartRun(at time.Time, configJSON []byte) (string, error) {
	if len(configJSON) == 0 {
		configJSON = []byte("{}")
	}
	id := uuid.NewString()
	_, err := db.Exec(`INSERT INTO runs (run_id, started_ns, version, git_sha, config_json) VALUES (?, ?, ?, ?, ?)`,
		id, at.UnixNano(), version.Version, version.GitSHA, string(configJSON))
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return id, nil
}

// RecordCycle appends one cycle to its run. Non-finite diagnostics are
// stored as zero.
func (db *DB) RecordCycle(c CycleRecord) error {
	_, err := db.Exec(`
		INSERT INTO cycles (
			run_id, seq, recorded_ns, speed_mps, cte, epsi, steer, throttle,
			delay_ms, solve_ms, cycle_ms, status, fallback, objective, violation,
			iterations, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.RunID, int64(c.Seq), c.RecordedAt.UnixNano(),
		finite(c.SpeedMPS), finite(c.CTE), finite(c.EPsi), finite(c.Steer), finite(c.Throttle),
		ms(c.Delay), ms(c.Solve), ms(c.Cycle),
		c.Status, c.Fallback, finite(c.Objective), finite(c.Violation),
		c.Iterations, c.Error,
	)
	if err != nil {
		return fmt.Errorf("record cycle %d: %w", c.Seq, err)
	}
	return nil
}

// Cycles returns the latest cycles of a run, oldest first. limit <= 0
// returns them all.
func (db *DB) Cycles(runID string, limit int) ([]CycleRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT run_id, seq, recorded_ns, speed_mps, cte, epsi, steer, throttle,
			delay_ms, solve_ms, cycle_ms, status, fallback, objective, violation,
			iterations, error
		FROM (
			SELECT * FROM cycles WHERE run_id = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleRecord
	for rows.Next() {
		var (
			c                      CycleRecord
			seq, recordedNS        int64
			delayMS, solveMS, cyMS float64
		)
		if err := rows.Scan(&c.RunID, &seq, &recordedNS, &c.SpeedMPS, &c.CTE, &c.EPsi, &c.Steer, &c.Throttle,
			&delayMS, &solveMS, &cyMS, &c.Status, &c.Fallback, &c.Objective, &c.Violation,
			&c.Iterations, &c.Error); err != nil {
			return nil, err
		}
		c.Seq = uint64(seq)
		c.RecordedAt = time.Unix(0, recordedNS).UTC()
		c.Delay = fromMS(delayMS)
		c.Solve = fromMS(solveMS)
		c.Cycle = fromMS(cyMS)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Runs returns the most recent runs first.
func (db *DB) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT r.run_id, r.started_ns, r.version, r.git_sha, r.config_json, COUNT(c.seq)
		FROM runs r LEFT JOIN cycles c ON c.run_id = r.run_id
		GROUP BY r.run_id
		ORDER BY r.started_ns DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r         Run
			startedNS int64
		)
		if err := rows.Scan(&r.ID, &startedNS, &r.Version, &r.GitSHA, &r.ConfigJSON, &r.Cycles); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, startedNS).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun looks up a single run.
func (db *DB) GetRun(id string) (*Run, error) {
	var (
		r         Run
		startedNS int64
	)
	err := db.QueryRow(`
		SELECT r.run_id, r.started_ns, r.version, r.git_sha, r.config_json,
			(SELECT COUNT(*) FROM cycles c WHERE c.run_id = r.run_id)
		FROM runs r WHERE r.run_id = ?`, id).
		Scan(&r.ID, &startedNS, &r.Version, &r.GitSHA, &r.ConfigJSON, &r.Cycles)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}
	if err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(0, startedNS).UTC()
	return &r, nil
}

// LatestRun returns the most recently started run.
func (db *DB) LatestRun() (*Run, error) {
	runs, err := db.Runs(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrUnknownRun
	}
	return &runs[0], nil
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

func fromMS(v float64) time.Duration { return time.Duration(math.Round(v * float64(time.Millisecond))) }
