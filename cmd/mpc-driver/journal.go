package main

import (
	"context"
	"time"

	"github.com/banshee-data/mpc.driver/internal/db"
	"github.com/banshee-data/mpc.driver/internal/monitoring"
	"github.com/banshee-data/mpc.driver/internal/mpc"
	"github.com/banshee-data/mpc.driver/internal/simlink"
	"github.com/banshee-data/mpc.driver/internal/timeutil"
)

var journalLog = monitoring.Prefixed("journal")

type cycleRecorder interface {
	RecordCycle(db.CycleRecord) error
}

func cycleRecord(runID string, r simlink.CycleReport) db.CycleRecord {
	rec := db.CycleRecord{
		RunID:      runID,
		Seq:        r.Seq,
		RecordedAt: r.At,
		SpeedMPS:   r.SpeedMPS,
		CTE:        r.Command.State.CTE,
		EPsi:       r.Command.State.EPsi,
		Steer:      r.Sent.SteeringAngle,
		Throttle:   r.Sent.Throttle,
		Delay:      r.Command.Delay,
		Solve:      r.Command.SolveTime,
		Cycle:      r.Cycle,
		Status:     r.Command.Status,
		Fallback:   r.Command.Fallback,
		Objective:  r.Command.Objective,
		Violation:  r.Command.Violation,
		Iterations: r.Command.Iterations,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}

// journalCycles returns an OnCycle hook writing every cycle to j. A failed
// write is logged and the loop carries on.
func journalCycles(j cycleRecorder, runID string) func(simlink.CycleReport) {
	return func(r simlink.CycleReport) {
		if err := j.RecordCycle(cycleRecord(runID, r)); err != nil {
			journalLog("%v", err)
		}
	}
}

type statusSource interface {
	Delay() time.Duration
	Latest() (mpc.Snapshot, bool)
}

// reportStatus logs one status line per tick until ctx is cancelled.
func reportStatus(ctx context.Context, clock timeutil.Clock, every time.Duration, ctrl statusSource, session *simlink.Session, logf func(string, ...interface{})) {
	ticker := clock.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			snap, ok := ctrl.Latest()
			if !ok {
				logf("status: waiting for telemetry (delay estimate %v)", ctrl.Delay())
				continue
			}
			logf("status: cycles=%d last=%s steer=%.4f throttle=%.3f cte=%.3f solve=%v delay=%v",
				session.Cycles(), snap.Command.Status, snap.Command.Steer, snap.Command.Throttle,
				snap.Command.State.CTE, snap.Command.SolveTime, ctrl.Delay())
		}
	}
}
