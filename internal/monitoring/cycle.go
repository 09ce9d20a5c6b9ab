package monitoring

import "time"

// CycleStats summarises one control cycle for the log.
type CycleStats struct {
	Seq      uint64
	Status   string
	Fallback bool
	Steer    float64 // normalised actuator value sent
	Throttle float64
	CTE      float64
	EPsi     float64
	Solve    time.Duration
	Cycle    time.Duration // whole solve-and-send cycle
	Delay    time.Duration // latency estimate used for this cycle
	Err      error
}

// CycleLogInterval is how often a healthy cycle is logged. Failures and
// fallbacks are always logged. Zero logs every cycle.
var CycleLogInterval uint64 = 50

// LogCycle writes a one-line cycle summary through Logf.
func LogCycle(s CycleStats) {
	healthy := s.Err == nil && !s.Fallback
	if healthy && CycleLogInterval > 0 && s.Seq%CycleLogInterval != 0 {
		return
	}
	if s.Err != nil {
		Logf("cycle %d: %s fallback=%t cte=%.3f epsi=%.3f solve=%s cycle=%s delay=%s err=%v",
			s.Seq, s.Status, s.Fallback, s.CTE, s.EPsi, s.Solve, s.Cycle, s.Delay, s.Err)
		return
	}
	Logf("cycle %d: %s steer=%.3f throttle=%.3f cte=%.3f epsi=%.3f solve=%s cycle=%s delay=%s",
		s.Seq, s.Status, s.Steer, s.Throttle, s.CTE, s.EPsi, s.Solve, s.Cycle, s.Delay)
}
