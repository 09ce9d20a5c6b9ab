package simlink

import (
	"sync/atomic"
	"time"

	"github.com/banshee-data/mpc.driver/internal/monitoring"
	"github.com/banshee-data/mpc.driver/internal/mpc"
	"github.com/banshee-data/mpc.driver/internal/timeutil"
	"github.com/banshee-data/mpc.driver/internal/units"
)

// Stepper runs control cycles. *mpc.Controller implements it.
type Stepper interface {
	Step(obs mpc.Observation) (mpc.Command, error)
	RecordLatency(d time.Duration)
}

// CycleReport describes one handled telemetry frame.
type CycleReport struct {
	Seq       uint64
	At        time.Time
	Telemetry Telemetry
	SpeedMPS  float64
	Command   mpc.Command
	Sent      SteerMessage
	Cycle     time.Duration
	Err       error
}

// Session turns telemetry frames into steer frames. It may be shared by
// several connections; the controller serialises the cycles.
type Session struct {
	Controller     Stepper
	Clock          timeutil.Clock
	SpeedUnit      string
	MaxSteer       float64       // rad, used to normalise outgoing steering
	ActuationSleep time.Duration // simulated actuator delay before each send
	OnCycle        func(CycleReport)

	seq atomic.Uint64
}

// NewSession returns a session for c with the transport settings of cfg.
func NewSession(c *mpc.Controller, speedUnit string, actuationSleep time.Duration) *Session {
	if speedUnit == "" {
		speedUnit = units.MPH
	}
	return &Session{
		Controller:     c,
		Clock:          timeutil.RealClock{},
		SpeedUnit:      speedUnit,
		MaxSteer:       c.Config().MaxSteer,
		ActuationSleep: actuationSleep,
	}
}

func (s *Session) clock() timeutil.Clock {
	if s.Clock == nil {
		return timeutil.RealClock{}
	}
	return s.Clock
}

// Handle processes one inbound frame, calling send with the reply if there
// is one. Bad input is answered with manual mode; only a failing send is
// returned as an error.
func (s *Session) Handle(frame string, send func(string) error) error {
	clock := s.clock()
	start := clock.Now()

	if !IsEvent(frame) {
		return nil
	}
	payload, ok := ExtractPayload(frame)
	if !ok {
		return send(ManualFrame)
	}
	event, data, err := DecodeEvent(payload)
	if err != nil {
		monitoring.Logf("simlink: dropping malformed frame: %v", err)
		return send(ManualFrame)
	}
	if event != EventTelemetry {
		return nil
	}
	tel, err := DecodeTelemetry(data)
	if err != nil {
		monitoring.Logf("simlink: dropping malformed telemetry: %v", err)
		return send(ManualFrame)
	}

	obs := tel.Observation(s.SpeedUnit)
	cmd, stepErr := s.Controller.Step(obs)

	msg, err := NewSteerMessage(cmd, s.MaxSteer)
	if err != nil {
		return err
	}
	out, err := EncodeSteer(msg)
	if err != nil {
		// Step never hands back non-finite actuators, but the wire must
		// not carry them either.
		monitoring.Logf("simlink: %v", err)
		msg, _ = NewSteerMessage(mpc.SafeCommand(), s.MaxSteer)
		out, _ = EncodeSteer(msg)
	}

	if s.ActuationSleep > 0 {
		clock.Sleep(s.ActuationSleep)
	}
	if err := send(out); err != nil {
		return err
	}

	cycle := clock.Since(start)
	s.Controller.RecordLatency(cycle)

	seq := s.seq.Add(1)
	monitoring.LogCycle(monitoring.CycleStats{
		Seq:      seq,
		Status:   cmd.Status,
		Fallback: cmd.Fallback,
		Steer:    msg.SteeringAngle,
		Throttle: msg.Throttle,
		CTE:      cmd.State.CTE,
		EPsi:     cmd.State.EPsi,
		Solve:    cmd.SolveTime,
		Cycle:    cycle,
		Delay:    cmd.Delay,
		Err:      stepErr,
	})
	if s.OnCycle != nil {
		s.OnCycle(CycleReport{
			Seq:       seq,
			At:        start,
			Telemetry: tel,
			SpeedMPS:  obs.Speed,
			Command:   cmd,
			Sent:      msg,
			Cycle:     cycle,
			Err:       stepErr,
		})
	}
	return nil
}

// Cycles is the number of telemetry frames answered so far.
func (s *Session) Cycles() uint64 { return s.seq.Load() }
