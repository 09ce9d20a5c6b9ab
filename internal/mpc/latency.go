package mpc

import (
	"time"

	"github.com/banshee-data/mpc.driver/internal/vehicle"
)

// Compensate projects the measured state forward by delay, holding the last
// steering command and zero acceleration, so the plan starts where the
// vehicle will be when the command lands. A non-positive delay returns the
// measurement unchanged.
func Compensate(m vehicle.Model, measured vehicle.State, prevSteer float64, delay time.Duration, path vehicle.Path) vehicle.State {
	if delay <= 0 {
		return measured
	}
	s := m.Step(measured, vehicle.Actuation{Steer: prevSteer}, path, delay.Seconds())
	s.Psi = vehicle.NormalizeAngle(s.Psi)
	s.EPsi = vehicle.NormalizeAngle(s.EPsi)
	return s
}

// smoothDelay folds a latency sample into the running estimate. Samples that
// are not positive leave the estimate unchanged.
func smoothDelay(current, sample time.Duration, alpha float64) time.Duration {
	if sample <= 0 {
		return current
	}
	if alpha >= 1 {
		return sample
	}
	return time.Duration(alpha*float64(sample) + (1-alpha)*float64(current))
}
