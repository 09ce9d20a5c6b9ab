// Package vehicle holds the discrete-time kinematic bicycle model the
// controller plans with.
//
// All quantities are SI and expressed in the vehicle's local frame. The
// steering sign follows the model convention: a positive steer produces a
// positive (counter-clockwise) yaw rate. Any inversion needed by a physical
// actuator happens at the transport boundary, never here.
package vehicle

import (
	"fmt"
	"math"
)

// State is the model state at one instant.
type State struct {
	X    float64 // position along local x (m)
	Y    float64 // position along local y (m)
	Psi  float64 // heading (rad)
	V    float64 // speed (m/s)
	CTE  float64 // cross-track error (m)
	EPsi float64 // heading error (rad)
}

// Actuation is one steering/acceleration pair.
type Actuation struct {
	Steer float64 // steering angle (rad), model convention
	Accel float64 // acceleration command
}

// Path is the reference the model measures its errors against.
type Path interface {
	Eval(x float64) float64
	Slope(x float64) float64
}

// Model is the kinematic bicycle with effective wheelbase Lf.
type Model struct {
	Lf float64 // distance from the front axle to the centre of gravity (m)
}

// Step advances s by dt seconds under u:
//
//	x'    = x + v·cos(psi)·dt
//	y'    = y + v·sin(psi)·dt
//	psi'  = psi + (v/Lf)·steer·dt
//	v'    = v + accel·dt
//	cte'  = f(x) - y + v·sin(epsi)·dt
//	epsi' = psi - atan(f'(x)) + (v/Lf)·steer·dt
func (m Model) Step(s State, u Actuation, path Path, dt float64) State {
	yaw := s.V / m.Lf * u.Steer * dt
	sin, cos := math.Sincos(s.Psi)
	return State{
		X:    s.X + s.V*cos*dt,
		Y:    s.Y + s.V*sin*dt,
		Psi:  s.Psi + yaw,
		V:    s.V + u.Accel*dt,
		CTE:  path.Eval(s.X) - s.Y + s.V*math.Sin(s.EPsi)*dt,
		EPsi: s.Psi - math.Atan(path.Slope(s.X)) + yaw,
	}
}

// Validate rejects a wheelbase the yaw-rate term cannot divide by.
func (m Model) Validate() error {
	if !(m.Lf > 0) || math.IsInf(m.Lf, 0) {
		return fmt.Errorf("wheelbase Lf must be positive and finite, got %v", m.Lf)
	}
	return nil
}

// Vector flattens s in decision-variable order (x, y, psi, v, cte, epsi).
func (s State) Vector() [6]float64 {
	return [6]float64{s.X, s.Y, s.Psi, s.V, s.CTE, s.EPsi}
}

// StateFromVector is the inverse of Vector.
func StateFromVector(v [6]float64) State {
	return State{X: v[0], Y: v[1], Psi: v[2], V: v[3], CTE: v[4], EPsi: v[5]}
}

// Finite reports whether every component is a real number.
func (s State) Finite() bool {
	for _, v := range s.Vector() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
