package mpc

import (
	"math"

	"github.com/banshee-data/mpc.driver/internal/nlp"
	"github.com/banshee-data/mpc.driver/internal/polyfit"
	"github.com/banshee-data/mpc.driver/internal/vehicle"
)

// Problem is the trajectory optimisation for one control cycle. The decision
// vector is laid out as
//
//	x[0:N] y[0:N] psi[0:N] v[0:N] cte[0:N] epsi[0:N] steer[0:N-1] accel[0:N-1]
//
// Constraint rows 0..5 pin the first state to x0; rows 6+6i..11+6i hold
// z[i+1] - Step(z[i], u[i]) for i in [0, N-1).
type Problem struct {
	cfg   Config
	model vehicle.Model
	x0    vehicle.State
	ref   polyfit.Poly
	slope polyfit.Poly
	curve polyfit.Poly
	n     int
	dt    float64
}

var _ nlp.Simulator = (*Problem)(nil)

// Build assembles the program for initial state x0 tracking ref. cfg must
// already be valid.
func Build(cfg Config, x0 vehicle.State, ref polyfit.Poly) *Problem {
	slope := ref.Derivative()
	return &Problem{
		cfg:   cfg,
		model: vehicle.Model{Lf: cfg.Lf},
		x0:    x0,
		ref:   ref,
		slope: slope,
		curve: slope.Derivative(),
		n:     cfg.Horizon,
		dt:    cfg.dt(),
	}
}

// Offsets of each block in the decision vector.
func (p *Problem) xAt(i int) int     { return i }
func (p *Problem) yAt(i int) int     { return p.n + i }
func (p *Problem) psiAt(i int) int   { return 2*p.n + i }
func (p *Problem) vAt(i int) int     { return 3*p.n + i }
func (p *Problem) cteAt(i int) int   { return 4*p.n + i }
func (p *Problem) epsiAt(i int) int  { return 5*p.n + i }
func (p *Problem) steerAt(i int) int { return 6*p.n + i }
func (p *Problem) accelAt(i int) int { return 7*p.n - 1 + i }

// stateVar maps a State component k (Vector order) at step i to its index.
func (p *Problem) stateVar(k, i int) int { return k*p.n + i }

func (p *Problem) Dim() int { return 6*p.n + 2*(p.n-1) }

func (p *Problem) NumConstraints() int { return 6 * p.n }

func (p *Problem) Bounds() (lower, upper []float64) {
	dim := p.Dim()
	lower = make([]float64, dim)
	upper = make([]float64, dim)
	for i := 0; i < 6*p.n; i++ {
		lower[i] = math.Inf(-1)
		upper[i] = math.Inf(1)
	}
	for i := 0; i < p.n-1; i++ {
		lower[p.steerAt(i)] = -p.cfg.MaxSteer
		upper[p.steerAt(i)] = p.cfg.MaxSteer
		lower[p.accelAt(i)] = p.cfg.AccelMin
		upper[p.accelAt(i)] = p.cfg.AccelMax
	}
	return lower, upper
}

// Start is the rollout of zero actuation from x0, which is feasible.
func (p *Problem) Start() []float64 {
	z := make([]float64, p.Dim())
	p.Rollout(z)
	return z
}

func (p *Problem) Controls() []int {
	idx := make([]int, 0, 2*(p.n-1))
	for i := 0; i < p.n-1; i++ {
		idx = append(idx, p.steerAt(i))
	}
	for i := 0; i < p.n-1; i++ {
		idx = append(idx, p.accelAt(i))
	}
	return idx
}

func (p *Problem) Rollout(z []float64) {
	s := p.x0
	p.setState(z, 0, s)
	for i := 0; i < p.n-1; i++ {
		s = p.model.Step(s, p.actuation(z, i), p.ref, p.dt)
		p.setState(z, i+1, s)
	}
}

func (p *Problem) state(z []float64, i int) vehicle.State {
	var v [6]float64
	for k := range v {
		v[k] = z[p.stateVar(k, i)]
	}
	return vehicle.StateFromVector(v)
}

func (p *Problem) setState(z []float64, i int, s vehicle.State) {
	for k, v := range s.Vector() {
		z[p.stateVar(k, i)] = v
	}
}

func (p *Problem) actuation(z []float64, i int) vehicle.Actuation {
	return vehicle.Actuation{Steer: z[p.steerAt(i)], Accel: z[p.accelAt(i)]}
}

func (p *Problem) Objective(z []float64) float64 {
	w := p.cfg.Weights
	var f float64
	for i := 0; i < p.n; i++ {
		cte, epsi, dv := z[p.cteAt(i)], z[p.epsiAt(i)], z[p.vAt(i)]-p.cfg.RefSpeed
		f += w.CTE*cte*cte + w.EPsi*epsi*epsi + w.Speed*dv*dv
	}
	for i := 0; i < p.n-1; i++ {
		d, a := z[p.steerAt(i)], z[p.accelAt(i)]
		f += w.Steer*d*d + w.Accel*a*a
	}
	for i := 0; i < p.n-2; i++ {
		dd := z[p.steerAt(i+1)] - z[p.steerAt(i)]
		da := z[p.accelAt(i+1)] - z[p.accelAt(i)]
		f += w.SteerRate*dd*dd + w.AccelRate*da*da
	}
	return f
}

func (p *Problem) Gradient(grad, z []float64) {
	w := p.cfg.Weights
	for i := range grad {
		grad[i] = 0
	}
	for i := 0; i < p.n; i++ {
		grad[p.cteAt(i)] = 2 * w.CTE * z[p.cteAt(i)]
		grad[p.epsiAt(i)] = 2 * w.EPsi * z[p.epsiAt(i)]
		grad[p.vAt(i)] = 2 * w.Speed * (z[p.vAt(i)] - p.cfg.RefSpeed)
	}
	for i := 0; i < p.n-1; i++ {
		grad[p.steerAt(i)] = 2 * w.Steer * z[p.steerAt(i)]
		grad[p.accelAt(i)] = 2 * w.Accel * z[p.accelAt(i)]
	}
	for i := 0; i < p.n-2; i++ {
		dd := 2 * w.SteerRate * (z[p.steerAt(i+1)] - z[p.steerAt(i)])
		grad[p.steerAt(i+1)] += dd
		grad[p.steerAt(i)] -= dd
		da := 2 * w.AccelRate * (z[p.accelAt(i+1)] - z[p.accelAt(i)])
		grad[p.accelAt(i+1)] += da
		grad[p.accelAt(i)] -= da
	}
}

func (p *Problem) Constraints(dst, z []float64) {
	x0 := p.x0.Vector()
	for k := range x0 {
		dst[k] = z[p.stateVar(k, 0)] - x0[k]
	}
	for i := 0; i < p.n-1; i++ {
		next := p.model.Step(p.state(z, i), p.actuation(z, i), p.ref, p.dt).Vector()
		row := 6 + 6*i
		for k := range next {
			dst[row+k] = z[p.stateVar(k, i+1)] - next[k]
		}
	}
}

// jacobianPerStep is the number of nonzeros in one transition block.
const jacobianPerStep = 25

func (p *Problem) Jacobian(z []float64) *nlp.Sparse {
	J := nlp.NewSparse(p.NumConstraints(), p.Dim(), 6+jacobianPerStep*(p.n-1))
	for k := 0; k < 6; k++ {
		J.Add(k, p.stateVar(k, 0), 1)
	}

	dt, lf := p.dt, p.model.Lf
	for i := 0; i < p.n-1; i++ {
		row := 6 + 6*i
		x, psi, v, epsi := z[p.xAt(i)], z[p.psiAt(i)], z[p.vAt(i)], z[p.epsiAt(i)]
		steer := z[p.steerAt(i)]
		sinPsi, cosPsi := math.Sincos(psi)
		sinE, cosE := math.Sincos(epsi)
		fp := p.slope.Eval(x)
		yawV := -steer * dt / lf // ∂/∂v of the yaw term, negated
		yawD := -v * dt / lf     // ∂/∂steer of the yaw term, negated

		// x
		J.Add(row, p.xAt(i+1), 1)
		J.Add(row, p.xAt(i), -1)
		J.Add(row, p.psiAt(i), v*sinPsi*dt)
		J.Add(row, p.vAt(i), -cosPsi*dt)
		// y
		J.Add(row+1, p.yAt(i+1), 1)
		J.Add(row+1, p.yAt(i), -1)
		J.Add(row+1, p.psiAt(i), -v*cosPsi*dt)
		J.Add(row+1, p.vAt(i), -sinPsi*dt)
		// psi
		J.Add(row+2, p.psiAt(i+1), 1)
		J.Add(row+2, p.psiAt(i), -1)
		J.Add(row+2, p.vAt(i), yawV)
		J.Add(row+2, p.steerAt(i), yawD)
		// v
		J.Add(row+3, p.vAt(i+1), 1)
		J.Add(row+3, p.vAt(i), -1)
		J.Add(row+3, p.accelAt(i), -dt)
		// cte
		J.Add(row+4, p.cteAt(i+1), 1)
		J.Add(row+4, p.xAt(i), -fp)
		J.Add(row+4, p.yAt(i), 1)
		J.Add(row+4, p.vAt(i), -sinE*dt)
		J.Add(row+4, p.epsiAt(i), -v*cosE*dt)
		// epsi
		J.Add(row+5, p.epsiAt(i+1), 1)
		J.Add(row+5, p.psiAt(i), -1)
		J.Add(row+5, p.xAt(i), p.curve.Eval(x)/(1+fp*fp))
		J.Add(row+5, p.vAt(i), yawV)
		J.Add(row+5, p.steerAt(i), yawD)
	}
	return J
}

// Trajectory extracts the planned states and actuations from a solution.
func (p *Problem) Trajectory(z []float64) (states []vehicle.State, plan []vehicle.Actuation) {
	states = make([]vehicle.State, p.n)
	for i := range states {
		states[i] = p.state(z, i)
	}
	plan = make([]vehicle.Actuation, p.n-1)
	for i := range plan {
		plan[i] = p.actuation(z, i)
	}
	return states, plan
}
