package nlp

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"github.com/banshee-data/mpc.driver/internal/faults"
)

// ShootingSolver optimises only the control variables of a Simulator. Every
// candidate is rolled out through the model, so the equality constraints
// hold to rounding error and the search space shrinks from the full
// trajectory to the actuator sequence.
type ShootingSolver struct {
	Settings Settings
}

func (s *ShootingSolver) Name() string { return BackendShooting }

func (s *ShootingSolver) Solve(p Program) (*Result, error) {
	start := time.Now()

	sim, ok := p.(Simulator)
	if !ok {
		return nil, fmt.Errorf("shooting backend needs a Simulator, got %T", p)
	}

	lower, upper := sim.Bounds()
	b, err := newBox(lower, upper, sim.Controls())
	if err != nil {
		return nil, err
	}

	z := sim.Start()
	sim.Rollout(z)
	w0 := b.inner(z)

	work := make([]float64, len(z))
	copy(work, z)
	cost := func(w []float64) float64 {
		b.outer(work, w)
		sim.Rollout(work)
		return sim.Objective(work)
	}

	// The adjoint gives the exact reduced gradient. Programs whose
	// equalities do not pin one state each fall back to differences.
	adj, exact := newAdjoint(sim, sim.Controls())
	gz := make([]float64, len(z))
	fdSettings := &fd.Settings{Formula: fd.Central}
	gradient := func(grad, w []float64) {
		if exact {
			b.outer(work, w)
			sim.Rollout(work)
			if err := adj.gradient(gz, work); err == nil {
				b.chain(grad, gz, w)
				return
			}
		}
		fd.Gradient(grad, cost, w, fdSettings)
	}

	runtime, _ := s.Settings.remaining(start)
	res, err := optimize.Minimize(optimize.Problem{Func: cost, Grad: gradient}, w0, innerSettings(s.Settings.MaxIterations, runtime), &optimize.LBFGS{})

	status := NotConverged
	iterations := 0
	if res != nil {
		b.outer(z, res.X)
		sim.Rollout(z)
		iterations = res.MajorIterations
		switch {
		case err == nil && innerConverged(res.Status):
			status = Converged
		case err != nil && exact && s.stationary(sim, adj, z, gz):
			// L-BFGS stops with a failed line search once the tanh
			// transform flattens the cost near an active bound; the
			// iterate is still a first-order point.
			status = Converged
		}
	}

	out := newResult(sim, z, iterations, status, start, s.Name())
	if out.Violation > s.Settings.tolerance() {
		out.Status = Infeasible
		return out, fmt.Errorf("%w: rollout leaves violation %.3g", faults.ErrInfeasibleProgram, out.Violation)
	}
	if out.Status != Converged {
		reason := "budget exhausted"
		if err != nil {
			reason = err.Error()
		} else if res != nil {
			reason = res.Status.String()
		}
		return out, fmt.Errorf("%w: %s after %d iterations", faults.ErrNotConverged, reason, iterations)
	}
	return out, nil
}

// stationary checks first-order optimality of the rolled-out z over the
// control box.
func (s *ShootingSolver) stationary(sim Simulator, adj *adjoint, z, gz []float64) bool {
	if err := adj.gradient(gz, z); err != nil {
		return false
	}
	lower, upper := sim.Bounds()
	return stationary(projectedGradient(gz, z, lower, upper, sim.Controls()), sim.Objective(z))
}
