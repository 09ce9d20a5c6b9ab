package nlp

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/banshee-data/mpc.driver/internal/faults"
)

const (
	augLagMaxOuter     = 30
	augLagPenaltyStart = 10.0
	augLagPenaltyMax   = 1e8
	augLagPenaltyGrow  = 10.0
)

// AugLagSolver minimises the augmented Lagrangian
//
//	L(z, λ; μ) = f(z) + λᵀc(z) + (μ/2)‖c(z)‖²
//
// over the full decision vector, updating λ ← λ + μc after every inner
// L-BFGS run and growing μ while feasibility stalls. It needs only the
// Program interface, so it also serves programs without a rollout.
type AugLagSolver struct {
	Settings Settings
}

func (s *AugLagSolver) Name() string { return BackendAugLag }

func (s *AugLagSolver) Solve(p Program) (*Result, error) {
	start := time.Now()
	n, m := p.Dim(), p.NumConstraints()

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	lower, upper := p.Bounds()
	b, err := newBox(lower, upper, all)
	if err != nil {
		return nil, err
	}

	z := p.Start()
	if sim, ok := p.(Simulator); ok {
		sim.Rollout(z)
	}
	w := b.inner(z)

	lambda := make([]float64, m)
	mu := augLagPenaltyStart

	work := make([]float64, n)
	c := make([]float64, m)
	coef := make([]float64, m)
	gz := make([]float64, n)
	jtc := make([]float64, n)

	lagrangian := func(x []float64) float64 {
		b.outer(work, x)
		p.Constraints(c, work)
		return p.Objective(work) + floats.Dot(lambda, c) + 0.5*mu*floats.Dot(c, c)
	}
	// lagGrad writes ∇_z L at the outer point work.
	lagGrad := func() {
		p.Gradient(gz, work)
		p.Constraints(c, work)
		for j := range coef {
			coef[j] = lambda[j] + mu*c[j]
		}
		p.Jacobian(work).MulTransVec(jtc, coef)
		floats.Add(gz, jtc)
	}
	gradient := func(grad, x []float64) {
		b.outer(work, x)
		lagGrad()
		b.chain(grad, gz, x)
	}
	// A failed line search near an active bound can still end on a
	// first-order point of the subproblem.
	subproblemStationary := func(x []float64) bool {
		f := lagrangian(x)
		lagGrad()
		return stationary(projectedGradient(gz, work, lower, upper, all), f)
	}

	tol := s.Settings.tolerance()
	iterations := 0
	innerOK := false
	violation := math.Inf(1)
	prev := math.Inf(1)

	for outer := 0; outer < augLagMaxOuter; outer++ {
		runtime, ok := s.Settings.remaining(start)
		if !ok {
			break
		}
		res, ierr := optimize.Minimize(
			optimize.Problem{Func: lagrangian, Grad: gradient},
			w,
			innerSettings(s.Settings.MaxIterations, runtime),
			&optimize.LBFGS{},
		)
		if res != nil {
			copy(w, res.X)
			iterations += res.MajorIterations
			innerOK = innerConverged(res.Status) || (ierr != nil && subproblemStationary(w))
		} else {
			innerOK = false
		}

		b.outer(z, w)
		p.Constraints(c, z)
		violation = floats.Norm(c, math.Inf(1))
		if violation <= tol && innerOK {
			break
		}

		floats.AddScaled(lambda, mu, c)
		if violation > 0.25*prev {
			mu = math.Min(mu*augLagPenaltyGrow, augLagPenaltyMax)
		}
		prev = violation
	}

	b.outer(z, w)
	out := newResult(p, z, iterations, Converged, start, s.Name())
	switch {
	case out.Violation > math.Max(1e3*tol, 1e-3) && mu >= augLagPenaltyMax:
		out.Status = Infeasible
		return out, fmt.Errorf("%w: violation %.3g with penalty at its cap", faults.ErrInfeasibleProgram, out.Violation)
	case out.Violation > tol || !innerOK:
		out.Status = NotConverged
		return out, fmt.Errorf("%w: violation %.3g after %d iterations", faults.ErrNotConverged, out.Violation, iterations)
	}
	return out, nil
}
