package nlp

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Status summarises how a solve ended.
type Status int

const (
	Converged    Status = iota // optimality and feasibility tolerances met
	NotConverged               // budget exhausted or inner method stalled
	Infeasible                 // constraints still violated at the end
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case NotConverged:
		return "not_converged"
	case Infeasible:
		return "infeasible"
	default:
		return "unknown"
	}
}

// Result is the best iterate of a solve.
type Result struct {
	X          []float64
	Objective  float64
	Violation  float64 // max |c_i(X)|
	Iterations int
	Status     Status
	Elapsed    time.Duration
	Backend    string
}

// Violation returns the infinity norm of c(z).
func Violation(p Program, z []float64) float64 {
	m := p.NumConstraints()
	if m == 0 {
		return 0
	}
	c := make([]float64, m)
	p.Constraints(c, z)
	return floats.Norm(c, math.Inf(1))
}

// WithinBounds reports whether every component of z lies within the
// program's bounds, widened by tol.
func WithinBounds(p Program, z []float64, tol float64) bool {
	lower, upper := p.Bounds()
	for i, v := range z {
		if math.IsNaN(v) || v < lower[i]-tol || v > upper[i]+tol {
			return false
		}
	}
	return true
}

func newResult(p Program, z []float64, iterations int, status Status, start time.Time, backend string) *Result {
	return &Result{
		X:          z,
		Objective:  p.Objective(z),
		Violation:  Violation(p, z),
		Iterations: iterations,
		Status:     status,
		Elapsed:    time.Since(start),
		Backend:    backend,
	}
}
