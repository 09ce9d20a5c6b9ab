package nlp

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/optimize"
)

// Backend names accepted by New.
const (
	BackendShooting = "shooting"
	BackendAugLag   = "auglag"
)

// Solver runs one solve to convergence or to its budget. Implementations are
// stateless between calls and may be shared.
type Solver interface {
	Solve(p Program) (*Result, error)
	Name() string
}

// Settings bound a solve.
type Settings struct {
	MaxIterations int           // L-BFGS major iterations per inner solve; 0 means unlimited
	TimeBudget    time.Duration // wall clock for the whole solve; 0 means unlimited
	Tolerance     float64       // feasibility tolerance on max |c_i|
}

const defaultTolerance = 1e-6

func (s Settings) tolerance() float64 {
	if s.Tolerance <= 0 {
		return defaultTolerance
	}
	return s.Tolerance
}

// remaining reports the unused wall clock, or 0 for an unlimited budget.
// ok is false once a limited budget is spent.
func (s Settings) remaining(start time.Time) (left time.Duration, ok bool) {
	if s.TimeBudget <= 0 {
		return 0, true
	}
	left = s.TimeBudget - time.Since(start)
	return left, left > 0
}

var backends = map[string]func(Settings) Solver{
	BackendShooting: func(s Settings) Solver { return &ShootingSolver{Settings: s} },
	BackendAugLag:   func(s Settings) Solver { return &AugLagSolver{Settings: s} },
}

// New returns the named backend.
func New(name string, settings Settings) (Solver, error) {
	ctor, ok := backends[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown solver backend %q (valid: %s)", name, strings.Join(Backends(), ", "))
	}
	return ctor(settings), nil
}

// Backends lists the registered backend names.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsBackend reports whether name selects a registered backend.
func IsBackend(name string) bool {
	_, ok := backends[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// innerSettings configures one L-BFGS run.
func innerSettings(maxIter int, runtime time.Duration) *optimize.Settings {
	return &optimize.Settings{
		MajorIterations: maxIter,
		Runtime:         runtime,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-10,
			Iterations: 25,
		},
	}
}

// innerConverged reports whether an L-BFGS status means a local minimum was
// reached rather than a budget or a failure.
func innerConverged(s optimize.Status) bool {
	switch s {
	case optimize.Success,
		optimize.FunctionConvergence,
		optimize.GradientThreshold,
		optimize.StepConvergence,
		optimize.MethodConverge:
		return true
	default:
		return false
	}
}
