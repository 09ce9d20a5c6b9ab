// Package faults defines the error taxonomy shared by the control pipeline.
//
// Every failure inside a control cycle wraps one of these sentinels so the
// controller can decide, with errors.Is, whether to apply a best-effort
// solution or fall back to the safe command.
package faults

import "errors"

var (
	// ErrInvalidInput reports mismatched or insufficient waypoint data.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNumericalFailure reports an ill-conditioned or degenerate fit.
	ErrNumericalFailure = errors.New("numerical failure")
	// ErrNotConverged reports a solve that hit its iteration or time budget.
	ErrNotConverged = errors.New("solver did not converge")
	// ErrInfeasibleProgram reports a solve that could not satisfy its constraints.
	ErrInfeasibleProgram = errors.New("infeasible program")
)

// Degradable reports whether err belongs to the taxonomy above, meaning the
// cycle should degrade to a safe command rather than stop the control loop.
func Degradable(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNumericalFailure) ||
		errors.Is(err, ErrNotConverged) ||
		errors.Is(err, ErrInfeasibleProgram)
}

// SolverFault reports whether err came from the trajectory solver rather
// than from preprocessing.
func SolverFault(err error) bool {
	return errors.Is(err, ErrNotConverged) || errors.Is(err, ErrInfeasibleProgram)
}
