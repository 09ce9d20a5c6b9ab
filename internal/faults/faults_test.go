package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestDegradable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		want   bool
		solver bool
	}{
		{"invalid input", fmt.Errorf("%w: short", ErrInvalidInput), true, false},
		{"numerical failure", fmt.Errorf("fit: %w", ErrNumericalFailure), true, false},
		{"not converged", fmt.Errorf("%w after 50 iterations", ErrNotConverged), true, true},
		{"infeasible", ErrInfeasibleProgram, true, true},
		{"foreign error", errors.New("socket closed"), false, false},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Degradable(tt.err); got != tt.want {
				t.Errorf("Degradable(%v) = %v, want %v", tt.err, got, tt.want)
			}
			if got := SolverFault(tt.err); got != tt.solver {
				t.Errorf("SolverFault(%v) = %v, want %v", tt.err, got, tt.solver)
			}
		})
	}
}
