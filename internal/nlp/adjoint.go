package nlp

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// adjoint computes the gradient of f(u, s(u)) with respect to the controls u
// of a Simulator, where the states s are fixed by c(u, s) = 0. With J_s and
// J_u the state and control columns of ∂c/∂z it solves J_sᵀλ = −∇_s f once
// and returns ∇_u f + J_uᵀλ.
//
// It needs exactly one constraint per state, which holds for any program
// whose Rollout is defined by its equalities.
type adjoint struct {
	p        Program
	controls []int
	// pos maps a variable to its column in js, or -1 for a control.
	pos []int

	gz  []float64
	js  *mat.Dense
	rhs *mat.VecDense
	lam *mat.VecDense
}

func newAdjoint(p Program, controls []int) (*adjoint, bool) {
	n, m := p.Dim(), p.NumConstraints()
	pos := make([]int, n)
	for _, i := range controls {
		pos[i] = -1
	}
	states := 0
	for i := range pos {
		if pos[i] == 0 {
			pos[i] = states
			states++
		}
	}
	if states != m || m == 0 {
		return nil, false
	}
	return &adjoint{
		p:        p,
		controls: controls,
		pos:      pos,
		gz:       make([]float64, n),
		js:       mat.NewDense(m, m, nil),
		rhs:      mat.NewVecDense(m, nil),
		lam:      mat.NewVecDense(m, nil),
	}, true
}

// gradient writes the reduced gradient into the control entries of grad.
// z must already be rolled out.
func (a *adjoint) gradient(grad, z []float64) error {
	a.p.Gradient(a.gz, z)
	jac := a.p.Jacobian(z)

	a.js.Zero()
	for k, v := range jac.V {
		if col := a.pos[jac.J[k]]; col >= 0 {
			a.js.Set(jac.I[k], col, a.js.At(jac.I[k], col)+v)
		}
	}
	for i, col := range a.pos {
		if col >= 0 {
			a.rhs.SetVec(col, -a.gz[i])
		}
	}
	if err := a.lam.SolveVec(a.js.T(), a.rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return err
		}
	}

	for _, i := range a.controls {
		grad[i] = a.gz[i]
	}
	for k, v := range jac.V {
		if j := jac.J[k]; a.pos[j] < 0 {
			grad[j] += v * a.lam.AtVec(jac.I[k])
		}
	}
	return nil
}
