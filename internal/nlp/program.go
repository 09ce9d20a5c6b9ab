package nlp

import "gonum.org/v1/gonum/mat"

// Program is a nonlinear program
//
//	minimise f(z)  subject to  c(z) = 0,  lower ≤ z ≤ upper.
//
// Implementations own no solver state; each solve gets its own Program.
type Program interface {
	// Dim is the length of the decision vector.
	Dim() int
	// Bounds returns per-variable limits; ±Inf marks a free side.
	Bounds() (lower, upper []float64)
	// Start returns the initial guess. Callers may modify the returned slice.
	Start() []float64
	Objective(z []float64) float64
	// Gradient writes ∇f(z) into grad.
	Gradient(grad, z []float64)
	NumConstraints() int
	// Constraints writes c(z) into dst.
	Constraints(dst, z []float64)
	// Jacobian returns ∂c/∂z at z.
	Jacobian(z []float64) *Sparse
}

// Simulator is a Program whose non-control variables are determined by the
// control variables through Rollout.
type Simulator interface {
	Program
	// Controls lists the indices of the independent variables.
	Controls() []int
	// Rollout overwrites every dependent variable of z from its controls so
	// that c(z) = 0.
	Rollout(z []float64)
}

// Sparse is a coordinate-format matrix. Duplicate entries are summed.
type Sparse struct {
	Rows, Cols int
	I, J       []int
	V          []float64
}

// NewSparse allocates an empty rows×cols matrix with room for nnz entries.
func NewSparse(rows, cols, nnz int) *Sparse {
	return &Sparse{
		Rows: rows,
		Cols: cols,
		I:    make([]int, 0, nnz),
		J:    make([]int, 0, nnz),
		V:    make([]float64, 0, nnz),
	}
}

// Add records the entry (i, j) += v.
func (s *Sparse) Add(i, j int, v float64) {
	s.I = append(s.I, i)
	s.J = append(s.J, j)
	s.V = append(s.V, v)
}

// NNZ is the number of stored entries.
func (s *Sparse) NNZ() int {
	return len(s.V)
}

// MulTransVec sets dst = Sᵀx.
func (s *Sparse) MulTransVec(dst, x []float64) {
	for k := range dst {
		dst[k] = 0
	}
	for k, v := range s.V {
		dst[s.J[k]] += v * x[s.I[k]]
	}
}

// Dense expands s into a gonum matrix.
func (s *Sparse) Dense() *mat.Dense {
	d := mat.NewDense(s.Rows, s.Cols, nil)
	for k, v := range s.V {
		d.Set(s.I[k], s.J[k], d.At(s.I[k], s.J[k])+v)
	}
	return d
}
