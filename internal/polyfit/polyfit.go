// Package polyfit fits and evaluates the low-order reference polynomial the
// controller tracks. Coefficients are stored lowest degree first.
package polyfit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/mpc.driver/internal/faults"
)

// Poly is a polynomial y = Σ c_i x^i with c_0 first.
type Poly []float64

// Fit returns the order+1 coefficients minimising the squared residual of
// ys ≈ Poly(xs). The Vandermonde system is solved with a Householder QR
// factorisation rather than the normal equations, which square the
// condition number of the higher powers of x.
func Fit(xs, ys []float64, order int) (Poly, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("%w: x/y lengths differ (%d != %d)", faults.ErrInvalidInput, len(xs), len(ys))
	}
	if order < 1 {
		return nil, fmt.Errorf("%w: polynomial order must be at least 1, got %d", faults.ErrInvalidInput, order)
	}
	if len(xs) <= order {
		return nil, fmt.Errorf("%w: order %d fit needs at least %d waypoints, got %d", faults.ErrInvalidInput, order, order+1, len(xs))
	}
	for i := range xs {
		if !finite(xs[i]) || !finite(ys[i]) {
			return nil, fmt.Errorf("%w: waypoint %d is not finite", faults.ErrInvalidInput, i)
		}
	}
	if n := distinct(xs); n <= order {
		return nil, fmt.Errorf("%w: only %d distinct x values for an order %d fit", faults.ErrNumericalFailure, n, order)
	}

	m := len(xs)
	a := mat.NewDense(m, order+1, nil)
	for i, x := range xs {
		p := 1.0
		for j := 0; j <= order; j++ {
			a.Set(i, j, p)
			p *= x
		}
	}
	b := mat.NewVecDense(m, append([]float64(nil), ys...))

	var qr mat.QR
	qr.Factorize(a)

	var c mat.VecDense
	if err := qr.SolveVecTo(&c, false, b); err != nil {
		return nil, fmt.Errorf("%w: least squares solve: %v", faults.ErrNumericalFailure, err)
	}

	coeffs := make(Poly, order+1)
	for i := range coeffs {
		coeffs[i] = c.AtVec(i)
		if !finite(coeffs[i]) {
			return nil, fmt.Errorf("%w: coefficient %d is not finite", faults.ErrNumericalFailure, i)
		}
	}
	return coeffs, nil
}

// Order is the polynomial degree implied by the coefficient count.
func (p Poly) Order() int {
	return len(p) - 1
}

// Eval returns Σ c_i x^i using Horner's rule.
func (p Poly) Eval(x float64) float64 {
	y := 0.0
	for i := len(p) - 1; i >= 0; i-- {
		y = y*x + p[i]
	}
	return y
}

// Derivative returns the coefficients of dp/dx.
func (p Poly) Derivative() Poly {
	if len(p) <= 1 {
		return Poly{0}
	}
	d := make(Poly, len(p)-1)
	for i := 1; i < len(p); i++ {
		d[i-1] = float64(i) * p[i]
	}
	return d
}

// Slope evaluates the first derivative at x.
func (p Poly) Slope(x float64) float64 {
	s := 0.0
	for i := len(p) - 1; i >= 1; i-- {
		s = s*x + float64(i)*p[i]
	}
	return s
}

// Sample renders the polynomial at count points spaced step apart along +x,
// starting at the origin. Used for the reference line shown to the driver.
func (p Poly) Sample(step float64, count int) (xs, ys []float64) {
	if count <= 0 {
		return nil, nil
	}
	xs = make([]float64, count)
	ys = make([]float64, count)
	for i := 0; i < count; i++ {
		x := float64(i) * step
		xs[i] = x
		ys[i] = p.Eval(x)
	}
	return xs, ys
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func distinct(xs []float64) int {
	seen := make(map[float64]struct{}, len(xs))
	for _, x := range xs {
		seen[x] = struct{}{}
	}
	return len(seen)
}
