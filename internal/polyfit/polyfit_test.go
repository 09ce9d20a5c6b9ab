package polyfit

import (
	"math"
	"testing"

	"github.com/banshee-data/mpc.driver/internal/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitRecoversCubic(t *testing.T) {
	t.Parallel()

	want := Poly{2, -0.5, 0.01, -0.0002}
	var xs, ys []float64
	for x := 0.0; x <= 90; x += 10 {
		xs = append(xs, x)
		ys = append(ys, want.Eval(x))
	}

	got, err := Fit(xs, ys, 3)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.InDeltaSlice(t, want, got, 1e-6)
}

func TestFitLowerDegreeData(t *testing.T) {
	t.Parallel()

	// A straight line fitted with a cubic leaves the higher terms at zero.
	xs := []float64{0, 25, 50, 75, 100}
	ys := []float64{1, 1.5, 2, 2.5, 3}

	got, err := Fit(xs, ys, 3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0.02, 0, 0}, got, 1e-9)
}

func TestFitResidualOrthogonal(t *testing.T) {
	t.Parallel()

	// The least squares residual is orthogonal to every column of the
	// Vandermonde matrix; perturbing any coefficient can only increase it.
	xs := []float64{-3, -2, -1, 0, 1, 2, 3, 4}
	ys := []float64{9.4, 3.7, 1.2, 0.1, 0.8, 4.3, 8.6, 16.9}

	c, err := Fit(xs, ys, 2)
	require.NoError(t, err)

	for j := 0; j <= 2; j++ {
		dot := 0.0
		for i, x := range xs {
			dot += math.Pow(x, float64(j)) * (ys[i] - c.Eval(x))
		}
		assert.InDelta(t, 0, dot, 1e-9, "column %d", j)
	}

	base := sumSquares(c, xs, ys)
	for j := range c {
		bumped := append(Poly(nil), c...)
		bumped[j] += 1e-3
		assert.Greater(t, sumSquares(bumped, xs, ys), base)
	}
}

func TestFitErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		xs, ys []float64
		order  int
		want   error
	}{
		{"mismatched lengths", []float64{0, 1, 2, 3}, []float64{0, 1, 2}, 3, faults.ErrInvalidInput},
		{"too few waypoints", []float64{0, 1, 2}, []float64{0, 1, 2}, 3, faults.ErrInvalidInput},
		{"order zero", []float64{0, 1}, []float64{0, 1}, 0, faults.ErrInvalidInput},
		{"not finite", []float64{0, 1, math.NaN(), 3}, []float64{0, 1, 2, 3}, 3, faults.ErrInvalidInput},
		{"repeated x", []float64{1, 1, 1, 2, 2}, []float64{0, 1, 2, 3, 4}, 3, faults.ErrNumericalFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.xs, tt.ys, tt.order)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEvalSlopeDerivative(t *testing.T) {
	t.Parallel()

	p := Poly{1, 2, 3, 4} // 1 + 2x + 3x² + 4x³

	assert.Equal(t, 3, p.Order())
	assert.InDelta(t, 1.0, p.Eval(0), 1e-12)
	assert.InDelta(t, 49.0, p.Eval(2), 1e-12)
	assert.InDelta(t, 2.0, p.Slope(0), 1e-12)
	assert.InDelta(t, 2+12+48.0, p.Slope(2), 1e-12)
	assert.Equal(t, Poly{2, 6, 12}, p.Derivative())
	assert.Equal(t, Poly{6, 24}, p.Derivative().Derivative())
	assert.Equal(t, Poly{0}, Poly{5}.Derivative())
	assert.InDelta(t, p.Slope(1.7), p.Derivative().Eval(1.7), 1e-12)
}

func TestSample(t *testing.T) {
	t.Parallel()

	p := Poly{0, 0, 0.1}
	xs, ys := p.Sample(2.5, 25)
	require.Len(t, xs, 25)
	require.Len(t, ys, 25)
	assert.Equal(t, 0.0, xs[0])
	assert.InDelta(t, 60.0, xs[24], 1e-12)
	assert.InDelta(t, 0.1*60*60, ys[24], 1e-9)

	xs, ys = p.Sample(1, 0)
	assert.Nil(t, xs)
	assert.Nil(t, ys)
}

func sumSquares(p Poly, xs, ys []float64) float64 {
	s := 0.0
	for i, x := range xs {
		r := ys[i] - p.Eval(x)
		s += r * r
	}
	return s
}
