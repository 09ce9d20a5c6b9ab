package nlp

import (
	"math"
)

// optimalityScale relates the first-order tolerance to the objective size.
// Objectives here sum weighted squares over a horizon, so an absolute
// gradient tolerance would be meaningless across tunings.
const optimalityScale = 1e-4

// projectedGradient returns ‖z − P(z − g)‖∞ over the components in idx,
// where P clamps to [lower, upper]. It is zero exactly at a first-order
// point of min f over the box: free components need g = 0, components on a
// bound only need g to push outward.
func projectedGradient(g, z, lower, upper []float64, idx []int) float64 {
	worst := 0.0
	for _, i := range idx {
		step := math.Max(lower[i], math.Min(upper[i], z[i]-g[i]))
		if d := math.Abs(z[i] - step); d > worst || math.IsNaN(d) {
			worst = d
		}
	}
	return worst
}

// stationary reports whether a projected gradient is small for an objective
// of size f.
func stationary(pg, f float64) bool {
	return pg <= optimalityScale*(1+math.Abs(f))
}
