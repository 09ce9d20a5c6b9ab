package mpc

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/mpc.driver/internal/nlp"
	"github.com/banshee-data/mpc.driver/internal/polyfit"
	"github.com/banshee-data/mpc.driver/internal/vehicle"
)

func testProblem(t *testing.T) *Problem {
	t.Helper()
	cfg := DefaultConfig()
	x0 := vehicle.State{X: 0.4, Y: -0.2, Psi: 0.05, V: 12, CTE: 0.3, EPsi: -0.04}
	return Build(cfg, x0, polyfit.Poly{0.3, -0.05, 0.01, -0.0004})
}

func randomPoint(p *Problem, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	z := make([]float64, p.Dim())
	for i := range z {
		z[i] = rng.Float64()*2 - 1
	}
	// Keep speeds away from zero so every Jacobian term is exercised.
	for i := 0; i < p.n; i++ {
		z[p.vAt(i)] = 5 + 10*rng.Float64()
	}
	return z
}

func TestProblemLayout(t *testing.T) {
	p := testProblem(t)
	n := p.cfg.Horizon

	assert.Equal(t, 6*n+2*(n-1), p.Dim())
	assert.Equal(t, 6*n, p.NumConstraints())
	assert.Len(t, p.Controls(), 2*(n-1))
	assert.Equal(t, 6*n, p.steerAt(0))
	assert.Equal(t, 7*n-1, p.accelAt(0))
	assert.Equal(t, p.Dim()-1, p.accelAt(n-2))

	lower, upper := p.Bounds()
	for i := 0; i < 6*n; i++ {
		assert.True(t, math.IsInf(lower[i], -1) && math.IsInf(upper[i], 1), "state %d should be free", i)
	}
	for i := 0; i < n-1; i++ {
		assert.Equal(t, -p.cfg.MaxSteer, lower[p.steerAt(i)])
		assert.Equal(t, p.cfg.MaxSteer, upper[p.steerAt(i)])
		assert.Equal(t, p.cfg.AccelMin, lower[p.accelAt(i)])
		assert.Equal(t, p.cfg.AccelMax, upper[p.accelAt(i)])
	}
}

func TestStartIsFeasible(t *testing.T) {
	p := testProblem(t)
	z := p.Start()
	assert.Zero(t, nlp.Violation(p, z))
	assert.Equal(t, p.x0, p.state(z, 0))
}

func TestRolloutSatisfiesConstraints(t *testing.T) {
	p := testProblem(t)
	z := randomPoint(p, 7)
	p.Rollout(z)
	assert.Zero(t, nlp.Violation(p, z))

	states, plan := p.Trajectory(z)
	require.Len(t, states, p.cfg.Horizon)
	require.Len(t, plan, p.cfg.Horizon-1)
	m := vehicle.Model{Lf: p.cfg.Lf}
	for i := range plan {
		assert.Equal(t, m.Step(states[i], plan[i], p.ref, p.dt), states[i+1])
	}
}

func TestObjectiveTerms(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 3
	cfg.Weights = Weights{CTE: 1, EPsi: 2, Speed: 3, Steer: 4, Accel: 5, SteerRate: 6, AccelRate: 7}
	cfg.RefSpeed = 10
	p := Build(cfg, vehicle.State{}, polyfit.Poly{0})

	z := make([]float64, p.Dim())
	z[p.cteAt(1)] = 1    // 1
	z[p.epsiAt(2)] = 1   // 2
	z[p.vAt(0)] = 10
	z[p.vAt(1)] = 10     // v at step 2 stays 0: 3·100
	z[p.steerAt(1)] = 1  // steer 4, rate 6
	z[p.accelAt(0)] = -1 // accel 5, rate 7
	want := 1.0 + 2 + 3*100 + 4 + 6 + 5 + 7
	assert.InDelta(t, want, p.Objective(z), 1e-12)
}

func TestGradientMatchesFiniteDifferences(t *testing.T) {
	p := testProblem(t)
	z := randomPoint(p, 3)

	want := make([]float64, p.Dim())
	fd.Gradient(want, p.Objective, z, &fd.Settings{Formula: fd.Central})
	got := make([]float64, p.Dim())
	p.Gradient(got, z)

	for i := range got {
		assert.InDelta(t, want[i], got[i], 1e-4*math.Max(1, math.Abs(want[i])), "component %d", i)
	}
}

func TestJacobianMatchesFiniteDifferences(t *testing.T) {
	p := testProblem(t)
	for _, seed := range []int64{1, 2, 3} {
		z := randomPoint(p, seed)

		want := mat.NewDense(p.NumConstraints(), p.Dim(), nil)
		fd.Jacobian(want, p.Constraints, z, &fd.JacobianSettings{Formula: fd.Central})
		J := p.Jacobian(z)
		got := J.Dense()

		assert.Equal(t, 6+jacobianPerStep*(p.cfg.Horizon-1), J.NNZ())
		assert.True(t, mat.EqualApprox(want, got, 1e-6), "seed %d: analytic Jacobian differs\nwant % .4f\ngot  % .4f",
			seed, mat.Formatted(want, mat.Excerpt(4)), mat.Formatted(got, mat.Excerpt(4)))
	}
}
