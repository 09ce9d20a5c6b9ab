package mpc

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/mpc.driver/internal/polyfit"
	"github.com/banshee-data/mpc.driver/internal/vehicle"
)

func TestCompensateZeroDelay(t *testing.T) {
	m := vehicle.Model{Lf: 2.67}
	s := vehicle.State{V: 10, CTE: 0.5, EPsi: 0.1}
	assert.Equal(t, s, Compensate(m, s, 0.2, 0, polyfit.Poly{0.5}))
	assert.Equal(t, s, Compensate(m, s, 0.2, -time.Second, polyfit.Poly{0.5}))
}

func TestCompensateProjectsForward(t *testing.T) {
	m := vehicle.Model{Lf: 2.67}
	path := polyfit.Poly{0.5, 0.1}
	measured := vehicle.State{V: 10, CTE: 0.5, EPsi: -math.Atan(0.1)}
	steer := 0.1

	got := Compensate(m, measured, steer, 150*time.Millisecond, path)

	dt := 0.15
	assert.InDelta(t, 10*dt, got.X, 1e-12)
	assert.InDelta(t, 0, got.Y, 1e-12)
	assert.InDelta(t, 10/2.67*steer*dt, got.Psi, 1e-12)
	assert.InDelta(t, 10, got.V, 1e-12, "acceleration is held at zero")
	assert.InDelta(t, 0.5+10*math.Sin(measured.EPsi)*dt, got.CTE, 1e-12)
	assert.InDelta(t, -math.Atan(0.1)+10/2.67*steer*dt, got.EPsi, 1e-12)
}

func TestCompensateMonotonicInDelay(t *testing.T) {
	m := vehicle.Model{Lf: 2.67}
	path := polyfit.Poly{0}
	measured := vehicle.State{V: 8}

	prevX, prevPsi := 0.0, 0.0
	for _, d := range []time.Duration{50, 100, 150, 250} {
		got := Compensate(m, measured, 0.05, d*time.Millisecond, path)
		assert.Greater(t, got.X, prevX, "delay %dms", d)
		assert.Greater(t, got.Psi, prevPsi, "delay %dms", d)
		prevX, prevPsi = got.X, got.Psi
	}
}

func TestCompensateWrapsHeading(t *testing.T) {
	m := vehicle.Model{Lf: 0.5}
	measured := vehicle.State{Psi: math.Pi - 0.01, V: 20, EPsi: math.Pi - 0.01}
	got := Compensate(m, measured, 0.4, 100*time.Millisecond, polyfit.Poly{0})
	assert.LessOrEqual(t, got.Psi, math.Pi)
	assert.Greater(t, got.Psi, -math.Pi)
	assert.Less(t, got.Psi, 0.0, "heading should wrap past pi")
	assert.Less(t, got.EPsi, 0.0)
}

func TestSmoothDelay(t *testing.T) {
	cur := 150 * time.Millisecond
	tests := []struct {
		name   string
		sample time.Duration
		alpha  float64
		want   time.Duration
	}{
		{"replace", 220 * time.Millisecond, 1, 220 * time.Millisecond},
		{"half", 250 * time.Millisecond, 0.5, 200 * time.Millisecond},
		{"zero sample ignored", 0, 1, cur},
		{"negative sample ignored", -time.Millisecond, 0.5, cur},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, smoothDelay(cur, tt.sample, tt.alpha))
		})
	}
}
