// Package frame converts waypoints between the global map frame and the
// vehicle's local frame (origin at the vehicle, +x along its heading).
package frame

import (
	"fmt"
	"math"

	"github.com/banshee-data/mpc.driver/internal/faults"
)

// Pose is the vehicle's global position and heading (radians).
type Pose struct {
	X   float64
	Y   float64
	Psi float64
}

// ToLocal expresses global waypoints in the vehicle frame: translate by
// (-X, -Y), then rotate by -Psi.
func ToLocal(pose Pose, xs, ys []float64) (lx, ly []float64, err error) {
	if len(xs) != len(ys) {
		return nil, nil, fmt.Errorf("%w: waypoint x/y lengths differ (%d != %d)", faults.ErrInvalidInput, len(xs), len(ys))
	}

	sin, cos := math.Sincos(-pose.Psi)
	lx = make([]float64, len(xs))
	ly = make([]float64, len(ys))
	for i := range xs {
		dx := xs[i] - pose.X
		dy := ys[i] - pose.Y
		lx[i] = dx*cos - dy*sin
		ly[i] = dx*sin + dy*cos
	}
	return lx, ly, nil
}

// ToGlobal is the inverse of ToLocal.
func ToGlobal(pose Pose, lx, ly []float64) (xs, ys []float64, err error) {
	if len(lx) != len(ly) {
		return nil, nil, fmt.Errorf("%w: local x/y lengths differ (%d != %d)", faults.ErrInvalidInput, len(lx), len(ly))
	}

	sin, cos := math.Sincos(pose.Psi)
	xs = make([]float64, len(lx))
	ys = make([]float64, len(ly))
	for i := range lx {
		xs[i] = lx[i]*cos - ly[i]*sin + pose.X
		ys[i] = lx[i]*sin + ly[i]*cos + pose.Y
	}
	return xs, ys, nil
}
