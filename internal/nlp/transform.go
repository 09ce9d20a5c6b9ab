package nlp

import (
	"fmt"
	"math"

	"github.com/banshee-data/mpc.driver/internal/faults"
)

// boxLimit keeps atanh finite when a start point sits on a bound.
const boxLimit = 1 - 1e-9

type boxKind int

const (
	boxFree boxKind = iota
	boxRanged
	boxFixed
)

// box maps unconstrained inner variables w onto bounded outer variables z:
// ranged entries use z = mid + half·tanh(w), free entries z = w, and fixed
// entries ignore w. The inner methods in this package only handle
// unconstrained problems, so bounds are enforced by this change of variables.
type box struct {
	idx  []int
	kind []boxKind
	mid  []float64
	half []float64
}

func newBox(lower, upper []float64, idx []int) (*box, error) {
	b := &box{
		idx:  idx,
		kind: make([]boxKind, len(idx)),
		mid:  make([]float64, len(idx)),
		half: make([]float64, len(idx)),
	}
	for k, i := range idx {
		lo, hi := lower[i], upper[i]
		loInf, hiInf := math.IsInf(lo, -1), math.IsInf(hi, 1)
		switch {
		case math.IsNaN(lo) || math.IsNaN(hi) || lo > hi:
			return nil, fmt.Errorf("%w: variable %d has bounds [%v, %v]", faults.ErrInfeasibleProgram, i, lo, hi)
		case loInf && hiInf:
			b.kind[k] = boxFree
		case loInf || hiInf:
			return nil, fmt.Errorf("variable %d: one-sided bounds are not supported", i)
		case lo == hi:
			b.kind[k] = boxFixed
			b.mid[k] = lo
		default:
			b.kind[k] = boxRanged
			b.mid[k] = (lo + hi) / 2
			b.half[k] = (hi - lo) / 2
		}
	}
	return b, nil
}

// inner returns w for the selected components of z.
func (b *box) inner(z []float64) []float64 {
	w := make([]float64, len(b.idx))
	for k, i := range b.idx {
		switch b.kind[k] {
		case boxFree:
			w[k] = z[i]
		case boxRanged:
			r := (z[i] - b.mid[k]) / b.half[k]
			w[k] = math.Atanh(math.Max(-boxLimit, math.Min(boxLimit, r)))
		}
	}
	return w
}

// outer writes the selected components of z from w.
func (b *box) outer(z, w []float64) {
	for k, i := range b.idx {
		switch b.kind[k] {
		case boxFree:
			z[i] = w[k]
		case boxRanged:
			z[i] = b.mid[k] + b.half[k]*math.Tanh(w[k])
		case boxFixed:
			z[i] = b.mid[k]
		}
	}
}

// chain converts a gradient with respect to z into one with respect to w.
func (b *box) chain(gw, gz, w []float64) {
	for k, i := range b.idx {
		switch b.kind[k] {
		case boxFree:
			gw[k] = gz[i]
		case boxRanged:
			th := math.Tanh(w[k])
			gw[k] = gz[i] * b.half[k] * (1 - th*th)
		case boxFixed:
			gw[k] = 0
		}
	}
}
