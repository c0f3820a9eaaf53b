// Package curvature estimates how far a polyline vertex sits from the arc
// implied by its neighbours. A large estimate means the way was probably drawn
// with too few nodes and cuts across a real-world curve.
//
// All coordinates must be in a projected, distance-preserving system; the
// score is expressed in the same unit (metres for the usual projections).
package curvature

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Threshold is the score above which a vertex is reported as approximated.
const Threshold = 70.0 / 2

// Triple is three consecutive vertices of a polyline.
type Triple struct {
	P1, P2, P3 orb.Point
}

// Reverse returns the triple walked in the opposite direction.
func (t Triple) Reverse() Triple {
	return Triple{P1: t.P3, P2: t.P2, P3: t.P1}
}

// Discard returns the sagitta of the circular arc through p1 and p3 whose
// curvature is implied by the angle at p2, measured on the half chord p2-p3.
//
// Coincident points and any floating-point domain violation resolve to 0,
// the neutral "no evidence of straightening" score.
func Discard(p1, p2, p3 orb.Point) float64 {
	d12 := planar.Distance(p1, p2)
	d23 := planar.Distance(p2, p3)
	d31 := planar.Distance(p3, p1)
	if d12 == 0 || d23 == 0 {
		return 0
	}

	cosB := (d31*d31 - d12*d12 - d23*d23) / (2 * d12 * d23)
	if math.IsNaN(cosB) || cosB < -1 || cosB > 1 {
		return 0
	}

	ag := 180 - math.Acos(cosB)*180/math.Pi
	half := d23 / 2

	c := math.Cos((ag - 90) * math.Pi / 180)
	if c <= 0 {
		return 0
	}
	rc := half / c
	if math.IsInf(rc, 0) || math.IsNaN(rc) {
		return 0
	}

	radicand := rc*rc - half*half
	if radicand < 0 {
		// rc >= half holds exactly; a small negative value is rounding.
		if radicand < -radicandTolerance*rc*rc {
			return 0
		}
		radicand = 0
	}

	f := -(math.Sqrt(radicand) - rc)
	if f <= 0 || math.IsNaN(f) {
		return 0
	}
	return f
}

const radicandTolerance = 1e-12

// DiscardTriple is Discard applied to t.
func DiscardTriple(t Triple) float64 {
	return Discard(t.P1, t.P2, t.P3)
}

// EvaluateWindow scores the vertex curr in both walking directions and keeps
// the larger value; the estimate is one-sided so the two may differ.
func EvaluateWindow(prev, curr, next orb.Point) float64 {
	return math.Max(Discard(prev, curr, next), Discard(next, curr, prev))
}

// IsFlagged reports whether score is strictly above Threshold.
func IsFlagged(score float64) bool {
	return score > Threshold
}
