package curvature_test

import (
	"math"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/osmqa/internal/core/curvature"
)

func TestDiscard_SymmetricBend(t *testing.T) {
	got := curvature.Discard(orb.Point{0, 0}, orb.Point{5, 5}, orb.Point{10, 0})
	assert.InDelta(t, 3.5355339059327378, got, 1e-6)
}

func TestDiscard_GentleCurve(t *testing.T) {
	got := curvature.Discard(orb.Point{0, 0}, orb.Point{5, 0.1}, orb.Point{10, 0})
	assert.InDelta(t, 0.05000999900018854, got, 1e-9)
	assert.False(t, curvature.IsFlagged(got))
}

func TestDiscard_Fixtures(t *testing.T) {
	tests := []struct {
		name       string
		p1, p2, p3 orb.Point
		want       float64
	}{
		{"right angle short leg", orb.Point{0, 0}, orb.Point{100, 0}, orb.Point{100, 100}, 50},
		{"right angle long leg", orb.Point{0, 0}, orb.Point{400, 0}, orb.Point{400, 400}, 200},
		{"45 degree turn", orb.Point{0, 0}, orb.Point{200, 0}, orb.Point{300, 100}, 29.289321881345245},
		{"45 degree turn reversed", orb.Point{300, 100}, orb.Point{200, 0}, orb.Point{0, 0}, 41.421356237309524},
		{"shallow kink", orb.Point{0, 0}, orb.Point{1000, 50}, orb.Point{2000, 0}, 25.031230493126714},
		{"scalene", orb.Point{1, 1}, orb.Point{4, 5}, orb.Point{10, 2}, 2.7992541879546033},
		{"scalene reversed", orb.Point{10, 2}, orb.Point{4, 5}, orb.Point{1, 1}, 2.086440883522489},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := curvature.Discard(tt.p1, tt.p2, tt.p3)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestDiscard_Collinear(t *testing.T) {
	lines := [][3]orb.Point{
		{{0, 0}, {5, 0}, {10, 0}},
		{{0, 0}, {3, 0}, {10, 0}},
		{{0, 0}, {1, 1}, {7, 7}},
		{{-20, 4}, {-10, 2}, {30, -6}},
	}
	for _, l := range lines {
		got := curvature.Discard(l[0], l[1], l[2])
		assert.InDelta(t, 0, got, 1e-6, "collinear %v", l)
		assert.False(t, curvature.IsFlagged(got))
	}
}

func TestDiscard_Degenerate(t *testing.T) {
	p := orb.Point{12.5, -3}
	q := orb.Point{40, 7}

	assert.Equal(t, 0.0, curvature.Discard(p, p, q))
	assert.Equal(t, 0.0, curvature.Discard(q, p, p))
	assert.Equal(t, 0.0, curvature.Discard(p, p, p))

	// p1 == p3 folds the path back on itself.
	got := curvature.Discard(orb.Point{0, 0}, orb.Point{10, 0}, orb.Point{0, 0})
	assert.InDelta(t, 0, got, 1e-6)
}

func TestDiscard_NeverNegativeOrNaN(t *testing.T) {
	pts := []orb.Point{
		{0, 0}, {1e-9, 0}, {1, 1e-12}, {1e6, 1e6}, {-3, 4}, {2, -7}, {1e-300, 1e-300}, {5, 5},
	}
	for _, a := range pts {
		for _, b := range pts {
			for _, c := range pts {
				got := curvature.Discard(a, b, c)
				require.False(t, math.IsNaN(got), "NaN for %v %v %v", a, b, c)
				require.False(t, math.IsInf(got, 0), "Inf for %v %v %v", a, b, c)
				require.GreaterOrEqual(t, got, 0.0, "negative for %v %v %v", a, b, c)
			}
		}
	}
}

func TestDiscard_ScalesLinearly(t *testing.T) {
	p1, p2, p3 := orb.Point{1, 1}, orb.Point{4, 5}, orb.Point{10, 2}
	base := curvature.Discard(p1, p2, p3)

	for _, k := range []float64{0.5, 3, 1000} {
		scale := func(p orb.Point) orb.Point { return orb.Point{p[0] * k, p[1] * k} }
		got := curvature.Discard(scale(p1), scale(p2), scale(p3))
		assert.InEpsilon(t, base*k, got, 1e-9, "k=%v", k)
	}
}

func TestEvaluateWindow_MaxOfBothDirections(t *testing.T) {
	triples := []curvature.Triple{
		{P1: orb.Point{0, 0}, P2: orb.Point{200, 0}, P3: orb.Point{300, 100}},
		{P1: orb.Point{1, 1}, P2: orb.Point{4, 5}, P3: orb.Point{10, 2}},
		{P1: orb.Point{0, 0}, P2: orb.Point{5, 5}, P3: orb.Point{10, 0}},
	}
	for _, tr := range triples {
		got := curvature.EvaluateWindow(tr.P1, tr.P2, tr.P3)
		assert.GreaterOrEqual(t, got, curvature.DiscardTriple(tr))
		assert.GreaterOrEqual(t, got, curvature.DiscardTriple(tr.Reverse()))
	}

	// Only the reversed walk crosses the threshold here.
	got := curvature.EvaluateWindow(orb.Point{0, 0}, orb.Point{200, 0}, orb.Point{300, 100})
	assert.InDelta(t, 41.421356237309524, got, 1e-6)
	assert.True(t, curvature.IsFlagged(got))
}

func TestIsFlagged_Boundary(t *testing.T) {
	assert.Equal(t, 35.0, curvature.Threshold)
	assert.False(t, curvature.IsFlagged(0))
	assert.False(t, curvature.IsFlagged(35.0))
	assert.True(t, curvature.IsFlagged(35.0000001))
	assert.True(t, curvature.IsFlagged(200))
}

func TestDiscard_Concurrent(t *testing.T) {
	want := curvature.EvaluateWindow(orb.Point{0, 0}, orb.Point{400, 0}, orb.Point{400, 400})

	var wg sync.WaitGroup
	errs := make(chan float64, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := curvature.EvaluateWindow(orb.Point{0, 0}, orb.Point{400, 0}, orb.Point{400, 400}); got != want {
				errs <- got
			}
		}()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Errorf("concurrent evaluation returned %v, want %v", got, want)
	}
}
