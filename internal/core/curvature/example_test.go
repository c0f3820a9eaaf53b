package curvature_test

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/samirrijal/osmqa/internal/core/curvature"
)

func ExampleEvaluateWindow() {
	score := curvature.EvaluateWindow(orb.Point{0, 0}, orb.Point{400, 0}, orb.Point{400, 400})
	fmt.Printf("%.1f %v\n", score, curvature.IsFlagged(score))
	// Output: 200.0 true
}
