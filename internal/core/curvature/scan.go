package curvature

import "github.com/paulmach/orb"

// MinVertices is the smallest polyline the analyser looks at.
const MinVertices = 4

// VertexScore is the combined score of one interior vertex.
type VertexScore struct {
	Index   int     `json:"index"` // 0-based position in the linestring
	Score   float64 `json:"score"`
	Flagged bool    `json:"flagged"`
}

// Eligible reports whether ls has enough vertices to be scanned.
func Eligible(ls orb.LineString) bool {
	return len(ls) >= MinVertices
}

// Scan scores every interior vertex of ls. It returns nil for linestrings
// with fewer than MinVertices points.
func Scan(ls orb.LineString) []VertexScore {
	if !Eligible(ls) {
		return nil
	}

	scores := make([]VertexScore, 0, len(ls)-2)
	for i := 1; i < len(ls)-1; i++ {
		s := EvaluateWindow(ls[i-1], ls[i], ls[i+1])
		scores = append(scores, VertexScore{Index: i, Score: s, Flagged: IsFlagged(s)})
	}
	return scores
}

// Flagged returns only the vertices of ls whose score exceeds Threshold.
func Flagged(ls orb.LineString) []VertexScore {
	var out []VertexScore
	for _, vs := range Scan(ls) {
		if vs.Flagged {
			out = append(out, vs)
		}
	}
	return out
}

// MaxScore returns the highest vertex score of ls, or 0 when ls is not
// eligible.
func MaxScore(ls orb.LineString) float64 {
	var best float64
	for _, vs := range Scan(ls) {
		if vs.Score > best {
			best = vs.Score
		}
	}
	return best
}
