package geospatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// LocalProjector maps WGS 84 coordinates onto a plane tangent to a reference
// latitude. Spherical Mercator is scaled by cos(lat0) so that distances near
// the reference are true metres.
type LocalProjector struct {
	origin orb.Point // mercator metres
	scale  float64
}

// NewLocalProjector centres a projector on the bounding box of ls.
func NewLocalProjector(ls orb.LineString) *LocalProjector {
	center := ls.Bound().Center()
	return &LocalProjector{
		origin: project.Point(center, project.WGS84.ToMercator),
		scale:  math.Cos(center.Lat() * math.Pi / 180),
	}
}

// Point projects one lon/lat point.
func (p *LocalProjector) Point(pt orb.Point) orb.Point {
	m := project.Point(pt, project.WGS84.ToMercator)
	return orb.Point{(m[0] - p.origin[0]) * p.scale, (m[1] - p.origin[1]) * p.scale}
}

// LineString projects every vertex of ls.
func (p *LocalProjector) LineString(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, pt := range ls {
		out[i] = p.Point(pt)
	}
	return out
}
