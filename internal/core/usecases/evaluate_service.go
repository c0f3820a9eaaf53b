package usecases

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/osmqa/internal/core/curvature"
	"github.com/samirrijal/osmqa/internal/core/domain"
	"github.com/samirrijal/osmqa/internal/pkg/geospatial"
	"github.com/samirrijal/osmqa/internal/pkg/telemetry"
)

// EvaluateService scores ad-hoc WGS 84 polylines without touching the
// database.
type EvaluateService struct{}

// NewEvaluateService creates a new EvaluateService.
func NewEvaluateService() *EvaluateService {
	return &EvaluateService{}
}

// Evaluate projects ls onto a local metric plane and scores every interior
// vertex. Polylines under four vertices are returned with no scores.
func (s *EvaluateService) Evaluate(ctx context.Context, ls orb.LineString) (*domain.Evaluation, error) {
	_, span := telemetry.Tracer().Start(ctx, telemetry.SpanEvaluate)
	defer span.End()
	span.SetAttributes(attribute.Int("osmqa.vertices", len(ls)))

	if len(ls) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points, got %d", domain.ErrInvalidGeometry, len(ls))
	}
	for i, p := range ls {
		if p.Lat() < -90 || p.Lat() > 90 || p.Lon() < -180 || p.Lon() > 180 {
			return nil, fmt.Errorf("%w: point %d out of range", domain.ErrInvalidGeometry, i)
		}
	}

	ev := &domain.Evaluation{
		Eligible:     curvature.Eligible(ls),
		LengthMeters: geo.LengthHaversine(ls),
		Threshold:    curvature.Threshold,
		Bounds:       domain.BoundsOf(ls),
		Vertices:     []domain.VertexEvaluation{},
	}
	if !ev.Eligible {
		return ev, nil
	}

	projected := geospatial.NewLocalProjector(ls).LineString(ls)
	for _, vs := range curvature.Scan(projected) {
		ev.Vertices = append(ev.Vertices, domain.VertexEvaluation{
			Index:    vs.Index,
			Position: domain.GeoPointFromOrb(ls[vs.Index]),
			Score:    vs.Score,
			Flagged:  vs.Flagged,
		})
		if vs.Score > ev.MaxScore {
			ev.MaxScore = vs.Score
		}
	}
	return ev, nil
}
