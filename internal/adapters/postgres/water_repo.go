package postgres

import (
	"context"
	"fmt"

	"github.com/samirrijal/osmqa/internal/core/domain"
)

// StandingWater lists the water=* values that mask river issues.
var StandingWater = []string{"lake", "lagoon", "basin", "reservoir"}

const waterChunk = 1000

// WaterRepo implements ports.WaterMask against natural=water polygons of
// the full ways table.
type WaterRepo struct {
	db *DB
}

// NewWaterRepo creates a new WaterRepo.
func NewWaterRepo(db *DB) *WaterRepo {
	return &WaterRepo{db: db}
}

// InsideWater implements ports.WaterMask. The answer at index i is for
// points[i].
func (r *WaterRepo) InsideWater(ctx context.Context, points []domain.GeoPoint) ([]bool, error) {
	out := make([]bool, 0, len(points))
	for start := 0; start < len(points); start += waterChunk {
		end := min(start+waterChunk, len(points))
		part, err := r.insideWater(ctx, points[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	return out, nil
}

func (r *WaterRepo) insideWater(ctx context.Context, points []domain.GeoPoint) ([]bool, error) {
	lons := make([]float64, len(points))
	lats := make([]float64, len(points))
	for i, p := range points {
		lons[i], lats[i] = p.Lon, p.Lat
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT p.ord, EXISTS (
			SELECT 1 FROM ways w
			WHERE w.is_polygon
			  AND w.tags ? 'natural' AND w.tags -> 'natural' = 'water'
			  AND w.tags ? 'water' AND w.tags -> 'water' = ANY($3)
			  AND w.linestring && p.geom
			  AND ST_Intersects(ST_MakePolygon(w.linestring), p.geom)
		)
		FROM (
			SELECT ord, ST_SetSRID(ST_MakePoint(lon, lat), 4326) AS geom
			FROM unnest($1::float8[], $2::float8[]) WITH ORDINALITY AS t(lon, lat, ord)
		) p
		ORDER BY p.ord
	`, lons, lats, StandingWater)
	if err != nil {
		return nil, fmt.Errorf("water mask: %w", err)
	}
	defer rows.Close()

	out := make([]bool, len(points))
	for rows.Next() {
		var (
			ord    int64
			inside bool
		)
		if err := rows.Scan(&ord, &inside); err != nil {
			return nil, err
		}
		if ord < 1 || int(ord) > len(points) {
			return nil, fmt.Errorf("water mask: ordinal %d out of range", ord)
		}
		out[ord-1] = inside
	}
	return out, rows.Err()
}
