package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/paulmach/osm"

	"github.com/samirrijal/osmqa/internal/core/curvature"
	"github.com/samirrijal/osmqa/internal/core/domain"
)

// WayRepo implements ports.WayRepository over an osmosis pgsnapshot schema.
type WayRepo struct {
	db   *DB
	srid int
}

// NewWayRepo creates a new WayRepo. With a non-zero srid candidate geometries
// are also transformed in SQL into that metric projection. With srid 0 only
// the WGS 84 geometry is loaded and the analyser projects each way itself.
func NewWayRepo(db *DB, srid int) *WayRepo {
	return &WayRepo{db: db, srid: srid}
}

func wayTable(mode domain.AnalysisMode) (string, error) {
	switch mode {
	case domain.ModeFull:
		return "ways", nil
	case domain.ModeDiff:
		return "touched_ways", nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrInvalidMode, mode)
}

// StreamCandidates implements ports.WayRepository.
func (r *WayRepo) StreamCandidates(ctx context.Context, rule domain.Rule, mode domain.AnalysisMode, fn func(domain.Way) error) error {
	table, err := wayTable(mode)
	if err != nil {
		return err
	}

	projection := "NULL::bytea"
	if r.srid != 0 {
		projection = fmt.Sprintf("ST_AsEWKB(ST_Transform(linestring, %d))", r.srid)
	}

	rows, err := r.db.Pool.Query(ctx, fmt.Sprintf(`
		SELECT id, tags, %s, ST_AsEWKB(linestring)
		FROM %s
		WHERE tags ? $1 AND tags -> $1 = ANY($2)
		  AND ST_NPoints(linestring) >= $3
		ORDER BY id
	`, projection, table), rule.Key, rule.Values, curvature.MinVertices)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id              int64
			tags            pgtype.Hstore
			projected, geog []byte
		)
		if err := rows.Scan(&id, &tags, &projected, &geog); err != nil {
			return err
		}

		w := domain.Way{ID: osm.WayID(id), Tags: tagsFromHstore(tags)}
		if projected != nil {
			if w.Projected, err = decodeLineString(projected); err != nil {
				return fmt.Errorf("way %d: %w", id, err)
			}
		}
		if w.Geographic, err = decodeLineString(geog); err != nil {
			return fmt.Errorf("way %d: %w", id, err)
		}
		if err := fn(w); err != nil {
			return err
		}
	}
	return rows.Err()
}
