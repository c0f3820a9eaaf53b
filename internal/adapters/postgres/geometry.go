package postgres

import (
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// decodeLineString parses a PostGIS EWKB linestring.
func decodeLineString(data []byte) (orb.LineString, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode ewkb: %w", err)
	}
	ls, ok := g.(*geom.LineString)
	if !ok {
		return nil, fmt.Errorf("decode ewkb: expected linestring, got %T", g)
	}

	out := make(orb.LineString, ls.NumCoords())
	for i := range out {
		c := ls.Coord(i)
		out[i] = orb.Point{c.X(), c.Y()}
	}
	return out, nil
}

// tagsFromHstore converts an hstore column into tags ordered by key.
// NULL values are dropped.
func tagsFromHstore(h pgtype.Hstore) osm.Tags {
	tags := make(osm.Tags, 0, len(h))
	for k, v := range h {
		if v == nil {
			continue
		}
		tags = append(tags, osm.Tag{Key: k, Value: *v})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Key < tags[j].Key })
	return tags
}
