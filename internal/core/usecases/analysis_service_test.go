package usecases_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/osmqa/internal/core/domain"
	"github.com/samirrijal/osmqa/internal/core/rules"
	"github.com/samirrijal/osmqa/internal/core/usecases"
	"github.com/samirrijal/osmqa/internal/pkg/i18n"
)

// kinked has a single vertex (index 3) above the threshold.
var kinked = orb.LineString{{0, 0}, {100, 0}, {200, 10}, {300, 100}, {300, 300}}

func geographic(n int) orb.LineString {
	ls := make(orb.LineString, n)
	for i := range ls {
		ls[i] = orb.Point{2.35 + float64(i)*0.001, 48.85 + float64(i)*0.0005}
	}
	return ls
}

func way(id osm.WayID, key, value string, projected orb.LineString) domain.Way {
	return domain.Way{
		ID:         id,
		Tags:       osm.Tags{{Key: key, Value: value}},
		Projected:  projected,
		Geographic: geographic(len(projected)),
	}
}

// wgs84Way lays metres out as lon/lat around (lon0, lat0) and leaves the
// projection to the analyser.
func wgs84Way(id osm.WayID, lon0, lat0 float64, metres orb.LineString) domain.Way {
	const metresPerDegree = 6378137 * math.Pi / 180
	geo := make(orb.LineString, len(metres))
	for i, p := range metres {
		geo[i] = orb.Point{
			lon0 + p[0]/(metresPerDegree*math.Cos(lat0*math.Pi/180)),
			lat0 + p[1]/metresPerDegree,
		}
	}
	return domain.Way{
		ID:         id,
		Tags:       osm.Tags{{Key: "railway", Value: "rail"}},
		Geographic: geo,
	}
}

type analysisFixture struct {
	ways   *mockWayRepo
	water  *mockWaterMask
	issues *mockIssueRepo
	runs   *mockRunRepo
	events *mockPublisher
	cache  *mockCache
	svc    *usecases.AnalysisService
}

func newAnalysisFixture(byKey map[string][]domain.Way) *analysisFixture {
	f := &analysisFixture{
		ways:   &mockWayRepo{byKey: byKey},
		water:  &mockWaterMask{},
		issues: &mockIssueRepo{},
		runs:   newMockRunRepo(),
		events: &mockPublisher{},
		cache:  newMockCache(),
	}
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f.svc = usecases.NewAnalysisService(
		f.ways, f.water, f.issues, f.runs,
		rules.Defaults(nil), i18n.New(),
		usecases.WithPublisher(f.events),
		usecases.WithCache(f.cache),
		usecases.WithWorkers(4),
		usecases.WithClock(func() time.Time { return fixed }),
	)
	return f
}

func TestAnalysisService_RunRule_FlagsVertex(t *testing.T) {
	w := way(42, "railway", "rail", kinked)
	f := newAnalysisFixture(map[string][]domain.Way{"railway": {w}})

	res, err := f.svc.RunRule(context.Background(), "run-1", rules.ClassRailway, domain.ModeFull)
	require.NoError(t, err)

	assert.Equal(t, usecases.RuleResult{Class: 10, WaysScanned: 1, Issues: 1}, res)
	require.Len(t, f.issues.saved, 1)

	is := f.issues.saved[0]
	assert.Equal(t, "run-1", is.RunID)
	assert.Equal(t, 10, is.Class)
	assert.Equal(t, osm.WayID(42), is.WayID)
	assert.Equal(t, 4, is.Vertex, "vertex is 1-based")
	assert.Equal(t, is.Vertex, is.Subclass)
	assert.Equal(t, "rail", is.TagValue)
	assert.InDelta(t, 44.5362404707371, is.Deviation, 1e-9)
	assert.Equal(t, "rail deviation of 45m", is.Text)
	assert.Equal(t, domain.GeoPointFromOrb(w.Geographic[3]), is.Position)
	assert.Equal(t, usecases.IssueID("run-1", 10, 42, 4), is.ID)

	assert.Len(t, f.events.issues, 1)
	assert.Equal(t, []domain.AnalysisMode{domain.ModeFull}, f.ways.modes)
	assert.Zero(t, f.water.calls, "railway rule does not consult the water mask")
}

func TestAnalysisService_RunRule_ScoresIndependentOfLatitude(t *testing.T) {
	f := newAnalysisFixture(map[string][]domain.Way{"railway": {
		wgs84Way(1, 9.0, 0.0, kinked),
		wgs84Way(2, 10.7, 60.0, kinked),
		wgs84Way(3, -68.3, -54.8, kinked),
	}})

	res, err := f.svc.RunRule(context.Background(), "run-1", rules.ClassRailway, domain.ModeFull)
	require.NoError(t, err)
	require.Equal(t, 3, res.Issues)

	for _, is := range f.issues.saved {
		assert.Equal(t, 4, is.Vertex)
		assert.InDelta(t, 44.536, is.Deviation, 0.05, "way %d", is.WayID)
	}
	assert.InDelta(t, f.issues.saved[0].Deviation, f.issues.saved[1].Deviation, 0.05)
}

func TestAnalysisService_RunRule_RepeatedAttemptKeepsIssueIDs(t *testing.T) {
	f := newAnalysisFixture(map[string][]domain.Way{"railway": {
		way(1, "railway", "rail", kinked),
		way(2, "railway", "tram", kinked),
	}})
	ctx := context.Background()

	_, err := f.svc.RunRule(ctx, "run-1", rules.ClassRailway, domain.ModeFull)
	require.NoError(t, err)
	first := make([]string, len(f.issues.saved))
	for i, is := range f.issues.saved {
		first[i] = is.ID
	}
	f.issues.saved = nil

	_, err = f.svc.RunRule(ctx, "run-1", rules.ClassRailway, domain.ModeFull)
	require.NoError(t, err)
	require.Len(t, f.issues.saved, len(first))
	for i, is := range f.issues.saved {
		assert.Equal(t, first[i], is.ID)
	}
	assert.NotEqual(t, first[0], first[1])

	f.issues.saved = nil
	_, err = f.svc.RunRule(ctx, "run-2", rules.ClassRailway, domain.ModeFull)
	require.NoError(t, err)
	assert.NotEqual(t, first[0], f.issues.saved[0].ID, "another run gets its own ids")
}

func TestAnalysisService_StartRun_Repeated(t *testing.T) {
	f := newAnalysisFixture(nil)
	ctx := context.Background()
	req := domain.RunRequest{ID: "run-7", Mode: domain.ModeDiff}

	first, err := f.svc.StartRun(ctx, req)
	require.NoError(t, err)
	again, err := f.svc.StartRun(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.Classes, again.Classes)
	assert.Equal(t, 2, f.runs.creates)
	assert.Len(t, f.runs.runs, 1)
}

func TestAnalysisService_RunRule_SkipsShortAndSmoothWays(t *testing.T) {
	smooth := orb.LineString{{0, 0}, {100, 0}, {200, 5}, {300, 15}, {400, 30}}
	short := orb.LineString{{0, 0}, {100, 0}, {100, 100}}
	f := newAnalysisFixture(map[string][]domain.Way{"highway": {
		way(1, "highway", "primary", smooth),
		way(2, "highway", "primary", short),
	}})

	res, err := f.svc.RunRule(context.Background(), "run-1", rules.ClassHighway, domain.ModeDiff)
	require.NoError(t, err)
	assert.Equal(t, 2, res.WaysScanned)
	assert.Zero(t, res.Issues)
	assert.Empty(t, f.issues.saved)
	assert.Equal(t, []domain.AnalysisMode{domain.ModeDiff}, f.ways.modes)
}

func TestAnalysisService_RunRule_ExcludesLakes(t *testing.T) {
	f := newAnalysisFixture(map[string][]domain.Way{"waterway": {
		way(7, "waterway", "river", kinked),
		way(8, "waterway", "river", kinked),
	}})
	f.water.insideFn = func(points []domain.GeoPoint) ([]bool, error) {
		out := make([]bool, len(points))
		out[0] = true
		return out, nil
	}

	res, err := f.svc.RunRule(context.Background(), "run-1", rules.ClassWaterway, domain.ModeFull)
	require.NoError(t, err)

	assert.Equal(t, 1, f.water.calls)
	assert.Equal(t, 1, res.Excluded)
	assert.Equal(t, 1, res.Issues)
	require.Len(t, f.issues.saved, 1)
	assert.Equal(t, osm.WayID(8), f.issues.saved[0].WayID)
}

func TestAnalysisService_RunRule_WaterMaskError(t *testing.T) {
	f := newAnalysisFixture(map[string][]domain.Way{"waterway": {way(7, "waterway", "river", kinked)}})
	f.water.insideFn = func(points []domain.GeoPoint) ([]bool, error) {
		return nil, errors.New("db down")
	}

	_, err := f.svc.RunRule(context.Background(), "run-1", rules.ClassWaterway, domain.ModeFull)
	require.Error(t, err)
	assert.Empty(t, f.issues.saved)
}

func TestAnalysisService_RunRule_OrdersIssues(t *testing.T) {
	var ways []domain.Way
	for _, id := range []osm.WayID{9, 3, 27, 1, 14} {
		ways = append(ways, way(id, "railway", "rail", kinked))
	}
	f := newAnalysisFixture(map[string][]domain.Way{"railway": ways})

	_, err := f.svc.RunRule(context.Background(), "run-1", rules.ClassRailway, domain.ModeFull)
	require.NoError(t, err)

	require.Len(t, f.issues.saved, 5)
	for i, want := range []osm.WayID{1, 3, 9, 14, 27} {
		assert.Equal(t, want, f.issues.saved[i].WayID)
	}
}

func TestAnalysisService_RunRule_SkipsMismatchedGeometry(t *testing.T) {
	w := way(5, "railway", "rail", kinked)
	w.Geographic = w.Geographic[:3]
	f := newAnalysisFixture(map[string][]domain.Way{"railway": {w}})

	res, err := f.svc.RunRule(context.Background(), "run-1", rules.ClassRailway, domain.ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 1, res.WaysScanned)
	assert.Zero(t, res.Issues)
}

func TestAnalysisService_RunRule_UnknownClass(t *testing.T) {
	f := newAnalysisFixture(nil)
	_, err := f.svc.RunRule(context.Background(), "run-1", 99, domain.ModeFull)
	assert.ErrorIs(t, err, domain.ErrUnknownRule)
}

func TestAnalysisService_Run(t *testing.T) {
	f := newAnalysisFixture(map[string][]domain.Way{
		"railway": {way(1, "railway", "rail", kinked)},
		"highway": {
			way(2, "highway", "trunk", kinked),
			way(3, "highway", "trunk", orb.LineString{{0, 0}, {1, 0}, {2, 0}, {3, 0}}),
		},
	})
	f.cache.data["issues:list:0::0:50"] = []byte("{}")

	run, err := f.svc.Run(context.Background(), domain.RunRequest{ID: "run-42", Mode: domain.ModeFull})
	require.NoError(t, err)

	assert.Equal(t, "run-42", run.ID)
	assert.Equal(t, []int{10, 20, 30}, run.Classes)
	assert.Equal(t, domain.RunSucceeded, run.Status)
	assert.Equal(t, 3, run.WaysScanned)
	assert.Equal(t, 2, run.IssuesFound)
	require.NotNil(t, run.FinishedAt)
	assert.Empty(t, run.Error)

	stored, _ := f.runs.GetByID(context.Background(), "run-42")
	assert.Equal(t, domain.RunSucceeded, stored.Status)
	assert.Equal(t, 1, f.runs.updates)

	assert.Equal(t, []string{"issues:"}, f.cache.deleted)
	assert.Empty(t, f.cache.data)
	require.Len(t, f.events.completed, 1)
	assert.Equal(t, "run-42", f.events.completed[0].ID)
}

func TestAnalysisService_Run_SelectedClasses(t *testing.T) {
	f := newAnalysisFixture(nil)

	run, err := f.svc.Run(context.Background(), domain.RunRequest{Mode: domain.ModeDiff, Classes: []int{30}})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID, "an id is generated when none is requested")
	assert.Equal(t, []int{30}, run.Classes)
	assert.Equal(t, domain.ModeDiff, run.Mode)
	assert.Equal(t, []domain.AnalysisMode{domain.ModeDiff}, f.ways.modes)
}

func TestAnalysisService_Run_StreamFailure(t *testing.T) {
	f := newAnalysisFixture(nil)
	f.ways.err = errors.New("connection reset")

	run, err := f.svc.Run(context.Background(), domain.RunRequest{ID: "run-x"})
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Contains(t, run.Error, "connection reset")
	assert.Len(t, f.ways.modes, 1, "the first failing rule stops the run")
}

func TestAnalysisService_Run_SaveFailure(t *testing.T) {
	f := newAnalysisFixture(map[string][]domain.Way{"railway": {way(1, "railway", "rail", kinked)}})
	f.issues.saveErr = errors.New("disk full")

	run, err := f.svc.Run(context.Background(), domain.RunRequest{ID: "run-y"})
	require.Error(t, err)
	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Empty(t, f.events.issues)
}

func TestAnalysisService_Run_InvalidRequest(t *testing.T) {
	f := newAnalysisFixture(nil)

	_, err := f.svc.Run(context.Background(), domain.RunRequest{Mode: "weekly"})
	assert.ErrorIs(t, err, domain.ErrInvalidMode)

	_, err = f.svc.Run(context.Background(), domain.RunRequest{Classes: []int{10, 11}})
	assert.ErrorIs(t, err, domain.ErrUnknownRule)

	assert.Empty(t, f.runs.runs)
}

func TestAnalysisService_FinishRun_UnknownRun(t *testing.T) {
	f := newAnalysisFixture(nil)
	_, err := f.svc.FinishRun(context.Background(), "missing", nil, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
