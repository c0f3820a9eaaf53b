package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/osm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/osmqa/internal/core/curvature"
	"github.com/samirrijal/osmqa/internal/core/domain"
	"github.com/samirrijal/osmqa/internal/core/ports"
	"github.com/samirrijal/osmqa/internal/core/rules"
	"github.com/samirrijal/osmqa/internal/pkg/geospatial"
	"github.com/samirrijal/osmqa/internal/pkg/metrics"
	"github.com/samirrijal/osmqa/internal/pkg/telemetry"
)

// issueNamespace seeds the name-based UUIDs of issues.
var issueNamespace = uuid.MustParse("ce648ae2-f4a7-437f-b900-0d3cdeb48078")

// IssueID identifies the issue at the 1-based vertex of a way within a run.
// A rule analysed again for the same run yields the same ids.
func IssueID(runID string, class int, wayID osm.WayID, vertex int) string {
	return uuid.NewSHA1(issueNamespace, fmt.Appendf(nil, "%s/%d/%d/%d", runID, class, wayID, vertex)).String()
}

// RuleResult summarises one rule over the way table.
type RuleResult struct {
	Class       int `json:"class"`
	WaysScanned int `json:"ways_scanned"`
	Issues      int `json:"issues"`
	Excluded    int `json:"excluded"`
}

// AnalysisOption configures an AnalysisService.
type AnalysisOption func(*AnalysisService)

// WithPublisher publishes every issue and finished run.
func WithPublisher(p ports.EventPublisher) AnalysisOption {
	return func(s *AnalysisService) { s.events = p }
}

// WithCache invalidates cached issue listings when a run finishes.
func WithCache(c ports.CacheService) AnalysisOption {
	return func(s *AnalysisService) { s.cache = c }
}

// WithWorkers bounds the number of ways scored concurrently.
func WithWorkers(n int) AnalysisOption {
	return func(s *AnalysisService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLanguage sets the language of stored issue texts.
func WithLanguage(lang string) AnalysisOption {
	return func(s *AnalysisService) { s.lang = lang }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) AnalysisOption {
	return func(s *AnalysisService) { s.now = now }
}

// AnalysisService runs the approximate-geometry rules over the way tables.
type AnalysisService struct {
	ways   ports.WayRepository
	water  ports.WaterMask
	issues ports.IssueRepository
	runs   ports.RunRepository
	rules  *rules.Registry
	msgs   ports.MessageFormatter
	events ports.EventPublisher
	cache  ports.CacheService

	workers int
	lang    string
	now     func() time.Time
	tracer  trace.Tracer
}

// NewAnalysisService creates a new AnalysisService. water may be nil when
// no rule excludes lakes.
func NewAnalysisService(
	ways ports.WayRepository,
	water ports.WaterMask,
	issues ports.IssueRepository,
	runs ports.RunRepository,
	registry *rules.Registry,
	msgs ports.MessageFormatter,
	opts ...AnalysisOption,
) *AnalysisService {
	s := &AnalysisService{
		ways:    ways,
		water:   water,
		issues:  issues,
		runs:    runs,
		rules:   registry,
		msgs:    msgs,
		workers: runtime.GOMAXPROCS(0),
		lang:    "en",
		now:     time.Now,
		tracer:  telemetry.Tracer(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run executes req synchronously: every selected rule in class order, then
// the run record is closed. The first failing rule stops the run.
func (s *AnalysisService) Run(ctx context.Context, req domain.RunRequest) (*domain.Run, error) {
	ctx, span := s.tracer.Start(ctx, telemetry.SpanRun)
	defer span.End()

	run, err := s.StartRun(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String(telemetry.AttrRunID, run.ID),
		attribute.String(telemetry.AttrMode, string(run.Mode)),
	)

	var (
		results []RuleResult
		runErr  error
	)
	for _, class := range run.Classes {
		res, err := s.RunRule(ctx, run.ID, class, run.Mode)
		results = append(results, res)
		if err != nil {
			runErr = err
			break
		}
	}

	failure := ""
	if runErr != nil {
		failure = runErr.Error()
	}
	finished, err := s.FinishRun(ctx, run.ID, results, failure)
	if err != nil {
		return nil, err
	}
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return finished, runErr
	}
	return finished, nil
}

// StartRun validates req and records a running Run. Starting a run whose id
// is already recorded keeps the existing record.
func (s *AnalysisService) StartRun(ctx context.Context, req domain.RunRequest) (*domain.Run, error) {
	mode, err := domain.ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}
	selected, err := s.rules.Select(req.Classes)
	if err != nil {
		return nil, err
	}

	classes := make([]int, len(selected))
	for i, r := range selected {
		classes[i] = r.Class
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	run := &domain.Run{
		ID:        id,
		Mode:      mode,
		Classes:   classes,
		Status:    domain.RunRunning,
		StartedAt: s.now(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	slog.InfoContext(ctx, "analysis run started", "run_id", id, "mode", mode, "classes", classes)
	return run, nil
}

// FinishRun totals results into the run record. A non-empty failure marks
// the run failed.
func (s *AnalysisService) FinishRun(ctx context.Context, runID string, results []RuleResult, failure string) (*domain.Run, error) {
	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	run.WaysScanned, run.IssuesFound = 0, 0
	for _, r := range results {
		run.WaysScanned += r.WaysScanned
		run.IssuesFound += r.Issues
	}
	finishedAt := s.now()
	run.FinishedAt = &finishedAt
	run.Status = domain.RunSucceeded
	run.Error = failure
	if failure != "" {
		run.Status = domain.RunFailed
	}

	if err := s.runs.Update(ctx, run); err != nil {
		return nil, fmt.Errorf("update run %s: %w", runID, err)
	}
	metrics.RunsTotal.WithLabelValues(string(run.Mode), string(run.Status)).Inc()

	if s.cache != nil {
		if err := s.cache.DeletePrefix(ctx, issueCachePrefix); err != nil {
			slog.WarnContext(ctx, "issue cache invalidation failed", "error", err)
		}
	}
	if s.events != nil {
		if err := s.events.PublishRunCompleted(ctx, run); err != nil {
			slog.WarnContext(ctx, "publish run completed failed", "run_id", run.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "analysis run finished",
		"run_id", run.ID, "status", run.Status,
		"ways", run.WaysScanned, "issues", run.IssuesFound,
		"duration", finishedAt.Sub(run.StartedAt).String())
	return run, nil
}

// RunRule scores every candidate way of class and stores the flagged
// vertices as issues of runID.
func (s *AnalysisService) RunRule(ctx context.Context, runID string, class int, mode domain.AnalysisMode) (RuleResult, error) {
	res := RuleResult{Class: class}

	rule, err := s.rules.Get(class)
	if err != nil {
		return res, err
	}

	ctx, span := s.tracer.Start(ctx, telemetry.SpanRule, trace.WithAttributes(
		attribute.String(telemetry.AttrRunID, runID),
		attribute.Int(telemetry.AttrClass, class),
		attribute.String(telemetry.AttrMode, string(mode)),
	))
	defer span.End()

	start := time.Now()
	label := metrics.ClassLabel(class)

	found, scanned, err := s.scan(ctx, runID, rule, mode)
	res.WaysScanned = scanned
	metrics.WaysScanned.WithLabelValues(label).Add(float64(scanned))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, fmt.Errorf("rule %d: scan ways: %w", class, err)
	}

	if rule.ExcludeWater && s.water != nil && len(found) > 0 {
		kept, err := s.excludeWater(ctx, found)
		if err != nil {
			span.RecordError(err)
			return res, fmt.Errorf("rule %d: water mask: %w", class, err)
		}
		res.Excluded = len(found) - len(kept)
		metrics.IssuesExcludedByWater.WithLabelValues(label).Add(float64(res.Excluded))
		found = kept
	}

	if len(found) > 0 {
		if err := s.issues.SaveBatch(ctx, found); err != nil {
			span.RecordError(err)
			return res, fmt.Errorf("rule %d: save issues: %w", class, err)
		}
		s.publish(ctx, found)
	}
	res.Issues = len(found)

	metrics.IssuesFound.WithLabelValues(label).Add(float64(res.Issues))
	metrics.RuleDuration.WithLabelValues(label, string(mode)).Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int(telemetry.AttrWaysScanned, scanned),
		attribute.Int(telemetry.AttrIssues, res.Issues),
	)

	slog.InfoContext(ctx, "rule analysed",
		"run_id", runID, "class", class, "key", rule.Key, "mode", mode,
		"ways", scanned, "issues", res.Issues, "excluded", res.Excluded,
		"duration", time.Since(start).String())
	return res, nil
}

// scan streams the candidates of rule and scores them on a bounded group of
// goroutines. Issues come back ordered by way and vertex.
func (s *AnalysisService) scan(ctx context.Context, runID string, rule domain.Rule, mode domain.AnalysisMode) ([]domain.Issue, int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	var (
		mu      sync.Mutex
		found   []domain.Issue
		scanned int
	)

	streamErr := s.ways.StreamCandidates(gctx, rule, mode, func(w domain.Way) error {
		scanned++
		g.Go(func() error {
			issues := s.score(runID, rule, w)
			if len(issues) == 0 {
				return nil
			}
			mu.Lock()
			found = append(found, issues...)
			mu.Unlock()
			return nil
		})
		return nil
	})
	if err := g.Wait(); err != nil && streamErr == nil {
		streamErr = err
	}
	if streamErr != nil {
		return nil, scanned, streamErr
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].WayID != found[j].WayID {
			return found[i].WayID < found[j].WayID
		}
		return found[i].Vertex < found[j].Vertex
	})
	return found, scanned, nil
}

func (s *AnalysisService) score(runID string, rule domain.Rule, w domain.Way) []domain.Issue {
	if w.Projected == nil {
		w.Projected = geospatial.NewLocalProjector(w.Geographic).LineString(w.Geographic)
	}
	if len(w.Geographic) != len(w.Projected) {
		slog.Warn("way geometries differ in length, skipped",
			"way_id", w.ID, "projected", len(w.Projected), "geographic", len(w.Geographic))
		return nil
	}

	flagged := curvature.Flagged(w.Projected)
	if len(flagged) == 0 {
		return nil
	}

	value := w.Tags.Find(rule.Key)
	createdAt := s.now()
	issues := make([]domain.Issue, 0, len(flagged))
	for _, vs := range flagged {
		vertex := vs.Index + 1
		issues = append(issues, domain.Issue{
			ID:        IssueID(runID, rule.Class, w.ID, vertex),
			RunID:     runID,
			Class:     rule.Class,
			Subclass:  vertex,
			WayID:     w.ID,
			Vertex:    vertex,
			Position:  domain.GeoPointFromOrb(w.Geographic[vs.Index]),
			TagValue:  value,
			Deviation: vs.Score,
			Text:      s.msgs.Deviation(s.lang, value, vs.Score),
			CreatedAt: createdAt,
		})
	}
	return issues
}

func (s *AnalysisService) excludeWater(ctx context.Context, found []domain.Issue) ([]domain.Issue, error) {
	ctx, span := s.tracer.Start(ctx, telemetry.SpanWaterFilter)
	defer span.End()

	points := make([]domain.GeoPoint, len(found))
	for i, is := range found {
		points[i] = is.Position
	}

	inside, err := s.water.InsideWater(ctx, points)
	if err != nil {
		return nil, err
	}
	if len(inside) != len(points) {
		return nil, fmt.Errorf("water mask returned %d answers for %d points", len(inside), len(points))
	}

	kept := found[:0:0]
	for i, is := range found {
		if !inside[i] {
			kept = append(kept, is)
		}
	}
	return kept, nil
}

func (s *AnalysisService) publish(ctx context.Context, issues []domain.Issue) {
	if s.events == nil {
		return
	}
	for i := range issues {
		if err := s.events.PublishIssue(ctx, &issues[i]); err != nil {
			slog.WarnContext(ctx, "publish issue failed", "issue_id", issues[i].ID, "error", err)
			return
		}
	}
}
