package telemetry

// Span and attribute names used for instrumentation.
const (
	TracerName = "github.com/samirrijal/osmqa"

	SpanRun         = "analysis.run"
	SpanRule        = "analysis.rule"
	SpanWaterFilter = "analysis.water_filter"
	SpanEvaluate    = "analysis.evaluate"

	AttrRunID       = "osmqa.run_id"
	AttrClass       = "osmqa.class"
	AttrMode        = "osmqa.mode"
	AttrWaysScanned = "osmqa.ways_scanned"
	AttrIssues      = "osmqa.issues"
)
