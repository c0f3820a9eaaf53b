package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// AnalysisMode selects which way table an analysis reads.
type AnalysisMode string

const (
	// ModeFull scans every way of the extract.
	ModeFull AnalysisMode = "full"
	// ModeDiff scans only the ways touched by the last replication diff.
	ModeDiff AnalysisMode = "diff"
)

// ParseMode validates s as an AnalysisMode. The empty string means full.
func ParseMode(s string) (AnalysisMode, error) {
	switch AnalysisMode(s) {
	case "", ModeFull:
		return ModeFull, nil
	case ModeDiff:
		return ModeDiff, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Way is an OSM way loaded for analysis.
type Way struct {
	ID   osm.WayID
	Tags osm.Tags
	// Projected is the geometry in the analyser's metric projection. It is
	// nil when the analyser projects the way itself.
	Projected orb.LineString
	// Geographic is the same geometry in WGS 84, used for reporting.
	Geographic orb.LineString
}

// IssueClass is the descriptive metadata attached to every issue of a rule.
type IssueClass struct {
	Item    int      `json:"item"`
	Level   int      `json:"level"`
	Tags    []string `json:"tags"`
	Detail  string   `json:"detail"`
	Fix     string   `json:"fix"`
	Trap    string   `json:"trap"`
	Example string   `json:"example"`
}

// Rule selects ways by one tag key and a set of accepted values.
type Rule struct {
	Class        int        `json:"class"`
	Key          string     `json:"key"`
	Values       []string   `json:"values"`
	ExcludeWater bool       `json:"exclude_water"`
	Meta         IssueClass `json:"meta"`
}

// Matches reports whether tags carry the rule's key with an accepted value.
func (r Rule) Matches(tags osm.Tags) bool {
	if !tags.HasTag(r.Key) {
		return false
	}
	return slices.Contains(r.Values, tags.Find(r.Key))
}

// Issue is one flagged vertex.
type Issue struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Class     int       `json:"class"`
	Subclass  int       `json:"subclass"`
	WayID     osm.WayID `json:"way_id"`
	Vertex    int       `json:"vertex"` // 1-based, as ST_PointN
	Position  GeoPoint  `json:"position"`
	TagValue  string    `json:"tag_value"`
	Deviation float64   `json:"deviation"` // metres
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// IssueFilter narrows issue listings. Zero values mean "any".
type IssueFilter struct {
	Class  int
	RunID  string
	Offset int
	Limit  int
}

// RunStatus is the lifecycle state of an analysis run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run records one execution of the analyser.
type Run struct {
	ID          string       `json:"id"`
	Mode        AnalysisMode `json:"mode"`
	Classes     []int        `json:"classes"`
	Status      RunStatus    `json:"status"`
	WaysScanned int          `json:"ways_scanned"`
	IssuesFound int          `json:"issues_found"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
}

// RunRequest asks the worker to start a run.
type RunRequest struct {
	ID          string       `json:"id"`
	Mode        AnalysisMode `json:"mode"`
	Classes     []int        `json:"classes,omitempty"`
	RequestedAt time.Time    `json:"requested_at"`
}

// VertexEvaluation is the score of one vertex of an ad-hoc geometry.
type VertexEvaluation struct {
	Index    int      `json:"index"`
	Position GeoPoint `json:"position"`
	Score    float64  `json:"score"`
	Flagged  bool     `json:"flagged"`
}

// Evaluation is the result of scoring an ad-hoc geometry.
type Evaluation struct {
	Eligible     bool               `json:"eligible"`
	LengthMeters float64            `json:"length_m"`
	MaxScore     float64            `json:"max_score"`
	Threshold    float64            `json:"threshold"`
	Bounds       Bounds             `json:"bounds"`
	Vertices     []VertexEvaluation `json:"vertices"`
}
