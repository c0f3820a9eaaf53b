// Package rules holds the table of tag rules the approximate-geometry
// analyser runs, keyed by issue class.
package rules

import (
	"fmt"
	"sort"

	"github.com/paulmach/osm"

	"github.com/samirrijal/osmqa/internal/core/domain"
)

// Item is the issue item shared by every approximate-geometry class.
const Item = 1190

// Default classes.
const (
	ClassRailway  = 10
	ClassWaterway = 20
	ClassHighway  = 30
)

// DefaultHighways is used when the configuration does not override it.
var DefaultHighways = []string{"motorway", "trunk", "primary", "secondary"}

// Metadata is attached to every rule of this analyser.
func Metadata() domain.IssueClass {
	return domain.IssueClass{
		Item:  Item,
		Level: 3,
		Tags:  []string{"geom", "highway", "railway", "fix:imagery"},
		Detail: "Geometry seems to be draw crudely, there is a discrepancy between the\n" +
			"drawing and the real way especially in the curve.",
		Fix: "After checking orthophotos, add nodes or move existing nodes.",
		Trap: "On service ways, train stations, train workshops that may be either a\n" +
			"false positive",
		Example: "![](https://wiki.openstreetmap.org/w/images/9/9d/Osmose-eg-error-1190.png)\n\n" +
			"`railway=rail` crudely drawn.",
	}
}

// Registry maps issue classes to rules. It is read-only after construction
// and safe for concurrent use.
type Registry struct {
	byClass map[int]domain.Rule
	classes []int
}

// New builds a registry, rejecting duplicate classes and empty selectors.
func New(rules ...domain.Rule) (*Registry, error) {
	r := &Registry{byClass: make(map[int]domain.Rule, len(rules))}
	for _, rule := range rules {
		if rule.Key == "" {
			return nil, fmt.Errorf("rule %d: empty tag key", rule.Class)
		}
		if len(rule.Values) == 0 {
			return nil, fmt.Errorf("rule %d: no tag values", rule.Class)
		}
		if _, dup := r.byClass[rule.Class]; dup {
			return nil, fmt.Errorf("rule %d: duplicate class", rule.Class)
		}
		r.byClass[rule.Class] = rule
		r.classes = append(r.classes, rule.Class)
	}
	sort.Ints(r.classes)
	return r, nil
}

// Defaults returns the railway, waterway and highway rules. highways
// replaces DefaultHighways when non-empty.
func Defaults(highways []string) *Registry {
	if len(highways) == 0 {
		highways = DefaultHighways
	}
	r, err := New(
		domain.Rule{Class: ClassRailway, Key: "railway", Values: []string{"rail"}, Meta: Metadata()},
		domain.Rule{Class: ClassWaterway, Key: "waterway", Values: []string{"river"}, ExcludeWater: true, Meta: Metadata()},
		domain.Rule{Class: ClassHighway, Key: "highway", Values: append([]string(nil), highways...), Meta: Metadata()},
	)
	if err != nil {
		// The default table is static.
		panic(err)
	}
	return r
}

// Get returns the rule registered for class.
func (r *Registry) Get(class int) (domain.Rule, error) {
	rule, ok := r.byClass[class]
	if !ok {
		return domain.Rule{}, fmt.Errorf("%w: %d", domain.ErrUnknownRule, class)
	}
	return rule, nil
}

// All returns every rule ordered by class.
func (r *Registry) All() []domain.Rule {
	out := make([]domain.Rule, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, r.byClass[c])
	}
	return out
}

// Select returns the rules for classes, or every rule when classes is empty.
func (r *Registry) Select(classes []int) ([]domain.Rule, error) {
	if len(classes) == 0 {
		return r.All(), nil
	}
	out := make([]domain.Rule, 0, len(classes))
	for _, c := range classes {
		rule, err := r.Get(c)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

// Match returns the first rule, by class, whose selector matches tags.
func (r *Registry) Match(tags osm.Tags) (domain.Rule, bool) {
	for _, c := range r.classes {
		if rule := r.byClass[c]; rule.Matches(tags) {
			return rule, true
		}
	}
	return domain.Rule{}, false
}
