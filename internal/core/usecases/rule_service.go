package usecases

import (
	"github.com/samirrijal/osmqa/internal/core/domain"
	"github.com/samirrijal/osmqa/internal/core/ports"
	"github.com/samirrijal/osmqa/internal/core/rules"
)

// RuleView is a rule with its title rendered in the caller's language.
type RuleView struct {
	domain.Rule
	Title string `json:"title"`
}

// RuleService exposes the rule table.
type RuleService struct {
	rules *rules.Registry
	msgs  ports.MessageFormatter
}

// NewRuleService creates a new RuleService.
func NewRuleService(registry *rules.Registry, msgs ports.MessageFormatter) *RuleService {
	return &RuleService{rules: registry, msgs: msgs}
}

// List returns every rule ordered by class.
func (s *RuleService) List(lang string) []RuleView {
	all := s.rules.All()
	out := make([]RuleView, len(all))
	for i, r := range all {
		out[i] = s.view(lang, r)
	}
	return out
}

// Get returns the rule of class.
func (s *RuleService) Get(lang string, class int) (*RuleView, error) {
	r, err := s.rules.Get(class)
	if err != nil {
		return nil, err
	}
	v := s.view(lang, r)
	return &v, nil
}

func (s *RuleService) view(lang string, r domain.Rule) RuleView {
	return RuleView{Rule: r, Title: s.msgs.Title(lang, r.Key)}
}
