package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/samirrijal/osmqa/internal/core/domain"
	"github.com/samirrijal/osmqa/internal/core/ports"
	"github.com/samirrijal/osmqa/internal/pkg/metrics"
)

// issueCachePrefix namespaces every cached issue response. A finished run
// drops the whole namespace.
const issueCachePrefix = "issues:"

// issueCacheTTL is in seconds.
const issueCacheTTL = 300

const (
	defaultIssueLimit = 50
	maxIssueLimit     = 500
)

// IssuePage is one page of an issue listing.
type IssuePage struct {
	Issues []domain.Issue `json:"issues"`
	Total  int            `json:"total"`
	Offset int            `json:"offset"`
	Limit  int            `json:"limit"`
}

// IssueService serves stored issues.
type IssueService struct {
	issues ports.IssueRepository
	cache  ports.CacheService
}

// NewIssueService creates a new IssueService. cache may be nil.
func NewIssueService(issues ports.IssueRepository, cache ports.CacheService) *IssueService {
	return &IssueService{issues: issues, cache: cache}
}

// List returns a page of issues matching filter.
func (s *IssueService) List(ctx context.Context, filter domain.IssueFilter) (*IssuePage, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultIssueLimit
	}
	if filter.Limit > maxIssueLimit {
		filter.Limit = maxIssueLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	cacheKey := fmt.Sprintf("%slist:%d:%s:%d:%d", issueCachePrefix, filter.Class, filter.RunID, filter.Offset, filter.Limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var page IssuePage
			if err := json.Unmarshal(data, &page); err == nil {
				metrics.CacheHits.WithLabelValues("issues_list").Inc()
				return &page, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("issues_list").Inc()
	}

	issues, total, err := s.issues.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if issues == nil {
		issues = []domain.Issue{}
	}
	page := &IssuePage{Issues: issues, Total: total, Offset: filter.Offset, Limit: filter.Limit}

	s.store(ctx, cacheKey, page)
	return page, nil
}

// GetByID returns a single issue.
func (s *IssueService) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	cacheKey := issueCachePrefix + "id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var issue domain.Issue
			if err := json.Unmarshal(data, &issue); err == nil {
				metrics.CacheHits.WithLabelValues("issues_id").Inc()
				return &issue, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("issues_id").Inc()
	}

	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.store(ctx, cacheKey, issue)
	return issue, nil
}

func (s *IssueService) store(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.DebugContext(ctx, "issue cache encode failed", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, issueCacheTTL); err != nil {
		slog.DebugContext(ctx, "issue cache write failed", "key", key, "error", err)
	}
}
