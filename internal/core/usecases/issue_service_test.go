package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/osmqa/internal/core/domain"
	"github.com/samirrijal/osmqa/internal/core/usecases"
)

func TestIssueService_List_Caches(t *testing.T) {
	repo := &mockIssueRepo{
		listFn: func(ctx context.Context, f domain.IssueFilter) ([]domain.Issue, int, error) {
			if f.Class != 20 || f.Limit != 50 {
				t.Errorf("unexpected filter %+v", f)
			}
			return []domain.Issue{{ID: "a", Class: 20}, {ID: "b", Class: 20}}, 7, nil
		},
	}
	cache := newMockCache()
	svc := usecases.NewIssueService(repo, cache)

	for range 2 {
		page, err := svc.List(context.Background(), domain.IssueFilter{Class: 20})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page.Issues) != 2 || page.Total != 7 {
			t.Errorf("unexpected page %+v", page)
		}
	}
	if repo.listCalls != 1 {
		t.Errorf("expected second call from cache, repo called %d times", repo.listCalls)
	}
}

func TestIssueService_List_ClampsLimit(t *testing.T) {
	var got domain.IssueFilter
	repo := &mockIssueRepo{
		listFn: func(ctx context.Context, f domain.IssueFilter) ([]domain.Issue, int, error) {
			got = f
			return nil, 0, nil
		},
	}
	svc := usecases.NewIssueService(repo, nil)

	page, err := svc.List(context.Background(), domain.IssueFilter{Limit: 10000, Offset: -3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Limit != 500 || got.Offset != 0 {
		t.Errorf("expected limit 500 offset 0, got %+v", got)
	}
	if page.Limit != 500 {
		t.Errorf("expected page limit 500, got %d", page.Limit)
	}
	if page.Issues == nil {
		t.Error("empty listing should be a non-nil slice")
	}
}

func TestIssueService_GetByID(t *testing.T) {
	repo := &mockIssueRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Issue, error) {
			if id != "abc" {
				return nil, domain.ErrNotFound
			}
			return &domain.Issue{ID: "abc", WayID: 12}, nil
		},
	}
	svc := usecases.NewIssueService(repo, newMockCache())

	is, err := svc.GetByID(context.Background(), "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if is.WayID != 12 {
		t.Errorf("expected way 12, got %d", is.WayID)
	}

	if _, err := svc.GetByID(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIssueService_CacheTTL(t *testing.T) {
	repo := &mockIssueRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Issue, error) {
			return &domain.Issue{ID: id, Class: 10}, nil
		},
	}
	cache := newMockCache()
	svc := usecases.NewIssueService(repo, cache)

	if _, err := svc.GetByID(context.Background(), "abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.List(context.Background(), domain.IssueFilter{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cache.ttls) != 2 {
		t.Fatalf("expected 2 cached entries, got %v", cache.ttls)
	}
	for key, ttl := range cache.ttls {
		if ttl != 300 {
			t.Errorf("%s cached for %ds, want 300s", key, ttl)
		}
	}
}

func TestIssueService_CacheWriteFailure(t *testing.T) {
	repo := &mockIssueRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Issue, error) {
			return &domain.Issue{ID: id}, nil
		},
	}
	cache := newMockCache()
	cache.setErr = errors.New("valkey unavailable")
	svc := usecases.NewIssueService(repo, cache)

	issue, err := svc.GetByID(context.Background(), "abc")
	if err != nil {
		t.Fatalf("a failed cache write must not fail the request: %v", err)
	}
	if issue.ID != "abc" {
		t.Errorf("unexpected issue %+v", issue)
	}
}
