package usecases_test

import (
	"context"
	"strings"
	"sync"

	"github.com/samirrijal/osmqa/internal/core/domain"
)

// --- Mock WayRepository ---

type mockWayRepo struct {
	byKey map[string][]domain.Way
	err   error

	mu    sync.Mutex
	modes []domain.AnalysisMode
}

func (m *mockWayRepo) StreamCandidates(ctx context.Context, rule domain.Rule, mode domain.AnalysisMode, fn func(domain.Way) error) error {
	m.mu.Lock()
	m.modes = append(m.modes, mode)
	m.mu.Unlock()

	for _, w := range m.byKey[rule.Key] {
		if err := fn(w); err != nil {
			return err
		}
	}
	return m.err
}

// --- Mock WaterMask ---

type mockWaterMask struct {
	insideFn func(points []domain.GeoPoint) ([]bool, error)
	calls    int
}

func (m *mockWaterMask) InsideWater(ctx context.Context, points []domain.GeoPoint) ([]bool, error) {
	m.calls++
	if m.insideFn != nil {
		return m.insideFn(points)
	}
	return make([]bool, len(points)), nil
}

// --- Mock IssueRepository ---

type mockIssueRepo struct {
	saved   []domain.Issue
	saveErr error

	getByIDFn func(ctx context.Context, id string) (*domain.Issue, error)
	listFn    func(ctx context.Context, f domain.IssueFilter) ([]domain.Issue, int, error)
	listCalls int
}

func (m *mockIssueRepo) SaveBatch(ctx context.Context, issues []domain.Issue) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, issues...)
	return nil
}

func (m *mockIssueRepo) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockIssueRepo) List(ctx context.Context, f domain.IssueFilter) ([]domain.Issue, int, error) {
	m.listCalls++
	if m.listFn != nil {
		return m.listFn(ctx, f)
	}
	return nil, 0, nil
}

// --- Mock RunRepository ---

type mockRunRepo struct {
	runs    map[string]domain.Run
	creates int
	updates int
	limit   int
}

func newMockRunRepo() *mockRunRepo {
	return &mockRunRepo{runs: make(map[string]domain.Run)}
}

func (m *mockRunRepo) Create(ctx context.Context, run *domain.Run) error {
	m.creates++
	if _, ok := m.runs[run.ID]; !ok {
		m.runs[run.ID] = *run
	}
	return nil
}

func (m *mockRunRepo) Update(ctx context.Context, run *domain.Run) error {
	if _, ok := m.runs[run.ID]; !ok {
		return domain.ErrNotFound
	}
	m.updates++
	m.runs[run.ID] = *run
	return nil
}

func (m *mockRunRepo) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	r, ok := m.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (m *mockRunRepo) List(ctx context.Context, limit int) ([]domain.Run, error) {
	m.limit = limit
	out := make([]domain.Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu        sync.Mutex
	issues    []domain.Issue
	requests  []domain.RunRequest
	completed []domain.Run
	err       error
}

func (m *mockPublisher) PublishIssue(ctx context.Context, issue *domain.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issues = append(m.issues, *issue)
	return m.err
}

func (m *mockPublisher) PublishRunRequest(ctx context.Context, req *domain.RunRequest) error {
	if m.err != nil {
		return m.err
	}
	m.requests = append(m.requests, *req)
	return nil
}

func (m *mockPublisher) PublishRunCompleted(ctx context.Context, run *domain.Run) error {
	m.completed = append(m.completed, *run)
	return m.err
}

// --- Mock CacheService ---

type mockCache struct {
	data    map[string][]byte
	ttls    map[string]int
	deleted []string
	setErr  error
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte), ttls: make(map[string]int)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *mockCache) DeletePrefix(ctx context.Context, prefix string) error {
	m.deleted = append(m.deleted, prefix)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}
