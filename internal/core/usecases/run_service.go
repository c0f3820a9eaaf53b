package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/osmqa/internal/core/domain"
	"github.com/samirrijal/osmqa/internal/core/ports"
	"github.com/samirrijal/osmqa/internal/core/rules"
)

// RunService queues analysis runs and reports on past ones.
type RunService struct {
	runs      ports.RunRepository
	rules     *rules.Registry
	publisher ports.EventPublisher
}

// NewRunService creates a new RunService.
func NewRunService(runs ports.RunRepository, registry *rules.Registry, publisher ports.EventPublisher) *RunService {
	return &RunService{runs: runs, rules: registry, publisher: publisher}
}

// Request validates and queues a run. The worker picks it up from the
// broker; the returned request carries the id the run will be stored under.
func (s *RunService) Request(ctx context.Context, mode string, classes []int) (*domain.RunRequest, error) {
	m, err := domain.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	if _, err := s.rules.Select(classes); err != nil {
		return nil, err
	}
	if s.publisher == nil {
		return nil, fmt.Errorf("run queue: %w", domain.ErrUnavailable)
	}

	req := &domain.RunRequest{
		ID:          uuid.NewString(),
		Mode:        m,
		Classes:     classes,
		RequestedAt: time.Now().UTC(),
	}
	if err := s.publisher.PublishRunRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("publish run request: %w", err)
	}
	return req, nil
}

// Get returns a single run.
func (s *RunService) Get(ctx context.Context, id string) (*domain.Run, error) {
	return s.runs.GetByID(ctx, id)
}

// List returns the most recent runs first.
func (s *RunService) List(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.runs.List(ctx, limit)
}
