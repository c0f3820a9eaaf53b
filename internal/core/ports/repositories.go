package ports

import (
	"context"

	"github.com/samirrijal/osmqa/internal/core/domain"
)

// WayRepository reads candidate ways from the osmosis database.
type WayRepository interface {
	// StreamCandidates calls fn, in way id order, for every way of the table
	// selected by mode that matches rule and has enough vertices to be scored.
	// Iteration stops at the first error returned by fn.
	StreamCandidates(ctx context.Context, rule domain.Rule, mode domain.AnalysisMode, fn func(domain.Way) error) error
}

// WaterMask tells whether points lie inside standing water polygons.
type WaterMask interface {
	InsideWater(ctx context.Context, points []domain.GeoPoint) ([]bool, error)
}

// IssueRepository persists analysis issues.
type IssueRepository interface {
	SaveBatch(ctx context.Context, issues []domain.Issue) error
	GetByID(ctx context.Context, id string) (*domain.Issue, error)
	List(ctx context.Context, filter domain.IssueFilter) ([]domain.Issue, int, error)
}

// RunRepository persists analysis runs.
type RunRepository interface {
	Create(ctx context.Context, run *domain.Run) error
	Update(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id string) (*domain.Run, error)
	List(ctx context.Context, limit int) ([]domain.Run, error)
}
