package workflows

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/osmqa/internal/core/domain"
	"github.com/samirrijal/osmqa/internal/core/usecases"
)

// AnalysisActivities holds the activity implementations for the analysis
// workflow.
type AnalysisActivities struct {
	Analysis *usecases.AnalysisService
}

// StartRun validates the request and records a running Run.
func (a *AnalysisActivities) StartRun(ctx context.Context, req domain.RunRequest) (*domain.Run, error) {
	run, err := a.Analysis.StartRun(ctx, req)
	return run, classify(err)
}

// AnalyseRule scans the way table for one rule.
func (a *AnalysisActivities) AnalyseRule(ctx context.Context, runID string, class int, mode domain.AnalysisMode) (usecases.RuleResult, error) {
	activity.GetLogger(ctx).Info("analysing rule", "runID", runID, "class", class)
	res, err := a.Analysis.RunRule(ctx, runID, class, mode)
	return res, classify(err)
}

// FinishRun closes the run record.
func (a *AnalysisActivities) FinishRun(ctx context.Context, runID string, results []usecases.RuleResult, failure string) (*domain.Run, error) {
	run, err := a.Analysis.FinishRun(ctx, runID, results, failure)
	return run, classify(err)
}

// classify marks request errors as non-retryable.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInvalidMode),
		errors.Is(err, domain.ErrUnknownRule),
		errors.Is(err, domain.ErrNotFound):
		return temporal.NewNonRetryableApplicationError(err.Error(), "invalid_request", err)
	}
	return err
}
