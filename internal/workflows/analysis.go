package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/osmqa/internal/core/domain"
	"github.com/samirrijal/osmqa/internal/core/usecases"
)

// WorkflowID is the Temporal workflow id of a run request. Reusing the
// request id makes redelivered requests start at most one workflow.
func WorkflowID(req domain.RunRequest) string {
	return "analysis-" + req.ID
}

// AnalysisWorkflow records a run, analyses each selected rule as its own
// activity, then closes the run. A failing rule stops the run; the run
// record is still closed as failed before the workflow returns the error.
func AnalysisWorkflow(ctx workflow.Context, req domain.RunRequest) (*domain.Run, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting analysis workflow", "runID", req.ID, "mode", req.Mode)

	short := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})
	long := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 30 * time.Second,
			MaximumAttempts: 2,
		},
	})

	// Step 1: record the run
	var run domain.Run
	if err := workflow.ExecuteActivity(short, "StartRun", req).Get(short, &run); err != nil {
		return nil, err
	}

	// Step 2: one activity per rule, in class order
	var (
		results []usecases.RuleResult
		failure string
		ruleErr error
	)
	for _, class := range run.Classes {
		var res usecases.RuleResult
		if err := workflow.ExecuteActivity(long, "AnalyseRule", run.ID, class, run.Mode).Get(long, &res); err != nil {
			logger.Warn("rule failed, closing run", "class", class, "error", err)
			failure = fmt.Sprintf("class %d: %v", class, err)
			ruleErr = err
			break
		}
		results = append(results, res)
	}

	// Step 3: close the run, also after a failure
	var finished domain.Run
	if err := workflow.ExecuteActivity(short, "FinishRun", run.ID, results, failure).Get(short, &finished); err != nil {
		return nil, err
	}
	if ruleErr != nil {
		return &finished, ruleErr
	}

	logger.Info("Analysis workflow finished", "runID", finished.ID, "issues", finished.IssuesFound)
	return &finished, nil
}
