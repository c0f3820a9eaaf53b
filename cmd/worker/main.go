// Command worker consumes queued run requests from NATS and executes them
// as Temporal analysis workflows, hosting the workflow and its activities.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/osmqa/internal/adapters/nats"
	"github.com/samirrijal/osmqa/internal/adapters/postgres"
	"github.com/samirrijal/osmqa/internal/adapters/valkey"
	"github.com/samirrijal/osmqa/internal/core/domain"
	"github.com/samirrijal/osmqa/internal/core/rules"
	"github.com/samirrijal/osmqa/internal/core/usecases"
	"github.com/samirrijal/osmqa/internal/pkg/config"
	"github.com/samirrijal/osmqa/internal/pkg/i18n"
	"github.com/samirrijal/osmqa/internal/pkg/logging"
	"github.com/samirrijal/osmqa/internal/pkg/telemetry"
	"github.com/samirrijal/osmqa/internal/workflows"
)

func main() {
	cfg, err := config.Load("osmqa-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN(), postgres.Options{
		MaxConns: int32(cfg.Database.MaxConns),
		Schema:   cfg.Analyser.Schema,
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	opts := []usecases.AnalysisOption{
		usecases.WithPublisher(pub),
		usecases.WithWorkers(cfg.Analyser.Workers),
		usecases.WithLanguage(cfg.Analyser.Language),
	}
	if cache, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Namespace); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		opts = append(opts, usecases.WithCache(cache))
	}

	svc := usecases.NewAnalysisService(
		postgres.NewWayRepo(db, cfg.Analyser.SRID),
		postgres.NewWaterRepo(db),
		postgres.NewIssueRepo(db),
		postgres.NewRunRepo(db),
		rules.Defaults(cfg.Analyser.Highway),
		i18n.New(),
		opts...,
	)

	// Temporal
	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer tc.Close()

	w := worker.New(tc, cfg.Temporal.TaskQueue, worker.Options{
		// Rules stream whole tables; a few at a time is plenty.
		MaxConcurrentActivityExecutionSize: 4,
	})
	w.RegisterWorkflow(workflows.AnalysisWorkflow)
	w.RegisterActivity(&workflows.AnalysisActivities{Analysis: svc})

	// NATS run requests start workflows
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	start := func(ctx context.Context, req *domain.RunRequest) error {
		return startWorkflow(ctx, tc, cfg.Temporal.TaskQueue, req)
	}
	if err := sub.SubscribeRunRequests(ctx, start); err != nil {
		log.Fatalf("subscribe run requests: %v", err)
	}

	slog.Info("analysis worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Start(); err != nil {
		log.Fatalf("worker: %v", err)
	}
	<-ctx.Done()
	w.Stop()
	slog.Info("analysis worker stopped")
}

// startWorkflow starts the analysis workflow for req. A request whose
// workflow already exists is treated as delivered.
func startWorkflow(ctx context.Context, tc client.Client, queue string, req *domain.RunRequest) error {
	run, err := tc.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                    workflows.WorkflowID(*req),
		TaskQueue:             queue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}, workflows.AnalysisWorkflow, *req)

	var dup *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &dup) {
		slog.Info("run request already started", "run_id", req.ID)
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("analysis workflow started", "run_id", req.ID, "workflow_id", run.GetID(), "temporal_run_id", run.GetRunID())
	return nil
}
