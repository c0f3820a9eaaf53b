// Command analyser runs the approximate-geometry rules once against the
// osmosis way tables and exits.
//
//	analyser [-publish] <full|diff> [class,...]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

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
)

func main() {
	publish := flag.Bool("publish", false, "publish issues and the finished run on NATS")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: analyser [-publish] <full|diff> [class,...]")
		flag.PrintDefaults()
	}
	flag.Parse()

	req, err := parseArgs(flag.Args())
	if err != nil {
		flag.Usage()
		log.Fatal(err)
	}

	cfg, err := config.Load("osmqa-analyser")
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

	opts := []usecases.AnalysisOption{
		usecases.WithWorkers(cfg.Analyser.Workers),
		usecases.WithLanguage(cfg.Analyser.Language),
	}
	if cache, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Namespace); err != nil {
		slog.Warn("valkey unavailable, cached listings will expire on their own", "error", err)
	} else {
		defer cache.Close()
		opts = append(opts, usecases.WithCache(cache))
	}
	if *publish {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			log.Fatalf("nats: %v", err)
		}
		defer pub.Close()
		opts = append(opts, usecases.WithPublisher(pub))
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

	run, runErr := svc.Run(ctx, req)
	if run != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(run)
	}
	if runErr != nil {
		slog.Error("analysis failed", "error", runErr)
		db.Close()
		os.Exit(1)
	}
}

// parseArgs turns "<mode> [class,...]" into a run request.
func parseArgs(args []string) (domain.RunRequest, error) {
	if len(args) == 0 || len(args) > 2 {
		return domain.RunRequest{}, fmt.Errorf("expected a mode and an optional class list, got %d arguments", len(args))
	}
	mode, err := domain.ParseMode(args[0])
	if err != nil {
		return domain.RunRequest{}, err
	}
	req := domain.RunRequest{Mode: mode}
	if len(args) == 2 {
		for _, part := range strings.Split(args[1], ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			class, err := strconv.Atoi(part)
			if err != nil {
				return domain.RunRequest{}, fmt.Errorf("class %q: %w", part, err)
			}
			req.Classes = append(req.Classes, class)
		}
	}
	return req, nil
}
