package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/osmqa/internal/core/usecases"
)

// Pinger is a backing service the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Rules    *usecases.RuleService
	Issues   *usecases.IssueService
	Runs     *usecases.RunService
	Evaluate *usecases.EvaluateService
	NATS     *nats.Conn
	DB       Pinger
	Cache    Pinger
	// DocsPath is the OpenAPI document served at /docs/openapi.yaml.
	DocsPath string
	Version  string
}
