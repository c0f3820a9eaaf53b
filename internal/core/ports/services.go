package ports

import (
	"context"

	"github.com/samirrijal/osmqa/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishIssue(ctx context.Context, issue *domain.Issue) error
	PublishRunRequest(ctx context.Context, req *domain.RunRequest) error
	PublishRunCompleted(ctx context.Context, run *domain.Run) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeRunRequests(ctx context.Context, handler func(ctx context.Context, req *domain.RunRequest) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// MessageFormatter renders user-facing issue texts in a given language.
type MessageFormatter interface {
	Title(lang, key string) string
	Deviation(lang, value string, meters float64) string
}
