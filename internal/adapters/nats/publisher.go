package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/osmqa/internal/core/domain"
)

// Subjects.
const (
	SubjectIssuePrefix  = "qa.issue."
	SubjectIssues       = "qa.issue.>"
	SubjectRunRequest   = "qa.run.request"
	SubjectRunCompleted = "qa.run.completed"
)

// Streams returns the JetStream streams the analyser relies on.
func Streams() []nats.StreamConfig {
	return []nats.StreamConfig{
		{
			Name:      "QA_ISSUES",
			Subjects:  []string{SubjectIssues},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "QA_RUN_REQUESTS",
			Subjects:  []string{SubjectRunRequest},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "QA_RUN_EVENTS",
			Subjects:  []string{SubjectRunCompleted},
			Retention: nats.InterestPolicy,
			MaxAge:    7 * 24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}
}

// IssueSubject is the subject an issue of class is published on.
func IssueSubject(class int) string {
	return SubjectIssuePrefix + strconv.Itoa(class)
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := Connect(url, "osmqa-publisher")
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	for _, cfg := range Streams() {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				conn.Close()
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishIssue publishes issue with its id as the message id, so a rule
// analysed again for the same run is deduplicated by the stream.
func (p *Publisher) PublishIssue(ctx context.Context, issue *domain.Issue) error {
	return p.publish(ctx, IssueSubject(issue.Class), issue, nats.MsgId(issue.ID))
}

func (p *Publisher) PublishRunRequest(ctx context.Context, req *domain.RunRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	// The run id doubles as the message id so a retried request is
	// deduplicated by the stream.
	_, err = p.js.Publish(SubjectRunRequest, data, nats.Context(ctx), nats.MsgId(req.ID))
	return err
}

func (p *Publisher) PublishRunCompleted(ctx context.Context, run *domain.Run) error {
	return p.publish(ctx, SubjectRunCompleted, run)
}

func (p *Publisher) publish(ctx context.Context, subject string, v any, opts ...nats.PubOpt) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subject, data, append(opts, nats.Context(ctx))...)
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// Connect opens a plain NATS connection that retries forever.
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}
