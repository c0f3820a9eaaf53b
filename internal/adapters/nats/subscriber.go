package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/osmqa/internal/core/domain"
)

// runAckWait bounds the handling of one request before JetStream redelivers
// it. Handlers only start workflows; the analysis itself runs elsewhere.
const (
	runAckWait    = time.Minute
	runRetryDelay = 30 * time.Second
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := Connect(url, "osmqa-subscriber")
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeRunRequests delivers queued run requests to handler one at a
// time. A request is acknowledged once handler returns nil. A failing
// request is redelivered up to MaxDeliver times; an undecodable one is
// terminated.
func (s *Subscriber) SubscribeRunRequests(ctx context.Context, handler func(ctx context.Context, req *domain.RunRequest) error) error {
	sub, err := s.js.Subscribe(SubjectRunRequest, func(msg *nats.Msg) {
		var req domain.RunRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			slog.Warn("dropping malformed run request", "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &req); err != nil {
			slog.Error("run request failed", "run_id", req.ID, "error", err)
			_ = msg.NakWithDelay(runRetryDelay)
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("run-requests"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
		nats.AckWait(runAckWait),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
