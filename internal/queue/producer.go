// Package queue moves inbound messages through a Redis stream between
// the HTTP ingress and the decision worker.
package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"iris.app/engage/internal/model"
)

// InboundMessage is one customer message queued for a decision.
type InboundMessage struct {
	ConversationID string
	UserID         string
	Text           string
	Platform       model.Platform
	ExternalID     string
	TraceID        string
	Attempt        int
}

// Producer enqueues inbound messages.
type Producer interface {
	Enqueue(ctx context.Context, msg InboundMessage) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
}

func NewRedisProducer(client *redis.Client, stream string) Producer {
	return &redisProducer{client: client, stream: stream}
}

func (p *redisProducer) Enqueue(ctx context.Context, msg InboundMessage) error {
	attempt := msg.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: messageValues(msg, attempt),
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueuing message: %w", err)
	}

	slog.DebugContext(ctx, "message enqueued",
		"stream", p.stream,
		"conversation_id", msg.ConversationID)
	return nil
}

func (p *redisProducer) Close() error {
	return nil
}

func messageValues(msg InboundMessage, attempt int) map[string]any {
	values := map[string]any{
		"conversation_id": msg.ConversationID,
		"user_id":         msg.UserID,
		"text":            msg.Text,
		"attempt":         attempt,
	}
	if msg.Platform != "" {
		values["platform"] = string(msg.Platform)
	}
	if msg.ExternalID != "" {
		values["external_id"] = msg.ExternalID
	}
	if msg.TraceID != "" {
		values["trace_id"] = msg.TraceID
	}
	return values
}
