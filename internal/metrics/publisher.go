// Package metrics publishes decision outcomes to an append-only Redis
// stream and aggregates them out-of-band. The orchestrator only ever
// appends; rollups happen in the consumer.
package metrics

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"iris.app/engage/internal/model"
)

// Publisher appends one decision record to the metrics stream.
type Publisher interface {
	Publish(ctx context.Context, rec *model.DecisionRecord) error
	Close() error
}

type redisPublisher struct {
	client *redis.Client
	stream string
}

func NewRedisPublisher(client *redis.Client, stream string) Publisher {
	return &redisPublisher{client: client, stream: stream}
}

func (p *redisPublisher) Publish(ctx context.Context, rec *model.DecisionRecord) error {
	values := map[string]any{
		"decision_id":        strconv.FormatInt(rec.ID, 10),
		"conversation_id":    rec.ConversationID,
		"user_id":            rec.UserID,
		"decision_type":      string(rec.DecisionType),
		"confidence_level":   string(rec.ConfidenceLevel),
		"confidence_score":   strconv.FormatFloat(rec.ConfidenceScore, 'f', -1, 64),
		"quality_score":      strconv.FormatFloat(rec.QualityScore, 'f', -1, 64),
		"fallback_used":      strconv.FormatBool(rec.FallbackUsed),
		"processing_time_ms": strconv.FormatInt(rec.ProcessingTimeMs, 10),
	}

	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("publishing decision %d: %w", rec.ID, err)
	}
	return nil
}

func (p *redisPublisher) Close() error {
	return nil
}

// NopPublisher drops every record. Used in tests and when the decision
// stream is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *model.DecisionRecord) error { return nil }
func (NopPublisher) Close() error                                         { return nil }
