package metrics

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"iris.app/engage/internal/model"
)

// Snapshot is a point-in-time view of the rolling aggregates.
type Snapshot struct {
	Decisions        int64                `json:"decisions"`
	AvgProcessingMs  float64              `json:"avg_processing_ms"`
	AvgConfidence    float64              `json:"avg_confidence"`
	AvgQuality       float64              `json:"avg_quality"`
	FallbackCount    int64                `json:"fallback_count"`
	EscalationCount  int64                `json:"escalation_count"`
	TypeDistribution map[model.Type]int64 `json:"type_distribution"`
}

// Aggregator keeps rolling averages over the decision stream using the
// incremental mean: new_avg = (old_avg*(n-1) + v) / n.
type Aggregator struct {
	mu   sync.Mutex
	snap Snapshot
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		snap: Snapshot{TypeDistribution: map[model.Type]int64{}},
	}
}

type observation struct {
	decisionType    model.Type
	confidenceScore float64
	qualityScore    float64
	processingMs    float64
	fallbackUsed    bool
}

func (a *Aggregator) observe(o observation) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.snap.Decisions++
	n := float64(a.snap.Decisions)
	a.snap.AvgProcessingMs = (a.snap.AvgProcessingMs*(n-1) + o.processingMs) / n
	a.snap.AvgConfidence = (a.snap.AvgConfidence*(n-1) + o.confidenceScore) / n
	a.snap.AvgQuality = (a.snap.AvgQuality*(n-1) + o.qualityScore) / n

	a.snap.TypeDistribution[o.decisionType]++
	if o.fallbackUsed {
		a.snap.FallbackCount++
	}
	if o.decisionType == model.TypeEscalateToHuman {
		a.snap.EscalationCount++
	}
}

// Snapshot returns a copy of the current aggregates.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := a.snap
	out.TypeDistribution = make(map[model.Type]int64, len(a.snap.TypeDistribution))
	for k, v := range a.snap.TypeDistribution {
		out.TypeDistribution[k] = v
	}
	return out
}

// StreamConsumer tails the decision stream and feeds the aggregator.
type StreamConsumer struct {
	client     *redis.Client
	stream     string
	aggregator *Aggregator
}

func NewStreamConsumer(client *redis.Client, stream string, aggregator *Aggregator) *StreamConsumer {
	return &StreamConsumer{client: client, stream: stream, aggregator: aggregator}
}

// Run tails the stream until ctx is cancelled. Entries published before
// Run starts are skipped; aggregates cover the process lifetime.
func (c *StreamConsumer) Run(ctx context.Context) {
	lastID := "$"
	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := c.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{c.stream, lastID},
			Count:   100,
			Block:   5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			slog.WarnContext(ctx, "decision stream read failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				c.aggregator.observe(parseObservation(msg.Values))
				lastID = msg.ID
			}
		}
	}
}

func parseObservation(values map[string]any) observation {
	return observation{
		decisionType:    model.Type(stringField(values, "decision_type")),
		confidenceScore: floatField(values, "confidence_score"),
		qualityScore:    floatField(values, "quality_score"),
		processingMs:    floatField(values, "processing_time_ms"),
		fallbackUsed:    stringField(values, "fallback_used") == "true",
	}
}

func stringField(values map[string]any, key string) string {
	if v, ok := values[key].(string); ok {
		return v
	}
	return ""
}

func floatField(values map[string]any, key string) float64 {
	if v, ok := values[key].(string); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}
