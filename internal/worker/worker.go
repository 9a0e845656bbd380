// Package worker drains the inbound message stream and turns each
// message into a delivered decision.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"iris.app/engage/common/llm"
	"iris.app/engage/common/logger"
	"iris.app/engage/internal/model"
	"iris.app/engage/internal/orchestrator"
	"iris.app/engage/internal/queue"
)

// Processor decides what to do with one inbound message.
// Mirrors orchestrator.Orchestrator - defined here so tests can stub it.
type Processor interface {
	Process(ctx context.Context, in orchestrator.Inbound) *orchestrator.Result
}

// Consumer is the slice of queue.RedisConsumer the worker needs.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
	MaxAttempts() int
}

// Deliverer pushes the finished decision back to the channel layer.
// Mirrors delivery.Deliverer - defined here to avoid the import.
type Deliverer interface {
	Deliver(ctx context.Context, decision *model.DecisionRecord, action model.Action) error
}

type Worker struct {
	consumer  Consumer
	processor Processor
	deliverer Deliverer

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, processor Processor, deliverer Deliverer) *Worker {
	return &Worker{
		consumer:  consumer,
		processor: processor,
		deliverer: deliverer,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "engage.worker",
	})

	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"conversation_id", msg.ConversationID)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID,
				"conversation_id", msg.ConversationID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// Exported so it can be reused by the reclaimer.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ConversationID: &msg.ConversationID,
		UserID:         &msg.UserID,
		MessageID:      &msg.ID,
	})

	// Continue the trace started at HTTP ingress, if any.
	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_message")
	ctx = sc.Context()
	defer sc.End()

	slog.InfoContext(ctx, "processing message",
		"message_id", msg.ID,
		"attempt", msg.Attempt)

	result := w.processor.Process(ctx, orchestrator.Inbound{
		ConversationID: msg.ConversationID,
		UserID:         msg.UserID,
		Text:           msg.Text,
		Platform:       msg.Platform,
		ExternalID:     msg.ExternalID,
	})

	if err := w.deliverer.Deliver(ctx, result.Decision, result.Action); err != nil {
		// Decision stands; only the hand-off failed. Retry the whole
		// message so the conversation eventually gets its reply.
		return fmt.Errorf("delivering decision: %w", err)
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// Log but don't fail - message will be reclaimed but the
		// per-conversation lock makes reprocessing safe.
		slog.WarnContext(ctx, "failed to ACK message",
			"error", err,
			"message_id", msg.ID)
	}

	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if !llm.IsRetryable(ctx, err) {
		slog.ErrorContext(ctx, "non-retryable failure, sending to DLQ",
			"message_id", msg.ID,
			"conversation_id", msg.ConversationID,
			"attempt", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	if msg.Attempt >= w.consumer.MaxAttempts() {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"message_id", msg.ID,
			"conversation_id", msg.ConversationID,
			"attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"conversation_id", msg.ConversationID,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
