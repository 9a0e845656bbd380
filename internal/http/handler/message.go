package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"iris.app/engage/internal/http/dto"
	"iris.app/engage/internal/model"
	"iris.app/engage/internal/orchestrator"
	"iris.app/engage/internal/queue"
)

// DecisionProcessor runs the pipeline inline for the synchronous endpoint.
// Mirrors orchestrator.Orchestrator.
type DecisionProcessor interface {
	Process(ctx context.Context, in orchestrator.Inbound) *orchestrator.Result
}

type MessageHandler struct {
	producer    queue.Producer
	processor   DecisionProcessor
	traceHeader string
}

func NewMessageHandler(producer queue.Producer, processor DecisionProcessor, traceHeader string) *MessageHandler {
	return &MessageHandler{
		producer:    producer,
		processor:   processor,
		traceHeader: traceHeader,
	}
}

// Submit enqueues a message for asynchronous processing by the worker.
func (h *MessageHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	req, ok := h.bind(c)
	if !ok {
		return
	}

	traceID := h.traceID(c)
	err := h.producer.Enqueue(ctx, queue.InboundMessage{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Text:           req.Text,
		Platform:       model.Platform(req.Platform),
		ExternalID:     req.ExternalID,
		TraceID:        traceID,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to enqueue message",
			"error", err,
			"conversation_id", req.ConversationID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue message"})
		return
	}

	c.JSON(http.StatusAccepted, dto.SubmitMessageResponse{
		Enqueued: true,
		TraceID:  traceID,
	})
}

// Decide runs the pipeline inline and returns the decision. Intended for
// channels that need the reply in the HTTP response.
func (h *MessageHandler) Decide(c *gin.Context) {
	ctx := c.Request.Context()

	req, ok := h.bind(c)
	if !ok {
		return
	}

	result := h.processor.Process(ctx, orchestrator.Inbound{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Text:           req.Text,
		Platform:       model.Platform(req.Platform),
		ExternalID:     req.ExternalID,
	})

	d := result.Decision
	c.JSON(http.StatusOK, dto.DecideResponse{
		DecisionType:      d.DecisionType,
		ConfidenceLevel:   string(d.ConfidenceLevel),
		ConfidenceScore:   d.ConfidenceScore,
		Intent:            d.Intent,
		Strategy:          d.Strategy,
		QualityScore:      d.QualityScore,
		FallbackUsed:      d.FallbackUsed,
		EscalationReasons: d.EscalationReasons,
		ProcessingTimeMs:  d.ProcessingTimeMs,
		Action:            result.Action,
	})
}

func (h *MessageHandler) bind(c *gin.Context) (dto.SubmitMessageRequest, bool) {
	var req dto.SubmitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(c.Request.Context(), "invalid message request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return dto.SubmitMessageRequest{}, false
	}
	return req, true
}

// traceID prefers an explicit header so upstream channel gateways can
// correlate, falling back to the otelgin span.
func (h *MessageHandler) traceID(c *gin.Context) string {
	if traceID := c.GetHeader(h.traceHeader); traceID != "" {
		return traceID
	}
	if spanCtx := trace.SpanContextFromContext(c.Request.Context()); spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}
