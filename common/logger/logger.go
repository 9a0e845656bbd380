package logger

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/trace"

	"iris.app/engage/core/config"
)

// Setup configures the global slog logger.
//   - production with OTel: otelslog bridge (logs shipped via OTLP)
//   - production without OTel: JSON to stdout
//   - development: text to stdout
//
// Every handler is wrapped with TraceHandler so trace IDs and context
// log fields are attached automatically.
func Setup(cfg config.Config) {
	var handler slog.Handler

	switch {
	case cfg.IsProduction() && cfg.OTel.Enabled():
		handler = otelslog.NewHandler(cfg.OTel.ServiceName)
	case cfg.IsProduction():
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}

	slog.SetDefault(slog.New(NewTraceHandler(handler)))
}

// TraceHandler decorates log records with the active OTel trace/span IDs
// and any LogFields carried by the context.
type TraceHandler struct {
	inner slog.Handler
}

func NewTraceHandler(inner slog.Handler) *TraceHandler {
	return &TraceHandler{inner: inner}
}

func (h *TraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *TraceHandler) Handle(ctx context.Context, record slog.Record) error {
	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", span.TraceID().String()),
			slog.String("span_id", span.SpanID().String()),
		)
	}

	if fields, ok := fieldsFromContext(ctx); ok {
		record.AddAttrs(fields.attrs()...)
	}

	return h.inner.Handle(ctx, record)
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{inner: h.inner.WithGroup(name)}
}
