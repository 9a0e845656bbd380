package logger

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// LogFields are the request-scoped identifiers attached to every log line
// emitted while processing a message. Nil fields are omitted.
type LogFields struct {
	ConversationID *string
	UserID         *string
	MessageID      *string
	Intent         *string
	DecisionType   *string
	Component      string
}

// WithLogFields returns a context carrying the merged log fields.
// Non-nil fields in the argument override fields already in the context.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	if existing, ok := fieldsFromContext(ctx); ok {
		if fields.ConversationID == nil {
			fields.ConversationID = existing.ConversationID
		}
		if fields.UserID == nil {
			fields.UserID = existing.UserID
		}
		if fields.MessageID == nil {
			fields.MessageID = existing.MessageID
		}
		if fields.Intent == nil {
			fields.Intent = existing.Intent
		}
		if fields.DecisionType == nil {
			fields.DecisionType = existing.DecisionType
		}
		if fields.Component == "" {
			fields.Component = existing.Component
		}
	}
	return context.WithValue(ctx, contextKey{}, fields)
}

func fieldsFromContext(ctx context.Context) (LogFields, bool) {
	fields, ok := ctx.Value(contextKey{}).(LogFields)
	return fields, ok
}

func (f LogFields) attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 6)
	if f.ConversationID != nil {
		attrs = append(attrs, slog.String("conversation_id", *f.ConversationID))
	}
	if f.UserID != nil {
		attrs = append(attrs, slog.String("user_id", *f.UserID))
	}
	if f.MessageID != nil {
		attrs = append(attrs, slog.String("message_id", *f.MessageID))
	}
	if f.Intent != nil {
		attrs = append(attrs, slog.String("intent", *f.Intent))
	}
	if f.DecisionType != nil {
		attrs = append(attrs, slog.String("decision_type", *f.DecisionType))
	}
	if f.Component != "" {
		attrs = append(attrs, slog.String("component", f.Component))
	}
	return attrs
}

// Ptr returns a pointer to v. Convenience for building LogFields.
func Ptr[T any](v T) *T {
	return &v
}

// Truncate shortens s to max runes for logging user-supplied text.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
