// Package delivery hands finished decisions to the channel layer.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"iris.app/engage/internal/model"
)

// Deliverer pushes one decision and its action to the outside world.
type Deliverer interface {
	Deliver(ctx context.Context, decision *model.DecisionRecord, action model.Action) error
}

type decisionPayload struct {
	ConversationID    string       `json:"conversation_id"`
	UserID            string       `json:"user_id"`
	DecisionType      model.Type   `json:"decision_type"`
	ConfidenceLevel   string       `json:"confidence_level"`
	EscalationReasons []string     `json:"escalation_reasons,omitempty"`
	Action            model.Action `json:"action"`
}

type webhookDeliverer struct {
	baseURL string
	client  *http.Client
}

// NewWebhookDeliverer posts decisions to {baseURL}/v1/decisions.
func NewWebhookDeliverer(baseURL string) Deliverer {
	return &webhookDeliverer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *webhookDeliverer) Deliver(ctx context.Context, decision *model.DecisionRecord, action model.Action) error {
	body, err := json.Marshal(decisionPayload{
		ConversationID:    decision.ConversationID,
		UserID:            decision.UserID,
		DecisionType:      decision.DecisionType,
		ConfidenceLevel:   string(decision.ConfidenceLevel),
		EscalationReasons: decision.EscalationReasons,
		Action:            action,
	})
	if err != nil {
		return fmt.Errorf("encoding decision payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/decisions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivering decision %d: %w", decision.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("delivering decision %d: webhook returned %d", decision.ID, resp.StatusCode)
	}
	return nil
}

// NopDeliverer logs instead of delivering. Used when no webhook is
// configured (local development).
type NopDeliverer struct{}

func (NopDeliverer) Deliver(ctx context.Context, decision *model.DecisionRecord, action model.Action) error {
	slog.InfoContext(ctx, "decision ready (no delivery webhook configured)",
		"conversation_id", decision.ConversationID,
		"decision_type", decision.DecisionType,
		"text_preview", truncate(action.Text, 80))
	return nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
