package dto

import "iris.app/engage/internal/model"

type SubmitMessageRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	UserID         string `json:"user_id" binding:"required"`
	Text           string `json:"text" binding:"required"`
	Platform       string `json:"platform,omitempty"`
	ExternalID     string `json:"external_id,omitempty"`
}

type SubmitMessageResponse struct {
	Enqueued bool   `json:"enqueued"`
	TraceID  string `json:"trace_id,omitempty"`
}

// DecideResponse is returned by the synchronous decide endpoint.
type DecideResponse struct {
	DecisionType      model.Type   `json:"decision_type"`
	ConfidenceLevel   string       `json:"confidence_level"`
	ConfidenceScore   float64      `json:"confidence_score"`
	Intent            string       `json:"intent"`
	Strategy          string       `json:"strategy"`
	QualityScore      float64      `json:"quality_score"`
	FallbackUsed      bool         `json:"fallback_used"`
	EscalationReasons []string     `json:"escalation_reasons,omitempty"`
	ProcessingTimeMs  int64        `json:"processing_time_ms"`
	Action            model.Action `json:"action"`
}
