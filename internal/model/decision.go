package model

import "time"

// Type is the decision produced for an inbound message.
type Type string

const (
	TypeDirectResponse      Type = "direct_response"
	TypeClarificationNeeded Type = "clarification_needed"
	TypeGatherMoreInfo      Type = "gather_more_info"
	TypeEscalateToHuman     Type = "escalate_to_human"
	TypeTriggerWorkflow     Type = "trigger_workflow"
)

type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// ConfidenceLevelFor maps a raw classifier confidence to a level:
// high >= 0.8, medium >= 0.5, low otherwise.
func ConfidenceLevelFor(score float64) ConfidenceLevel {
	switch {
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// DecisionRecord is the immutable outcome of one orchestrator invocation.
type DecisionRecord struct {
	ID                int64           `json:"id"`
	ConversationID    string          `json:"conversation_id"`
	UserID            string          `json:"user_id"`
	DecisionType      Type            `json:"decision_type"`
	ConfidenceLevel   ConfidenceLevel `json:"confidence_level"`
	ConfidenceScore   float64         `json:"confidence_score"`
	Intent            string          `json:"intent"`
	Strategy          string          `json:"strategy,omitempty"`
	QualityScore      float64         `json:"quality_score"`
	FallbackUsed      bool            `json:"fallback_used"`
	EscalationReasons []string        `json:"escalation_reasons,omitempty"`
	ProcessingTimeMs  int64           `json:"processing_time_ms"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Escalated reports whether the record routes the conversation to a human.
func (r *DecisionRecord) Escalated() bool {
	return r.DecisionType == TypeEscalateToHuman
}
