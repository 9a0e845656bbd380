package model

import "time"

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Platform identifies the channel a conversation arrived on.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformWhatsApp  Platform = "whatsapp"
	PlatformLine      Platform = "line"
	PlatformTelegram  Platform = "telegram"
	PlatformWeb       Platform = "web"
)

// Turn is a single message in a conversation. User turns carry the
// perception output; assistant turns carry the decision that produced them.
type Turn struct {
	ID           int64     `json:"id"`
	Sender       Sender    `json:"sender"`
	Text         string    `json:"text"`
	Language     string    `json:"language,omitempty"`
	Intent       string    `json:"intent,omitempty"`
	Sentiment    Sentiment `json:"sentiment,omitempty"`
	Confidence   float64   `json:"confidence,omitempty"`
	DecisionType Type      `json:"decision_type,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ConversationState is the working context for one conversation. It is
// what the hot tier caches and what a cold-tier rebuild reconstructs.
type ConversationState struct {
	ConversationID  string            `json:"conversation_id"`
	UserID          string            `json:"user_id"`
	Platform        Platform          `json:"platform,omitempty"`
	Turns           []Turn            `json:"turns"`
	UserProfile     map[string]string `json:"user_profile"`
	SessionMetadata map[string]string `json:"session_metadata"`
	LastDecision    *DecisionRecord   `json:"last_decision,omitempty"`

	// Degraded marks a state assembled while every persistent tier was
	// unreachable. Decisions still happen, writes are best-effort.
	Degraded bool `json:"degraded,omitempty"`
}

// NewConversationState returns an empty state for a conversation that has
// no cached or persisted history.
func NewConversationState(conversationID, userID string) *ConversationState {
	return &ConversationState{
		ConversationID:  conversationID,
		UserID:          userID,
		Turns:           []Turn{},
		UserProfile:     map[string]string{},
		SessionMetadata: map[string]string{},
	}
}

// AppendTurns adds turns and drops the oldest ones beyond limit.
func (s *ConversationState) AppendTurns(limit int, turns ...Turn) {
	s.Turns = append(s.Turns, turns...)
	if limit > 0 && len(s.Turns) > limit {
		s.Turns = s.Turns[len(s.Turns)-limit:]
	}
}

// UserTurns returns the most recent n user-sent turns, oldest first.
// n <= 0 returns all user turns.
func (s *ConversationState) UserTurns(n int) []Turn {
	out := make([]Turn, 0, len(s.Turns))
	for _, t := range s.Turns {
		if t.Sender == SenderUser {
			out = append(out, t)
		}
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
