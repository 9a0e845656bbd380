package generation

import "iris.app/engage/internal/model"

// StaticResponder serves canned per-language responses. It is the layer
// of last resort: it cannot fail, so the orchestrator always has
// something to say.
type StaticResponder struct{}

func NewStaticResponder() *StaticResponder {
	return &StaticResponder{}
}

var apologies = map[string]string{
	"en": "Sorry, I'm having trouble responding right now. Please try again in a moment.",
	"th": "ขออภัยค่ะ ขณะนี้ระบบขัดข้องชั่วคราว กรุณาลองใหม่อีกครั้งนะคะ",
}

var escalationAcks = map[string]string{
	"en": "I'm connecting you with one of our team members who can help you further. Please hold on.",
	"th": "กำลังโอนเรื่องของคุณให้เจ้าหน้าที่ดูแลต่อนะคะ กรุณารอสักครู่ค่ะ",
}

// Apology is the degraded response used when generation fails entirely.
func (s *StaticResponder) Apology(language string) model.Action {
	return model.Action{
		Text:      pick(apologies, language),
		Strategy:  "static_apology",
		Generated: false,
	}
}

// EscalationAck acknowledges a handoff to a human agent.
func (s *StaticResponder) EscalationAck(language string) model.Action {
	return model.Action{
		Text:      pick(escalationAcks, language),
		Strategy:  "static_escalation_ack",
		Generated: false,
	}
}

func pick(templates map[string]string, language string) string {
	if text, ok := templates[language]; ok {
		return text
	}
	return templates["en"]
}
