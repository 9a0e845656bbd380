package quality

import (
	"strings"
	"unicode"

	"iris.app/engage/internal/model"
)

// Default heuristic sub-scorers. Cheap lexical signals, no model calls.

var categoryKeywords = map[model.IntentCategory][]string{
	model.CategorySmallTalk: {"hello", "hi", "thanks", "thank", "welcome", "bye", "great", "glad"},
	model.CategoryInquiry:   {"price", "cost", "available", "product", "offer", "detail", "option"},
	model.CategorySupport:   {"help", "fix", "resolve", "issue", "problem", "try", "step"},
	model.CategoryComplaint: {"sorry", "apologize", "understand", "regret", "resolve", "make it right"},
	model.CategoryWorkflow:  {"order", "status", "cancel", "refund", "account", "process", "confirm"},
}

var empathyMarkers = []string{"sorry", "apologize", "understand", "ขออภัย", "เสียใจ", "เข้าใจ"}

var formalMarkers = []string{"please", "kindly", "would", "certainly", "ครับ", "ค่ะ", "คะ"}

// requiredSlots lists the information a complete response for an intent
// should reference.
var requiredSlots = map[string][]string{
	model.IntentOrderStatus:   {"order"},
	model.IntentOrderCancel:   {"order"},
	model.IntentRefundRequest: {"order", "refund"},
	model.IntentPricing:       {"price"},
	model.IntentAvailability:  {"available"},
	model.IntentAccountUpdate: {"account"},
}

// scoreRelevance rewards responses whose vocabulary matches the message
// and the intent category.
func scoreRelevance(in Input) float64 {
	response := strings.ToLower(in.Response.Text)
	if response == "" {
		return 0
	}

	score := 0.4 // non-empty response baseline

	messageTokens := tokenize(in.Message)
	overlap := 0
	for _, tok := range messageTokens {
		if len(tok) >= 4 && strings.Contains(response, tok) {
			overlap++
		}
	}
	if len(messageTokens) > 0 {
		score += 0.3 * float64(overlap) / float64(len(messageTokens))
	}

	for _, kw := range categoryKeywords[model.CategoryFor(in.Perception.Intent)] {
		if strings.Contains(response, kw) {
			score += 0.3
			break
		}
	}

	return score
}

// scorePersonalization rewards use of what the warm tier knows about the
// user: their name, their language, their history.
func scorePersonalization(in Input) float64 {
	if in.State == nil || len(in.State.UserProfile) == 0 {
		return 0.5 // nothing known, nothing to miss
	}

	response := strings.ToLower(in.Response.Text)
	score := 0.3

	if name := in.State.UserProfile["name"]; name != "" &&
		strings.Contains(response, strings.ToLower(name)) {
		score += 0.4
	}

	if lang := in.State.UserProfile["preferred_language"]; lang != "" {
		if lang == responseLanguage(in.Response.Text) {
			score += 0.3
		}
	} else {
		score += 0.15
	}

	return score
}

// scoreClarity penalizes responses that are empty, one-word, or rambling.
func scoreClarity(in Input) float64 {
	text := strings.TrimSpace(in.Response.Text)
	if text == "" {
		return 0
	}

	words := len(strings.Fields(text))
	switch {
	case words < 3:
		return 0.3
	case words <= 60:
		return 1.0
	case words <= 120:
		return 0.7
	default:
		return 0.4
	}
}

// scoreCompleteness checks that the response touches every slot the
// intent requires. Intents with no required slots score full.
func scoreCompleteness(in Input) float64 {
	slots := requiredSlots[in.Perception.Intent]
	if len(slots) == 0 {
		return 1.0
	}

	response := strings.ToLower(in.Response.Text)
	covered := 0
	for _, slot := range slots {
		if strings.Contains(response, slot) {
			covered++
			continue
		}
		for _, e := range in.Perception.Entities {
			if e.Label == slot && strings.Contains(response, strings.ToLower(e.Text)) {
				covered++
				break
			}
		}
	}
	return float64(covered) / float64(len(slots))
}

// scoreContextFit checks tone against the conversation: empathy when the
// user is negative, register matching the learned communication style.
func scoreContextFit(in Input) float64 {
	response := strings.ToLower(in.Response.Text)
	score := 0.6

	if in.Perception.Sentiment == model.SentimentNegative {
		score = 0.2
		for _, marker := range empathyMarkers {
			if strings.Contains(response, marker) {
				score = 0.9
				break
			}
		}
		return score
	}

	if in.State != nil && in.State.UserProfile["communication_style"] == "formal" {
		for _, marker := range formalMarkers {
			if strings.Contains(response, marker) {
				return 0.9
			}
		}
		return 0.4
	}

	return score
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// responseLanguage is a coarse guess used only for the personalization
// signal: any Thai codepoint marks the response as Thai.
func responseLanguage(text string) string {
	for _, r := range text {
		if r >= 0x0E00 && r <= 0x0E7F {
			return "th"
		}
	}
	return "en"
}
