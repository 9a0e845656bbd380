package contextstore

import (
	"fmt"
	"strconv"
	"strings"

	"iris.app/engage/internal/model"
)

// Profile keys maintained by BuildProfilePatch.
const (
	ProfileInteractions   = "interactions"
	ProfileLanguage       = "preferred_language"
	ProfileStyle          = "communication_style"
	ProfileSatisfaction   = "satisfaction_score"
	ProfileFrequentIntent = "frequent_intent"
	ProfileLastPlatform   = "last_platform"

	intentCountPrefix = "intent_count_"
)

// Recency decay applied to the running satisfaction score. The newest
// sentiment contributes the remaining 0.1.
const satisfactionDecay = 0.9

var informalMarkers = []string{"lol", "haha", "555", "hey", "yo ", "จ้า", "ฮ่า"}

var formalTextMarkers = []string{"please", "kindly", "would you", "could you", "ครับ", "ค่ะ", "คะ"}

// BuildProfilePatch derives warm-tier facts from the current turn against
// the existing profile. The patch only contains keys that change.
func BuildProfilePatch(profile map[string]string, text string, p model.Perception, platform model.Platform) map[string]string {
	patch := map[string]string{}

	interactions := parseIntOr(profile[ProfileInteractions], 0) + 1
	patch[ProfileInteractions] = strconv.Itoa(interactions)

	if p.Language != "" {
		patch[ProfileLanguage] = p.Language
	}
	if platform != "" {
		patch[ProfileLastPlatform] = string(platform)
	}

	if style := communicationStyle(text); style != "" {
		patch[ProfileStyle] = style
	}

	if p.Intent != "" && p.Intent != model.IntentUnknown {
		countKey := intentCountPrefix + p.Intent
		count := parseIntOr(profile[countKey], 0) + 1
		patch[countKey] = strconv.Itoa(count)
		patch[ProfileFrequentIntent] = frequentIntent(profile, p.Intent, count)
	}

	patch[ProfileSatisfaction] = nextSatisfaction(profile[ProfileSatisfaction], p.Sentiment)

	return patch
}

// communicationStyle guesses formal/informal register from one message.
// Returns "" when the message carries no signal either way.
func communicationStyle(text string) string {
	lower := strings.ToLower(text)
	for _, m := range informalMarkers {
		if strings.Contains(lower, m) {
			return "informal"
		}
	}
	for _, m := range formalTextMarkers {
		if strings.Contains(lower, m) {
			return "formal"
		}
	}
	return ""
}

// frequentIntent returns the intent with the highest stored count, given
// that currentIntent just reached currentCount.
func frequentIntent(profile map[string]string, currentIntent string, currentCount int) string {
	best, bestCount := currentIntent, currentCount
	for key, value := range profile {
		if !strings.HasPrefix(key, intentCountPrefix) {
			continue
		}
		intent := strings.TrimPrefix(key, intentCountPrefix)
		if intent == currentIntent {
			continue
		}
		if count := parseIntOr(value, 0); count > bestCount {
			best, bestCount = intent, count
		}
	}
	return best
}

// nextSatisfaction folds the turn's sentiment into the running score:
// new = old*0.9 + value*0.1 with positive=1.0, neutral=0.5, negative=0.0.
func nextSatisfaction(stored string, sentiment model.Sentiment) string {
	old := 0.5
	if stored != "" {
		if f, err := strconv.ParseFloat(stored, 64); err == nil {
			old = f
		}
	}

	var value float64
	switch sentiment {
	case model.SentimentPositive:
		value = 1.0
	case model.SentimentNegative:
		value = 0.0
	default:
		value = 0.5
	}

	return fmt.Sprintf("%.3f", old*satisfactionDecay+value*(1-satisfactionDecay))
}

func parseIntOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	return fallback
}
