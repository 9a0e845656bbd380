package contextstore

import (
	"fmt"
	"strings"

	"iris.app/engage/internal/model"
)

// Session metadata keys maintained by UpdateInsights.
const (
	MetaRecentIntents    = "recent_intents"
	MetaFlowPattern      = "flow_pattern"
	MetaEngagementScore  = "engagement_score"
	MetaUnresolvedIssues = "unresolved_issues"
)

const recentIntentWindow = 5

// UpdateInsights refreshes the session metadata after a classified turn.
// Called by the orchestrator before Put, while it holds the conversation
// sequence, so the update is race-free.
func UpdateInsights(state *model.ConversationState, p model.Perception) {
	if state.SessionMetadata == nil {
		state.SessionMetadata = map[string]string{}
	}

	intents := recentIntents(state, p.Intent)
	state.SessionMetadata[MetaRecentIntents] = strings.Join(intents, ",")
	state.SessionMetadata[MetaFlowPattern] = flowPattern(intents)
	state.SessionMetadata[MetaEngagementScore] = fmt.Sprintf("%.2f", engagementScore(state))

	updateUnresolvedIssues(state, p)
}

func recentIntents(state *model.ConversationState, current string) []string {
	intents := []string{}
	for _, t := range state.UserTurns(recentIntentWindow - 1) {
		if t.Intent != "" {
			intents = append(intents, t.Intent)
		}
	}
	intents = append(intents, current)
	if len(intents) > recentIntentWindow {
		intents = intents[len(intents)-recentIntentWindow:]
	}
	return intents
}

// flowPattern is a coarse label for how the conversation is moving:
// opening, closing, focused on one topic, or exploring across topics.
func flowPattern(intents []string) string {
	last := intents[len(intents)-1]
	switch last {
	case model.IntentGreeting:
		return "opening"
	case model.IntentGoodbye:
		return "closing"
	}

	if len(intents) >= 2 {
		prev := intents[len(intents)-2]
		if model.CategoryFor(prev) == model.CategoryFor(last) {
			return "focused"
		}
		return "exploring"
	}
	return "opening"
}

// engagementScore grows with conversation length and message substance.
func engagementScore(state *model.ConversationState) float64 {
	userTurns := state.UserTurns(0)
	if len(userTurns) == 0 {
		return 0.1
	}

	score := float64(len(userTurns)) / 10.0
	totalWords := 0
	for _, t := range userTurns {
		totalWords += len(strings.Fields(t.Text))
	}
	if avg := float64(totalWords) / float64(len(userTurns)); avg > 8 {
		score += 0.2
	}

	if score > 1 {
		score = 1
	}
	return score
}

// updateUnresolvedIssues tracks complaint and support intents until a
// positive-sentiment turn clears them.
func updateUnresolvedIssues(state *model.ConversationState, p model.Perception) {
	if p.Sentiment == model.SentimentPositive {
		delete(state.SessionMetadata, MetaUnresolvedIssues)
		return
	}

	category := model.CategoryFor(p.Intent)
	if category != model.CategoryComplaint && category != model.CategorySupport {
		return
	}

	existing := state.SessionMetadata[MetaUnresolvedIssues]
	for _, issue := range strings.Split(existing, ",") {
		if issue == p.Intent {
			return
		}
	}
	if existing == "" {
		state.SessionMetadata[MetaUnresolvedIssues] = p.Intent
	} else {
		state.SessionMetadata[MetaUnresolvedIssues] = existing + "," + p.Intent
	}
}
