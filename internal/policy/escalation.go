// Package policy implements the escalation rules that decide when a
// conversation must be routed to a human agent. Evaluation is pure: no
// I/O, no clock, no randomness. The same input always yields the same
// verdict.
package policy

import (
	"iris.app/engage/internal/model"
)

// Rule identifiers, reported in the order the rules are evaluated.
const (
	ReasonExplicitRequest  = "explicit_request"
	ReasonRepeatedFailures = "repeated_failures"
	ReasonHighUrgency      = "high_urgency"
	ReasonLowConfidence    = "low_confidence"

	complexIntentPrefix = "complex_intent:"
)

// ComplexIntentReason names the complex-intent rule match, carrying the
// intent that tripped it.
func ComplexIntentReason(intent string) string {
	return complexIntentPrefix + intent
}

type Config struct {
	// Intents that are an explicit request for a human.
	HumanRequestIntents []string

	// Intents that must always be handled by a human.
	HumanRequiredIntents []string

	// Number of recent user turns inspected by the repeated-failures rule.
	HistoryWindow int

	// Complaint count within the window that triggers escalation.
	ComplaintThreshold int

	// Minimum urgency for the high-urgency rule.
	UrgencyThreshold float64

	// Minimum classifier confidence for the high-urgency rule to trust
	// the urgency signal.
	UrgencyConfidence float64

	// Confidence below this always escalates.
	ConfidenceFloor float64
}

func DefaultConfig() Config {
	return Config{
		HumanRequestIntents:  []string{"human_agent", "talk_to_human", "agent_request"},
		HumanRequiredIntents: []string{"billing_dispute", "fraud_report", "legal_question"},
		HistoryWindow:        3,
		ComplaintThreshold:   3,
		UrgencyThreshold:     0.7,
		UrgencyConfidence:    0.7,
		ConfidenceFloor:      0.3,
	}
}

// Input is everything a single evaluation may consult. Sentiment is part
// of the evaluation surface the orchestrator hands over; no current rule
// keys on it.
type Input struct {
	Intent     string
	Confidence float64
	Urgency    float64
	Sentiment  model.Sentiment

	// History holds prior turns of the conversation, oldest first. Only
	// user-sent turns participate in the repeated-failures rule.
	History []model.Turn
}

// Verdict is the evaluation outcome. Reasons lists every matched rule in
// evaluation order; an empty list means no escalation.
type Verdict struct {
	Escalate bool
	Reasons  []string
}

type Policy struct {
	cfg           Config
	requestHuman  map[string]struct{}
	requiredHuman map[string]struct{}
}

func New(cfg Config) *Policy {
	return &Policy{
		cfg:           cfg,
		requestHuman:  toSet(cfg.HumanRequestIntents),
		requiredHuman: toSet(cfg.HumanRequiredIntents),
	}
}

// Evaluate applies the five rules in fixed order and returns every match:
// explicit request, repeated failures, complex intent, high urgency,
// low confidence.
func (p *Policy) Evaluate(in Input) Verdict {
	var reasons []string

	if _, ok := p.requestHuman[in.Intent]; ok {
		reasons = append(reasons, ReasonExplicitRequest)
	}

	if p.complaintCount(in) >= p.cfg.ComplaintThreshold {
		reasons = append(reasons, ReasonRepeatedFailures)
	}

	if _, ok := p.requiredHuman[in.Intent]; ok {
		reasons = append(reasons, ComplexIntentReason(in.Intent))
	}

	if in.Urgency >= p.cfg.UrgencyThreshold &&
		in.Confidence >= p.cfg.UrgencyConfidence {
		reasons = append(reasons, ReasonHighUrgency)
	}

	if in.Confidence < p.cfg.ConfidenceFloor {
		reasons = append(reasons, ReasonLowConfidence)
	}

	return Verdict{Escalate: len(reasons) > 0, Reasons: reasons}
}

// complaintCount counts complaint-category turns among the last
// HistoryWindow user turns, plus the current message if it is a complaint.
func (p *Policy) complaintCount(in Input) int {
	count := 0
	if model.CategoryFor(in.Intent) == model.CategoryComplaint {
		count++
	}

	seen := 0
	for i := len(in.History) - 1; i >= 0 && seen < p.cfg.HistoryWindow; i-- {
		t := in.History[i]
		if t.Sender != model.SenderUser {
			continue
		}
		seen++
		if model.CategoryFor(t.Intent) == model.CategoryComplaint {
			count++
		}
	}
	return count
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
