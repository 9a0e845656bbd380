// Package strategy maps an intent category and confidence level to a
// decision type, a primary/fallback generation strategy pair, and the
// quality threshold the primary must clear. The table is resolved once at
// startup; selection at decision time is a lookup, never a construction.
package strategy

import (
	"fmt"

	"iris.app/engage/core/config"
	"iris.app/engage/internal/model"
)

// Generation strategy names understood by the generator.
const (
	DirectAnswer       = "direct_answer"
	ServiceRecovery    = "service_recovery"
	ProbeDetails       = "probe_details"
	ClarifyingQuestion = "clarifying_question"
	WorkflowKickoff    = "workflow_kickoff"
	TemplateReply      = "template_reply"
)

// Entry is one resolved row of the table.
type Entry struct {
	Decision         model.Type
	Primary          string
	Fallback         string
	QualityThreshold float64
}

type Table struct {
	entries       map[model.IntentCategory]Entry
	clarification Entry
}

// NewTable builds and validates the table from the configured thresholds.
func NewTable(cfg config.QualityConfig) (*Table, error) {
	clarification := Entry{
		Decision:         model.TypeClarificationNeeded,
		Primary:          ClarifyingQuestion,
		Fallback:         TemplateReply,
		QualityThreshold: cfg.ClarificationThreshold,
	}

	t := &Table{
		clarification: clarification,
		entries: map[model.IntentCategory]Entry{
			model.CategorySmallTalk: {
				Decision:         model.TypeDirectResponse,
				Primary:          DirectAnswer,
				Fallback:         TemplateReply,
				QualityThreshold: cfg.DirectThreshold,
			},
			model.CategoryComplaint: {
				Decision:         model.TypeDirectResponse,
				Primary:          ServiceRecovery,
				Fallback:         TemplateReply,
				QualityThreshold: cfg.DirectThreshold,
			},
			model.CategoryInquiry: {
				Decision:         model.TypeGatherMoreInfo,
				Primary:          ProbeDetails,
				Fallback:         ClarifyingQuestion,
				QualityThreshold: cfg.InfoGatherThreshold,
			},
			model.CategorySupport: {
				Decision:         model.TypeGatherMoreInfo,
				Primary:          ProbeDetails,
				Fallback:         ClarifyingQuestion,
				QualityThreshold: cfg.InfoGatherThreshold,
			},
			model.CategoryWorkflow: {
				Decision:         model.TypeTriggerWorkflow,
				Primary:          WorkflowKickoff,
				Fallback:         ClarifyingQuestion,
				QualityThreshold: cfg.WorkflowThreshold,
			},
			model.CategoryUnknown: clarification,
		},
	}

	for cat, e := range t.entries {
		if e.QualityThreshold < 0 || e.QualityThreshold > 1 {
			return nil, fmt.Errorf("quality threshold for %s out of range: %v", cat, e.QualityThreshold)
		}
	}
	return t, nil
}

// Select returns the entry for a classified message. Low classifier
// confidence overrides the category: the turn becomes a clarification
// regardless of what the intent mapped to.
func (t *Table) Select(category model.IntentCategory, level model.ConfidenceLevel) Entry {
	if level == model.ConfidenceLow {
		return t.clarification
	}
	if e, ok := t.entries[category]; ok {
		return e
	}
	return t.clarification
}
