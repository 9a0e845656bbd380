// Package quality scores candidate responses before they are committed to
// a decision. The gate is stateless and deterministic: scoring the same
// candidate against the same context always yields the same number.
package quality

import (
	"iris.app/engage/internal/model"
)

// Input is everything a sub-scorer may consult.
type Input struct {
	Response   model.Action
	Message    string
	Perception model.Perception
	State      *model.ConversationState
}

// Scorer produces one sub-score in [0,1]. Implementations must be pure.
type Scorer func(Input) float64

// Weights for the five sub-scores. They sum to 1.0.
type Weights struct {
	Relevance       float64
	Personalization float64
	Clarity         float64
	Completeness    float64
	ContextFit      float64
}

func DefaultWeights() Weights {
	return Weights{
		Relevance:       0.30,
		Personalization: 0.20,
		Clarity:         0.20,
		Completeness:    0.15,
		ContextFit:      0.15,
	}
}

// Score is the weighted breakdown for one candidate.
type Score struct {
	Relevance       float64
	Personalization float64
	Clarity         float64
	Completeness    float64
	ContextFit      float64
	Total           float64
}

type Gate struct {
	weights         Weights
	relevance       Scorer
	personalization Scorer
	clarity         Scorer
	completeness    Scorer
	contextFit      Scorer
}

// New returns a gate with the default weights and heuristic scorers.
func New() *Gate {
	return NewWithScorers(DefaultWeights(), Scorers{
		Relevance:       scoreRelevance,
		Personalization: scorePersonalization,
		Clarity:         scoreClarity,
		Completeness:    scoreCompleteness,
		ContextFit:      scoreContextFit,
	})
}

// Scorers bundles the five pluggable sub-scorers.
type Scorers struct {
	Relevance       Scorer
	Personalization Scorer
	Clarity         Scorer
	Completeness    Scorer
	ContextFit      Scorer
}

func NewWithScorers(weights Weights, scorers Scorers) *Gate {
	return &Gate{
		weights:         weights,
		relevance:       scorers.Relevance,
		personalization: scorers.Personalization,
		clarity:         scorers.Clarity,
		completeness:    scorers.Completeness,
		contextFit:      scorers.ContextFit,
	}
}

// Evaluate runs the five sub-scorers and combines them. Sub-scores are
// clamped to [0,1] before weighting, so Total is always in [0,1].
func (g *Gate) Evaluate(in Input) Score {
	s := Score{
		Relevance:       clamp01(g.relevance(in)),
		Personalization: clamp01(g.personalization(in)),
		Clarity:         clamp01(g.clarity(in)),
		Completeness:    clamp01(g.completeness(in)),
		ContextFit:      clamp01(g.contextFit(in)),
	}
	s.Total = clamp01(
		g.weights.Relevance*s.Relevance +
			g.weights.Personalization*s.Personalization +
			g.weights.Clarity*s.Clarity +
			g.weights.Completeness*s.Completeness +
			g.weights.ContextFit*s.ContextFit,
	)
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
