// Package orchestrator drives one inbound message through the decision
// pipeline: load context, classify, apply the escalation policy, generate
// and quality-gate a response, persist the turn, and publish metrics.
//
// Process never returns an error. Every failure along the way degrades to
// a decision the caller can act on, in the worst case a synthetic
// escalation with a static apology.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"iris.app/engage/common/id"
	"iris.app/engage/common/logger"
	"iris.app/engage/internal/contextstore"
	"iris.app/engage/internal/generation"
	"iris.app/engage/internal/metrics"
	"iris.app/engage/internal/model"
	"iris.app/engage/internal/perception"
	"iris.app/engage/internal/policy"
	"iris.app/engage/internal/quality"
	"iris.app/engage/internal/strategy"
)

// ReasonSystemError marks a synthetic escalation produced by boundary
// recovery rather than by a policy rule.
const ReasonSystemError = "system_error"

// ContextStore is the slice of the tiered store the orchestrator uses.
type ContextStore interface {
	Get(ctx context.Context, conversationID, userID string) *model.ConversationState
	Put(ctx context.Context, state *model.ConversationState, turns []model.Turn, decision *model.DecisionRecord) error
	PromoteProfile(ctx context.Context, userID string, patch map[string]string) error
}

type Config struct {
	ClassifyTimeout time.Duration
	ContextTimeout  time.Duration
	GenerateTimeout time.Duration
}

// Inbound is one parsed message ready for a decision.
type Inbound struct {
	ConversationID string
	UserID         string
	Text           string
	Platform       model.Platform
	ExternalID     string
}

// Result is what Process always returns: a decision and the action that
// goes with it.
type Result struct {
	Decision *model.DecisionRecord
	Action   model.Action
	State    *model.ConversationState
}

type Deps struct {
	Classifier perception.Classifier
	Generator  generation.Generator
	Static     *generation.StaticResponder
	Contexts   ContextStore
	Policy     *policy.Policy
	Gate       *quality.Gate
	Strategies *strategy.Table
	Metrics    metrics.Publisher
}

type Orchestrator struct {
	deps  Deps
	cfg   Config
	locks *conversationLocks
	now   func() time.Time
}

func New(deps Deps, cfg Config) *Orchestrator {
	return &Orchestrator{
		deps:  deps,
		cfg:   cfg,
		locks: newConversationLocks(),
		now:   time.Now,
	}
}

// Process runs the full pipeline for one message. Messages for the same
// conversation are processed strictly one at a time, in lock acquisition
// order; different conversations proceed in parallel.
func (o *Orchestrator) Process(ctx context.Context, in Inbound) (res *Result) {
	start := o.now()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ConversationID: logger.Ptr(in.ConversationID),
		UserID:         logger.Ptr(in.UserID),
		Component:      "engage.orchestrator",
	})

	unlock := o.locks.Lock(in.ConversationID)
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "orchestrator panic, recovering to escalation",
				"panic", r, "text", logger.Truncate(in.Text, 200))
			res = o.systemError(ctx, in, start)
		}
	}()

	sc := logger.StartSpan(ctx, "orchestrator.process")
	defer sc.End()
	ctx = sc.Context()

	// Step 1: assemble context. Get is total; worst case is degraded.
	getCtx, cancel := context.WithTimeout(ctx, o.cfg.ContextTimeout)
	state := o.deps.Contexts.Get(getCtx, in.ConversationID, in.UserID)
	cancel()

	// Step 2: classify. Failure degrades to unknown/zero confidence,
	// which the policy turns into a low-confidence escalation.
	p := o.classify(ctx, in.Text)
	ctx = logger.WithLogFields(ctx, logger.LogFields{Intent: logger.Ptr(p.Intent)})
	level := model.ConfidenceLevelFor(p.Confidence)

	// Step 3: escalation policy, evaluated before any generation.
	verdict := o.deps.Policy.Evaluate(policy.Input{
		Intent:     p.Intent,
		Confidence: p.Confidence,
		Urgency:    p.Urgency,
		Sentiment:  p.Sentiment,
		History:    state.Turns,
	})

	var (
		decision *model.DecisionRecord
		action   model.Action
	)
	if verdict.Escalate {
		action = o.deps.Static.EscalationAck(p.Language)
		decision = o.newRecord(in, p, model.TypeEscalateToHuman, level, start)
		decision.EscalationReasons = verdict.Reasons
		decision.Strategy = action.Strategy
		slog.InfoContext(ctx, "escalating to human", "reasons", verdict.Reasons)
	} else {
		// Step 4: generate and quality-gate.
		entry := o.deps.Strategies.Select(model.CategoryFor(p.Intent), level)
		var qualityScore float64
		var fallbackUsed bool
		action, qualityScore, fallbackUsed = o.generate(ctx, in, p, state, entry)

		decision = o.newRecord(in, p, entry.Decision, level, start)
		decision.QualityScore = qualityScore
		decision.FallbackUsed = fallbackUsed
		decision.Strategy = action.Strategy
	}
	decision.ProcessingTimeMs = o.now().Sub(start).Milliseconds()

	// Step 5: persist turns, insights, and learned profile facts.
	o.persist(ctx, in, p, state, decision, action)

	// Step 6: metrics, best-effort.
	if err := o.deps.Metrics.Publish(ctx, decision); err != nil {
		slog.WarnContext(ctx, "metrics publish failed", "error", err)
	}

	slog.InfoContext(ctx, "decision made",
		"decision_type", decision.DecisionType,
		"confidence_level", decision.ConfidenceLevel,
		"quality_score", decision.QualityScore,
		"fallback_used", decision.FallbackUsed,
		"processing_time_ms", decision.ProcessingTimeMs)

	return &Result{Decision: decision, Action: action, State: state}
}

func (o *Orchestrator) classify(ctx context.Context, text string) model.Perception {
	clsCtx, cancel := context.WithTimeout(ctx, o.cfg.ClassifyTimeout)
	defer cancel()

	p, err := o.deps.Classifier.Classify(clsCtx, text)
	if err != nil {
		slog.WarnContext(ctx, "classification failed, degrading to unknown", "error", err)
		return model.UnknownPerception(perception.DetectLanguage(text))
	}
	return p
}

// generate produces the response for a strategy entry. The primary
// strategy gets one attempt; if it fails or scores below the entry's
// threshold, the fallback gets exactly one attempt and its result is
// final. If the fallback itself fails, the static apology is used.
func (o *Orchestrator) generate(ctx context.Context, in Inbound, p model.Perception, state *model.ConversationState, entry strategy.Entry) (model.Action, float64, bool) {
	primary, err := o.callGenerator(ctx, entry.Primary, in, p, state)
	if err == nil {
		score := o.score(primary, in, p, state)
		if score >= entry.QualityThreshold {
			return primary, score, false
		}
		slog.InfoContext(ctx, "primary response below quality threshold, trying fallback",
			"strategy", entry.Primary, "score", score, "threshold", entry.QualityThreshold)
	} else {
		slog.WarnContext(ctx, "primary generation failed, trying fallback",
			"strategy", entry.Primary, "error", err)
	}

	fallback, err := o.callGenerator(ctx, entry.Fallback, in, p, state)
	if err != nil {
		slog.WarnContext(ctx, "fallback generation failed, using static response",
			"strategy", entry.Fallback, "error", err)
		return o.deps.Static.Apology(p.Language), 0, true
	}
	return fallback, o.score(fallback, in, p, state), true
}

func (o *Orchestrator) callGenerator(ctx context.Context, strategyName string, in Inbound, p model.Perception, state *model.ConversationState) (model.Action, error) {
	genCtx, cancel := context.WithTimeout(ctx, o.cfg.GenerateTimeout)
	defer cancel()

	return o.deps.Generator.Generate(genCtx, generation.Request{
		Strategy:   strategyName,
		Message:    in.Text,
		Perception: p,
		State:      state,
	})
}

func (o *Orchestrator) score(action model.Action, in Inbound, p model.Perception, state *model.ConversationState) float64 {
	return o.deps.Gate.Evaluate(quality.Input{
		Response:   action,
		Message:    in.Text,
		Perception: p,
		State:      state,
	}).Total
}

func (o *Orchestrator) persist(ctx context.Context, in Inbound, p model.Perception, state *model.ConversationState, decision *model.DecisionRecord, action model.Action) {
	now := o.now()
	turns := []model.Turn{
		{
			ID:         id.New(),
			Sender:     model.SenderUser,
			Text:       in.Text,
			Language:   p.Language,
			Intent:     p.Intent,
			Sentiment:  p.Sentiment,
			Confidence: p.Confidence,
			Timestamp:  now,
		},
		{
			ID:           id.New(),
			Sender:       model.SenderAssistant,
			Text:         action.Text,
			Language:     p.Language,
			DecisionType: decision.DecisionType,
			Timestamp:    now,
		},
	}

	if state.Platform == "" {
		state.Platform = in.Platform
	}
	contextstore.UpdateInsights(state, p)

	patch := contextstore.BuildProfilePatch(state.UserProfile, in.Text, p, in.Platform)
	for k, v := range patch {
		state.UserProfile[k] = v
	}

	putCtx, cancel := context.WithTimeout(ctx, o.cfg.ContextTimeout)
	defer cancel()

	if err := o.deps.Contexts.Put(putCtx, state, turns, decision); err != nil {
		slog.WarnContext(ctx, "context put failed", "error", err)
	}
	if err := o.deps.Contexts.PromoteProfile(putCtx, in.UserID, patch); err != nil {
		slog.WarnContext(ctx, "profile promotion failed", "error", err)
	}
}

func (o *Orchestrator) newRecord(in Inbound, p model.Perception, decisionType model.Type, level model.ConfidenceLevel, start time.Time) *model.DecisionRecord {
	return &model.DecisionRecord{
		ID:              id.New(),
		ConversationID:  in.ConversationID,
		UserID:          in.UserID,
		DecisionType:    decisionType,
		ConfidenceLevel: level,
		ConfidenceScore: p.Confidence,
		Intent:          p.Intent,
		CreatedAt:       start,
	}
}

// systemError is the boundary recovery path: a synthetic escalation that
// stands in for whatever the pipeline failed to produce. Persistence is
// skipped because the state may be mid-mutation; metrics still record
// the failure.
func (o *Orchestrator) systemError(ctx context.Context, in Inbound, start time.Time) *Result {
	language := perception.DetectLanguage(in.Text)
	action := o.deps.Static.Apology(language)

	decision := &model.DecisionRecord{
		ID:                id.New(),
		ConversationID:    in.ConversationID,
		UserID:            in.UserID,
		DecisionType:      model.TypeEscalateToHuman,
		ConfidenceLevel:   model.ConfidenceLow,
		Intent:            model.IntentUnknown,
		Strategy:          action.Strategy,
		EscalationReasons: []string{ReasonSystemError},
		ProcessingTimeMs:  o.now().Sub(start).Milliseconds(),
		CreatedAt:         start,
	}

	if err := o.deps.Metrics.Publish(ctx, decision); err != nil {
		slog.WarnContext(ctx, "metrics publish failed for system error", "error", err)
	}

	return &Result{Decision: decision, Action: action}
}
