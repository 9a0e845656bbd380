package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"iris.app/engage/core/config"
	"iris.app/engage/internal/generation"
	"iris.app/engage/internal/model"
	"iris.app/engage/internal/orchestrator"
	"iris.app/engage/internal/policy"
	"iris.app/engage/internal/quality"
	"iris.app/engage/internal/strategy"
)

// textScore drives the quality gate from the response text itself:
// anything containing "weak" scores 0.2, everything else 1.0.
func textScore(in quality.Input) float64 {
	if strings.Contains(in.Response.Text, "weak") {
		return 0.2
	}
	return 1.0
}

var _ = Describe("Orchestrator", func() {
	var (
		ctx        context.Context
		classifier *mockClassifier
		generator  *mockGenerator
		contexts   *fakeContextStore
		publisher  *recordingPublisher
		orch       *orchestrator.Orchestrator
	)

	newOrchestrator := func() *orchestrator.Orchestrator {
		table, err := strategy.NewTable(config.QualityConfig{
			DirectThreshold:        0.8,
			ClarificationThreshold: 0.6,
			InfoGatherThreshold:    0.5,
			WorkflowThreshold:      0.7,
		})
		Expect(err).NotTo(HaveOccurred())

		gate := quality.NewWithScorers(quality.DefaultWeights(), quality.Scorers{
			Relevance:       textScore,
			Personalization: textScore,
			Clarity:         textScore,
			Completeness:    textScore,
			ContextFit:      textScore,
		})

		return orchestrator.New(orchestrator.Deps{
			Classifier: classifier,
			Generator:  generator,
			Static:     generation.NewStaticResponder(),
			Contexts:   contexts,
			Policy:     policy.New(policy.DefaultConfig()),
			Gate:       gate,
			Strategies: table,
			Metrics:    publisher,
		}, orchestrator.Config{
			ClassifyTimeout: time.Second,
			ContextTimeout:  time.Second,
			GenerateTimeout: time.Second,
		})
	}

	inbound := func(text string) orchestrator.Inbound {
		return orchestrator.Inbound{
			ConversationID: "c1",
			UserID:         "u1",
			Text:           text,
			Platform:       model.PlatformWeb,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		classifier = &mockClassifier{}
		generator = &mockGenerator{}
		contexts = newFakeContextStore()
		publisher = &recordingPublisher{}
		orch = newOrchestrator()
	})

	Describe("direct response path", func() {
		It("answers a confident greeting with one generation call", func() {
			result := orch.Process(ctx, inbound("hello there"))

			Expect(result.Decision.DecisionType).To(Equal(model.TypeDirectResponse))
			Expect(result.Decision.ConfidenceLevel).To(Equal(model.ConfidenceHigh))
			Expect(result.Decision.FallbackUsed).To(BeFalse())
			Expect(result.Decision.EscalationReasons).To(BeEmpty())
			Expect(result.Action.Text).To(Equal("generated reply"))
			Expect(generator.strategies()).To(Equal([]string{strategy.DirectAnswer}))
		})

		It("persists both turns of the exchange and the decision", func() {
			result := orch.Process(ctx, inbound("hello there"))

			Expect(contexts.puts).To(HaveLen(1))
			put := contexts.puts[0]
			Expect(put.turns).To(HaveLen(2))
			Expect(put.turns[0].Sender).To(Equal(model.SenderUser))
			Expect(put.turns[0].Intent).To(Equal("greeting"))
			Expect(put.turns[1].Sender).To(Equal(model.SenderAssistant))
			Expect(put.turns[1].DecisionType).To(Equal(model.TypeDirectResponse))
			Expect(put.decision).To(Equal(result.Decision))
		})

		It("promotes learned profile facts and publishes metrics", func() {
			result := orch.Process(ctx, inbound("hello there"))

			Expect(contexts.promoted).To(HaveLen(1))
			Expect(contexts.promoted[0]).To(HaveKeyWithValue("interactions", "1"))

			published := publisher.published()
			Expect(published).To(HaveLen(1))
			Expect(published[0]).To(Equal(result.Decision))
			Expect(published[0].ProcessingTimeMs).To(BeNumerically(">=", 0))
		})
	})

	Describe("confidence gating", func() {
		It("asks for clarification when the classifier is unsure but above the floor", func() {
			classifier.classifyFn = func(context.Context, string) (model.Perception, error) {
				return model.Perception{Intent: "order_status", Confidence: 0.4, Sentiment: model.SentimentNeutral, Language: "en"}, nil
			}

			result := orch.Process(ctx, inbound("hmm the thing"))

			Expect(result.Decision.DecisionType).To(Equal(model.TypeClarificationNeeded))
			Expect(result.Decision.ConfidenceLevel).To(Equal(model.ConfidenceLow))
			Expect(generator.strategies()).To(Equal([]string{strategy.ClarifyingQuestion}))
		})
	})

	Describe("escalation paths", func() {
		It("escalates an explicit human request without generating", func() {
			classifier.classifyFn = func(context.Context, string) (model.Perception, error) {
				return model.Perception{Intent: "talk_to_human", Confidence: 0.95, Sentiment: model.SentimentNeutral, Language: "en"}, nil
			}

			result := orch.Process(ctx, inbound("let me talk to a person"))

			Expect(result.Decision.DecisionType).To(Equal(model.TypeEscalateToHuman))
			Expect(result.Decision.EscalationReasons).To(Equal([]string{policy.ReasonExplicitRequest}))
			Expect(result.Action.Generated).To(BeFalse())
			Expect(generator.callCount()).To(BeZero())
		})

		It("escalates after repeated complaints regardless of the current intent", func() {
			state := model.NewConversationState("c1", "u1")
			for i := 0; i < 3; i++ {
				state.Turns = append(state.Turns,
					model.Turn{Sender: model.SenderUser, Intent: "complaint", Text: "still broken"},
					model.Turn{Sender: model.SenderAssistant, Text: "sorry"},
				)
			}
			contexts.states["c1"] = state

			result := orch.Process(ctx, inbound("ok whatever"))

			Expect(result.Decision.DecisionType).To(Equal(model.TypeEscalateToHuman))
			Expect(result.Decision.EscalationReasons).To(ContainElement(policy.ReasonRepeatedFailures))
			Expect(generator.callCount()).To(BeZero())
		})

		It("turns a classifier failure into a low-confidence escalation", func() {
			classifier.classifyFn = func(context.Context, string) (model.Perception, error) {
				return model.Perception{}, errors.New("llm unavailable")
			}

			result := orch.Process(ctx, inbound("สวัสดีค่ะ"))

			Expect(result.Decision.DecisionType).To(Equal(model.TypeEscalateToHuman))
			Expect(result.Decision.EscalationReasons).To(Equal([]string{policy.ReasonLowConfidence}))
			Expect(result.Decision.Intent).To(Equal(model.IntentUnknown))
			// Language fell back to detection: the ack is in Thai.
			Expect(result.Action.Text).To(ContainSubstring("เจ้าหน้าที่"))
		})
	})

	Describe("quality fallback", func() {
		It("retries once with the fallback strategy when the primary scores low", func() {
			generator.generateFn = func(_ context.Context, req generation.Request) (model.Action, error) {
				if req.Strategy == strategy.DirectAnswer {
					return model.Action{Text: "weak answer", Strategy: req.Strategy, Generated: true}, nil
				}
				return model.Action{Text: "solid template reply", Strategy: req.Strategy, Generated: true}, nil
			}

			result := orch.Process(ctx, inbound("hello there"))

			Expect(generator.strategies()).To(Equal([]string{strategy.DirectAnswer, strategy.TemplateReply}))
			Expect(result.Decision.FallbackUsed).To(BeTrue())
			Expect(result.Action.Text).To(Equal("solid template reply"))
		})

		It("accepts the fallback result even when it also scores low", func() {
			generator.generateFn = func(_ context.Context, req generation.Request) (model.Action, error) {
				return model.Action{Text: "weak " + req.Strategy, Strategy: req.Strategy, Generated: true}, nil
			}

			result := orch.Process(ctx, inbound("hello there"))

			Expect(generator.callCount()).To(Equal(2), "never more than two generation calls")
			Expect(result.Decision.FallbackUsed).To(BeTrue())
			Expect(result.Action.Text).To(Equal("weak " + strategy.TemplateReply))
		})

		It("falls back once when the primary call errors", func() {
			generator.generateFn = func(_ context.Context, req generation.Request) (model.Action, error) {
				if req.Strategy == strategy.DirectAnswer {
					return model.Action{}, errors.New("timeout")
				}
				return model.Action{Text: "recovered reply", Strategy: req.Strategy, Generated: true}, nil
			}

			result := orch.Process(ctx, inbound("hello there"))

			Expect(result.Decision.FallbackUsed).To(BeTrue())
			Expect(result.Action.Text).To(Equal("recovered reply"))
		})

		It("serves the static apology when both generation calls fail", func() {
			generator.generateFn = func(context.Context, generation.Request) (model.Action, error) {
				return model.Action{}, errors.New("llm down")
			}

			result := orch.Process(ctx, inbound("hello there"))

			Expect(generator.callCount()).To(Equal(2))
			Expect(result.Decision.FallbackUsed).To(BeTrue())
			Expect(result.Decision.QualityScore).To(BeZero())
			Expect(result.Action.Generated).To(BeFalse())
			Expect(result.Action.Text).NotTo(BeEmpty())
		})
	})

	Describe("boundary recovery", func() {
		It("recovers a panic into a synthetic escalation", func() {
			classifier.classifyFn = func(context.Context, string) (model.Perception, error) {
				panic("classifier exploded")
			}

			var result *orchestrator.Result
			Expect(func() { result = orch.Process(ctx, inbound("hello")) }).NotTo(Panic())

			Expect(result).NotTo(BeNil())
			Expect(result.Decision.DecisionType).To(Equal(model.TypeEscalateToHuman))
			Expect(result.Decision.EscalationReasons).To(Equal([]string{orchestrator.ReasonSystemError}))
			Expect(result.Action.Generated).To(BeFalse())
			Expect(contexts.putCount()).To(BeZero(), "mid-mutation state must not be persisted")
			Expect(publisher.published()).To(HaveLen(1))
		})
	})

	Describe("per-conversation sequencing", func() {
		It("loses no turns under concurrent sends to one conversation", func() {
			const senders = 20
			var wg sync.WaitGroup
			wg.Add(senders)
			for i := 0; i < senders; i++ {
				go func(i int) {
					defer wg.Done()
					defer GinkgoRecover()
					orch.Process(ctx, inbound(fmt.Sprintf("message %d", i)))
				}(i)
			}
			wg.Wait()

			Expect(contexts.putCount()).To(Equal(senders))
			state := contexts.states["c1"]
			Expect(state.Turns).To(HaveLen(senders * 2))

			// Every exchange is intact: user turn immediately followed by
			// the assistant turn that answered it.
			for i := 0; i < len(state.Turns); i += 2 {
				Expect(state.Turns[i].Sender).To(Equal(model.SenderUser))
				Expect(state.Turns[i+1].Sender).To(Equal(model.SenderAssistant))
			}
		})
	})
})
