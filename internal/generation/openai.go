package generation

import (
	"context"
	"fmt"
	"strings"

	"iris.app/engage/common/llm"
	"iris.app/engage/internal/model"
	"iris.app/engage/internal/strategy"
)

const promptTurnWindow = 6

var strategyInstructions = map[string]string{
	strategy.DirectAnswer:       "Answer the customer's message directly and completely.",
	strategy.ServiceRecovery:    "The customer is unhappy. Acknowledge the problem, apologize sincerely, and offer a concrete next step.",
	strategy.ProbeDetails:       "You need more information before you can fully help. Ask for the one or two most useful missing details, and share what you already can.",
	strategy.ClarifyingQuestion: "The customer's request is ambiguous. Ask one short clarifying question.",
	strategy.WorkflowKickoff:    "Confirm you are starting the requested process and state what will happen next and what you need from the customer.",
	strategy.TemplateReply:      "Reply with one short, safe, friendly sentence appropriate for a customer-service chat.",
}

type llmGenerator struct {
	client    llm.Client
	maxTokens int
}

// NewGenerator creates the LLM-backed generator.
func NewGenerator(client llm.Client, maxTokens int) Generator {
	return &llmGenerator{client: client, maxTokens: maxTokens}
}

func (g *llmGenerator) Generate(ctx context.Context, req Request) (model.Action, error) {
	text, err := g.client.Complete(ctx, llm.Request{
		SystemPrompt: systemPrompt(req),
		UserPrompt:   req.Message,
		MaxTokens:    g.maxTokens,
	})
	if err != nil {
		return model.Action{}, fmt.Errorf("generating %s response: %w", req.Strategy, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return model.Action{}, fmt.Errorf("generating %s response: empty completion", req.Strategy)
	}

	return model.Action{
		Text:      text,
		Strategy:  req.Strategy,
		Generated: true,
	}, nil
}

func systemPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are a customer-service assistant.\n")

	instruction, ok := strategyInstructions[req.Strategy]
	if !ok {
		instruction = strategyInstructions[strategy.DirectAnswer]
	}
	b.WriteString(instruction)
	b.WriteString("\nRespond in the customer's language (" + req.Perception.Language + "). Keep it under three sentences.\n")

	if req.State != nil {
		if name := req.State.UserProfile["name"]; name != "" {
			b.WriteString("The customer's name is " + name + ".\n")
		}
		if style := req.State.UserProfile["communication_style"]; style != "" {
			b.WriteString("Match a " + style + " tone.\n")
		}
		if turns := recentTranscript(req.State); turns != "" {
			b.WriteString("Recent conversation:\n" + turns)
		}
	}
	return b.String()
}

func recentTranscript(state *model.ConversationState) string {
	turns := state.Turns
	if len(turns) > promptTurnWindow {
		turns = turns[len(turns)-promptTurnWindow:]
	}

	var b strings.Builder
	for _, t := range turns {
		b.WriteString(string(t.Sender))
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	return b.String()
}
