// Package perception turns raw inbound text into a structured Perception:
// intent, confidence, sentiment, urgency, language, and entities.
package perception

import (
	"context"
	"fmt"
	"strings"

	"iris.app/engage/common/llm"
	"iris.app/engage/internal/model"
)

// Classifier classifies one inbound message. Implementations must respect
// ctx cancellation; callers enforce the timeout.
type Classifier interface {
	Classify(ctx context.Context, text string) (model.Perception, error)
}

const systemPrompt = `You classify customer-service messages. Return:
- intent: one of greeting, goodbye, compliment, product_inquiry, pricing,
  availability, support_request, technical_issue, complaint, order_status,
  order_cancellation, refund_request, account_update, billing_dispute,
  fraud_report, legal_question, human_agent, or unknown
- confidence: how sure you are about the intent, 0.0 to 1.0
- sentiment: positive, neutral, or negative
- urgency: how urgent the message is, 0.0 to 1.0
- language: ISO 639-1 code of the message language
- entities: notable spans such as order numbers, product names, amounts`

// classification mirrors the structured-output schema.
type classification struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Sentiment  string  `json:"sentiment"`
	Urgency    float64 `json:"urgency"`
	Language   string  `json:"language"`
	Entities   []struct {
		Text       string  `json:"text"`
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"entities"`
}

var classificationSchema = llm.GenerateSchema[classification]()

type llmClassifier struct {
	client    llm.Client
	maxTokens int
}

// NewClassifier creates the LLM-backed classifier.
func NewClassifier(client llm.Client, maxTokens int) Classifier {
	return &llmClassifier{client: client, maxTokens: maxTokens}
}

func (c *llmClassifier) Classify(ctx context.Context, text string) (model.Perception, error) {
	var out classification
	_, err := c.client.Chat(ctx, llm.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   text,
		SchemaName:   "message_classification",
		Schema:       classificationSchema,
		MaxTokens:    c.maxTokens,
		Temperature:  llm.Temp(0),
	}, &out)
	if err != nil {
		return model.Perception{}, fmt.Errorf("classifying message: %w", err)
	}

	return normalize(out, text), nil
}

// normalize sanitizes model output: clamps scores, canonicalizes enums,
// and fills a missing language from the heuristic detector.
func normalize(out classification, text string) model.Perception {
	p := model.Perception{
		Intent:     strings.ToLower(strings.TrimSpace(out.Intent)),
		Confidence: clamp01(out.Confidence),
		Urgency:    clamp01(out.Urgency),
		Language:   strings.ToLower(strings.TrimSpace(out.Language)),
	}
	if p.Intent == "" {
		p.Intent = model.IntentUnknown
	}
	if p.Language == "" {
		p.Language = DetectLanguage(text)
	}

	switch model.Sentiment(strings.ToLower(out.Sentiment)) {
	case model.SentimentPositive:
		p.Sentiment = model.SentimentPositive
	case model.SentimentNegative:
		p.Sentiment = model.SentimentNegative
	default:
		p.Sentiment = model.SentimentNeutral
	}

	for _, e := range out.Entities {
		if e.Text == "" {
			continue
		}
		p.Entities = append(p.Entities, model.Entity{
			Text:       e.Text,
			Label:      strings.ToLower(e.Label),
			Confidence: clamp01(e.Confidence),
		})
	}
	return p
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
