package model

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Entity is a span the classifier extracted from a message.
type Entity struct {
	Text       string  `json:"text"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Perception is the classifier output for one inbound message.
type Perception struct {
	Intent     string    `json:"intent"`
	Confidence float64   `json:"confidence"`
	Sentiment  Sentiment `json:"sentiment"`
	Urgency    float64   `json:"urgency"`
	Language   string    `json:"language"`
	Entities   []Entity  `json:"entities,omitempty"`
}

// UnknownPerception is the degraded output used when classification fails
// or times out. Zero confidence routes the turn through the low-confidence
// escalation rule.
func UnknownPerception(language string) Perception {
	return Perception{
		Intent:     IntentUnknown,
		Confidence: 0,
		Sentiment:  SentimentNeutral,
		Language:   language,
	}
}
