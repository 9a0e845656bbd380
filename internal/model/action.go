package model

// Action is the response content a decision carries back to the channel.
type Action struct {
	Text     string            `json:"text"`
	Strategy string            `json:"strategy,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	// Generated is false for static template responses.
	Generated bool `json:"generated"`
}
