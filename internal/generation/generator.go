// Package generation produces response text for a selected strategy.
package generation

import (
	"context"

	"iris.app/engage/internal/model"
)

// Request carries everything a strategy needs to produce a response.
type Request struct {
	Strategy   string
	Message    string
	Perception model.Perception
	State      *model.ConversationState
}

// Generator produces a candidate response. Implementations must respect
// ctx cancellation; callers enforce the timeout.
type Generator interface {
	Generate(ctx context.Context, req Request) (model.Action, error)
}
