package store

import (
	"context"
	"errors"
	"time"

	"iris.app/engage/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ProfileStore is the warm tier: durable per-user profile facts.
type ProfileStore interface {
	// Get returns the stored profile, or ErrNotFound for an unknown user.
	Get(ctx context.Context, userID string) (map[string]string, error)

	// Merge applies patch on top of the stored profile, creating the row
	// if needed. Keys absent from patch are left untouched.
	Merge(ctx context.Context, userID string, patch map[string]string) error
}

// TurnLogStore is the cold tier: the append-only conversation event log.
type TurnLogStore interface {
	// Append writes the turns of one orchestrator invocation atomically.
	// The decision record is attached to the assistant turn.
	Append(ctx context.Context, conversationID, userID string, turns []model.Turn, decision *model.DecisionRecord) error

	// ListRecent returns up to limit turns for a conversation created
	// after since, oldest first.
	ListRecent(ctx context.Context, conversationID string, limit int, since time.Time) ([]model.Turn, error)
}

// Stores bundles the persistent tiers for dependency wiring.
type Stores struct {
	Profiles ProfileStore
	TurnLog  TurnLogStore
}
