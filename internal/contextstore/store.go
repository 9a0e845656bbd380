// Package contextstore assembles conversation context from three tiers:
// a Redis hot cache, a Postgres profile store (warm), and a Postgres
// append-only turn log (cold). Reads are total: every failure degrades to
// a usable default instead of propagating.
package contextstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"iris.app/engage/common/logger"
	"iris.app/engage/internal/model"
	"iris.app/engage/internal/store"
)

type Config struct {
	HotTTL           time.Duration
	HotTurnLimit     int
	RebuildTurnLimit int
	RebuildWindow    time.Duration

	// Timeout for asynchronous cold-tier writes.
	WriteTimeout time.Duration
}

type TieredStore struct {
	hot    SessionCache
	stores store.Stores
	cfg    Config
	writer *coldWriter
	now    func() time.Time
}

func NewTieredStore(hot SessionCache, stores store.Stores, cfg Config) *TieredStore {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &TieredStore{
		hot:    hot,
		stores: stores,
		cfg:    cfg,
		writer: newColdWriter(stores.TurnLog, cfg.WriteTimeout),
		now:    time.Now,
	}
}

// Get returns the conversation state. It never fails: a hot miss triggers
// a rebuild from the warm and cold tiers, and if those are unreachable
// too, the returned state is empty and marked Degraded.
func (s *TieredStore) Get(ctx context.Context, conversationID, userID string) *model.ConversationState {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ConversationID: logger.Ptr(conversationID),
		UserID:         logger.Ptr(userID),
		Component:      "engage.contextstore",
	})

	state, err := s.hot.Get(ctx, conversationID)
	if err == nil {
		// Sliding TTL: reads keep active sessions hot.
		if err := s.hot.Touch(ctx, conversationID, s.cfg.HotTTL); err != nil {
			slog.DebugContext(ctx, "hot tier ttl refresh failed", "error", err)
		}
		return state
	}
	if !errors.Is(err, ErrMiss) {
		slog.WarnContext(ctx, "hot tier read failed, rebuilding", "error", err)
	}

	return s.rebuild(ctx, conversationID, userID)
}

func (s *TieredStore) rebuild(ctx context.Context, conversationID, userID string) *model.ConversationState {
	state := model.NewConversationState(conversationID, userID)

	warmFailed := false
	profile, err := s.stores.Profiles.Get(ctx, userID)
	switch {
	case err == nil:
		state.UserProfile = profile
	case errors.Is(err, store.ErrNotFound):
		// New user, empty profile is correct.
	default:
		warmFailed = true
		slog.WarnContext(ctx, "warm tier read failed", "error", err)
	}

	coldFailed := false
	since := s.now().Add(-s.cfg.RebuildWindow)
	turns, err := s.stores.TurnLog.ListRecent(ctx, conversationID, s.cfg.RebuildTurnLimit, since)
	if err != nil {
		coldFailed = true
		slog.WarnContext(ctx, "cold tier read failed", "error", err)
	} else {
		state.AppendTurns(s.cfg.HotTurnLimit, turns...)
	}

	state.Degraded = warmFailed && coldFailed
	if state.Degraded {
		slog.ErrorContext(ctx, "all persistent tiers unavailable, serving degraded state")
		return state
	}

	if err := s.hot.Set(ctx, state, s.cfg.HotTTL); err != nil {
		slog.WarnContext(ctx, "hot tier write failed after rebuild", "error", err)
	}
	return state
}

// Put commits the turns of one orchestrator invocation: the state is
// updated and written to the hot tier synchronously, then the turns are
// queued for the cold tier. Cold-tier ordering per conversation follows
// Put order. The returned error reports a failed hot write only; the
// cold append still happens.
func (s *TieredStore) Put(ctx context.Context, state *model.ConversationState, turns []model.Turn, decision *model.DecisionRecord) error {
	state.AppendTurns(s.cfg.HotTurnLimit, turns...)
	state.LastDecision = decision

	hotErr := s.hot.Set(ctx, state, s.cfg.HotTTL)

	s.writer.Enqueue(coldJob{
		conversationID: state.ConversationID,
		userID:         state.UserID,
		turns:          turns,
		decision:       decision,
	})

	return hotErr
}

// PromoteProfile merges facts learned during a conversation turn into
// the warm tier. The orchestrator's Put carries the same facts in the
// hot state, so this path needs no invalidation.
func (s *TieredStore) PromoteProfile(ctx context.Context, userID string, patch map[string]string) error {
	return s.stores.Profiles.Merge(ctx, userID, patch)
}

// PromoteProfileExternal merges a patch that did not flow through a
// conversation turn, e.g. a CRM import. The user's hot sessions hold a
// copy of the profile, so they are dropped after the merge; the next Get
// rebuilds them from the warm tier.
func (s *TieredStore) PromoteProfileExternal(ctx context.Context, userID string, patch map[string]string) error {
	if err := s.stores.Profiles.Merge(ctx, userID, patch); err != nil {
		return err
	}
	if err := s.hot.InvalidateUser(ctx, userID); err != nil {
		return fmt.Errorf("invalidating hot sessions for user %s: %w", userID, err)
	}
	return nil
}

// Invalidate drops the hot-tier entry, forcing the next Get to rebuild.
func (s *TieredStore) Invalidate(ctx context.Context, conversationID string) error {
	return s.hot.Invalidate(ctx, conversationID)
}

// Close waits for queued cold-tier writes to be attempted.
func (s *TieredStore) Close() {
	s.writer.Wait()
}
