package contextstore_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"iris.app/engage/internal/contextstore"
	"iris.app/engage/internal/model"
)

var errTierDown = errors.New("tier unavailable")

type fakeSessionCache struct {
	mu             sync.Mutex
	entries        map[string]*model.ConversationState
	byUser         map[string][]string
	failGet        bool
	failSet        bool
	failInvalidate bool
	touchCalls     int
	setCalls       int
}

func newFakeSessionCache() *fakeSessionCache {
	return &fakeSessionCache{
		entries: map[string]*model.ConversationState{},
		byUser:  map[string][]string{},
	}
}

func (c *fakeSessionCache) Get(_ context.Context, conversationID string) (*model.ConversationState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, errTierDown
	}
	state, ok := c.entries[conversationID]
	if !ok {
		return nil, contextstore.ErrMiss
	}
	return state, nil
}

func (c *fakeSessionCache) Set(_ context.Context, state *model.ConversationState, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setCalls++
	if c.failSet {
		return errTierDown
	}
	c.entries[state.ConversationID] = state
	c.byUser[state.UserID] = append(c.byUser[state.UserID], state.ConversationID)
	return nil
}

func (c *fakeSessionCache) Touch(_ context.Context, _ string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchCalls++
	return nil
}

func (c *fakeSessionCache) Invalidate(_ context.Context, conversationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, conversationID)
	return nil
}

func (c *fakeSessionCache) InvalidateUser(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failInvalidate {
		return errTierDown
	}
	for _, conversationID := range c.byUser[userID] {
		delete(c.entries, conversationID)
	}
	delete(c.byUser, userID)
	return nil
}

type mockProfileStore struct {
	getFn   func(ctx context.Context, userID string) (map[string]string, error)
	mergeFn func(ctx context.Context, userID string, patch map[string]string) error
}

func (m *mockProfileStore) Get(ctx context.Context, userID string) (map[string]string, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockProfileStore) Merge(ctx context.Context, userID string, patch map[string]string) error {
	if m.mergeFn != nil {
		return m.mergeFn(ctx, userID, patch)
	}
	return nil
}

type appendCall struct {
	conversationID string
	turns          []model.Turn
	decision       *model.DecisionRecord
}

type mockTurnLogStore struct {
	mu       sync.Mutex
	appended []appendCall
	appendFn func(ctx context.Context, conversationID, userID string, turns []model.Turn, decision *model.DecisionRecord) error
	listFn   func(ctx context.Context, conversationID string, limit int, since time.Time) ([]model.Turn, error)
}

func (m *mockTurnLogStore) Append(ctx context.Context, conversationID, userID string, turns []model.Turn, decision *model.DecisionRecord) error {
	if m.appendFn != nil {
		if err := m.appendFn(ctx, conversationID, userID, turns, decision); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.appended = append(m.appended, appendCall{conversationID: conversationID, turns: turns, decision: decision})
	m.mu.Unlock()
	return nil
}

func (m *mockTurnLogStore) ListRecent(ctx context.Context, conversationID string, limit int, since time.Time) ([]model.Turn, error) {
	if m.listFn != nil {
		return m.listFn(ctx, conversationID, limit, since)
	}
	return []model.Turn{}, nil
}

func (m *mockTurnLogStore) calls() []appendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]appendCall, len(m.appended))
	copy(out, m.appended)
	return out
}
