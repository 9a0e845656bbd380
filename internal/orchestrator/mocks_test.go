package orchestrator_test

import (
	"context"
	"sync"

	"iris.app/engage/internal/generation"
	"iris.app/engage/internal/model"
)

type mockClassifier struct {
	mu         sync.Mutex
	calls      int
	classifyFn func(ctx context.Context, text string) (model.Perception, error)
}

func (m *mockClassifier) Classify(ctx context.Context, text string) (model.Perception, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.classifyFn != nil {
		return m.classifyFn(ctx, text)
	}
	return model.Perception{Intent: "greeting", Confidence: 0.95, Sentiment: model.SentimentNeutral, Language: "en"}, nil
}

type mockGenerator struct {
	mu         sync.Mutex
	requests   []generation.Request
	generateFn func(ctx context.Context, req generation.Request) (model.Action, error)
}

func (m *mockGenerator) Generate(ctx context.Context, req generation.Request) (model.Action, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	call := len(m.requests)
	m.mu.Unlock()

	if m.generateFn != nil {
		return m.generateFn(ctx, req)
	}
	_ = call
	return model.Action{Text: "generated reply", Strategy: req.Strategy, Generated: true}, nil
}

func (m *mockGenerator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockGenerator) strategies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.requests))
	for i, r := range m.requests {
		out[i] = r.Strategy
	}
	return out
}

type putCall struct {
	turns    []model.Turn
	decision *model.DecisionRecord
}

type fakeContextStore struct {
	mu       sync.Mutex
	states   map[string]*model.ConversationState
	puts     []putCall
	promoted []map[string]string
}

func newFakeContextStore() *fakeContextStore {
	return &fakeContextStore{states: map[string]*model.ConversationState{}}
}

func (f *fakeContextStore) Get(_ context.Context, conversationID, userID string) *model.ConversationState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if state, ok := f.states[conversationID]; ok {
		return state
	}
	state := model.NewConversationState(conversationID, userID)
	f.states[conversationID] = state
	return state
}

func (f *fakeContextStore) Put(_ context.Context, state *model.ConversationState, turns []model.Turn, decision *model.DecisionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	state.Turns = append(state.Turns, turns...)
	state.LastDecision = decision
	f.states[state.ConversationID] = state
	f.puts = append(f.puts, putCall{turns: turns, decision: decision})
	return nil
}

func (f *fakeContextStore) PromoteProfile(_ context.Context, _ string, patch map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.promoted = append(f.promoted, patch)
	return nil
}

func (f *fakeContextStore) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

type recordingPublisher struct {
	mu      sync.Mutex
	records []*model.DecisionRecord
}

func (p *recordingPublisher) Publish(_ context.Context, rec *model.DecisionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, rec)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []*model.DecisionRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*model.DecisionRecord, len(p.records))
	copy(out, p.records)
	return out
}
