package handler_test

import (
	"context"

	"iris.app/engage/internal/model"
	"iris.app/engage/internal/orchestrator"
	"iris.app/engage/internal/queue"
)

type mockProducer struct {
	enqueueFn func(ctx context.Context, msg queue.InboundMessage) error
	enqueued  []queue.InboundMessage
}

func (m *mockProducer) Enqueue(ctx context.Context, msg queue.InboundMessage) error {
	m.enqueued = append(m.enqueued, msg)
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, msg)
	}
	return nil
}

func (m *mockProducer) Close() error { return nil }

type mockProcessor struct {
	processFn func(ctx context.Context, in orchestrator.Inbound) *orchestrator.Result
}

func (m *mockProcessor) Process(ctx context.Context, in orchestrator.Inbound) *orchestrator.Result {
	if m.processFn != nil {
		return m.processFn(ctx, in)
	}
	return &orchestrator.Result{
		Decision: &model.DecisionRecord{
			ConversationID: in.ConversationID,
			UserID:         in.UserID,
			DecisionType:   model.TypeDirectResponse,
		},
		Action: model.Action{Text: "hi", Generated: true},
	}
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

type mockPromoter struct {
	promoteFn func(ctx context.Context, userID string, patch map[string]string) error
	promoted  []map[string]string
}

func (m *mockPromoter) PromoteProfileExternal(ctx context.Context, userID string, patch map[string]string) error {
	m.promoted = append(m.promoted, patch)
	if m.promoteFn != nil {
		return m.promoteFn(ctx, userID, patch)
	}
	return nil
}
