package worker_test

import (
	"context"
	"sync"

	"iris.app/engage/internal/model"
	"iris.app/engage/internal/orchestrator"
	"iris.app/engage/internal/queue"
)

type fakeConsumer struct {
	mu          sync.Mutex
	maxAttempts int
	reads       [][]queue.Message
	acked       []string
	requeued    []string
	dlq         []string
	dlqErrors   []string
}

// Read pops one pre-loaded batch per call, then returns empty batches.
func (f *fakeConsumer) Read(context.Context) ([]queue.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reads) == 0 {
		return nil, nil
	}
	batch := f.reads[0]
	f.reads = f.reads[1:]
	return batch, nil
}

func (f *fakeConsumer) ackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

func (f *fakeConsumer) requeuedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requeued...)
}

func (f *fakeConsumer) dlqIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dlq...)
}

func (f *fakeConsumer) Ack(_ context.Context, msg queue.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, msg.ID)
	return nil
}

func (f *fakeConsumer) Requeue(_ context.Context, msg queue.Message, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeued = append(f.requeued, msg.ID)
	return nil
}

func (f *fakeConsumer) SendDLQ(_ context.Context, msg queue.Message, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dlq = append(f.dlq, msg.ID)
	f.dlqErrors = append(f.dlqErrors, errMsg)
	return nil
}

func (f *fakeConsumer) MaxAttempts() int { return f.maxAttempts }

type stubProcessor struct {
	mu        sync.Mutex
	processFn func(ctx context.Context, in orchestrator.Inbound) *orchestrator.Result
	inbounds  []orchestrator.Inbound
}

func (s *stubProcessor) Process(ctx context.Context, in orchestrator.Inbound) *orchestrator.Result {
	s.mu.Lock()
	s.inbounds = append(s.inbounds, in)
	s.mu.Unlock()
	if s.processFn != nil {
		return s.processFn(ctx, in)
	}
	return &orchestrator.Result{
		Decision: &model.DecisionRecord{
			ID:             1,
			ConversationID: in.ConversationID,
			UserID:         in.UserID,
			DecisionType:   model.TypeDirectResponse,
		},
		Action: model.Action{Text: "ok", Generated: true},
	}
}

type stubDeliverer struct {
	mu        sync.Mutex
	deliverFn func(ctx context.Context, decision *model.DecisionRecord, action model.Action) error
	delivered []*model.DecisionRecord
}

func (s *stubDeliverer) Deliver(ctx context.Context, decision *model.DecisionRecord, action model.Action) error {
	s.mu.Lock()
	s.delivered = append(s.delivered, decision)
	s.mu.Unlock()
	if s.deliverFn != nil {
		return s.deliverFn(ctx, decision, action)
	}
	return nil
}
