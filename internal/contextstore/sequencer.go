package contextstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"iris.app/engage/common/logger"
	"iris.app/engage/internal/model"
	"iris.app/engage/internal/store"
)

type coldJob struct {
	conversationID string
	userID         string
	turns          []model.Turn
	decision       *model.DecisionRecord
}

// coldWriter applies cold-tier appends asynchronously while preserving
// per-conversation FIFO order. Each conversation has at most one drain
// goroutine at a time; the goroutine exits once its queue is empty.
type coldWriter struct {
	turnlog store.TurnLogStore
	timeout time.Duration

	mu      sync.Mutex
	queues  map[string][]coldJob
	running map[string]bool
	wg      sync.WaitGroup
}

func newColdWriter(turnlog store.TurnLogStore, timeout time.Duration) *coldWriter {
	return &coldWriter{
		turnlog: turnlog,
		timeout: timeout,
		queues:  make(map[string][]coldJob),
		running: make(map[string]bool),
	}
}

func (w *coldWriter) Enqueue(job coldJob) {
	w.mu.Lock()
	w.queues[job.conversationID] = append(w.queues[job.conversationID], job)
	if !w.running[job.conversationID] {
		w.running[job.conversationID] = true
		w.wg.Add(1)
		go w.drain(job.conversationID)
	}
	w.mu.Unlock()
}

func (w *coldWriter) drain(conversationID string) {
	defer w.wg.Done()

	for {
		w.mu.Lock()
		queue := w.queues[conversationID]
		if len(queue) == 0 {
			delete(w.queues, conversationID)
			w.running[conversationID] = false
			w.mu.Unlock()
			return
		}
		job := queue[0]
		w.queues[conversationID] = queue[1:]
		w.mu.Unlock()

		w.write(job)
	}
}

func (w *coldWriter) write(job coldJob) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ConversationID: logger.Ptr(job.conversationID),
		Component:      "engage.contextstore.coldwriter",
	})

	if err := w.turnlog.Append(ctx, job.conversationID, job.userID, job.turns, job.decision); err != nil {
		// Cold-tier writes are best-effort; the hot tier already holds
		// the turns, so the conversation keeps moving.
		slog.WarnContext(ctx, "cold tier append failed", "error", err, "turns", len(job.turns))
	}
}

// Wait blocks until every queued write has been attempted. Used during
// graceful shutdown.
func (w *coldWriter) Wait() {
	w.wg.Wait()
}
