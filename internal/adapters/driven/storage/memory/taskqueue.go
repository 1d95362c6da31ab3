package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/gitpulse/internal/core/ports/driven"
)

// Ensure TaskQueue implements the interface.
var _ driven.TaskQueue = (*TaskQueue)(nil)

// TaskQueue is an in-memory implementation of driven.TaskQueue.
// Enqueued hashes are recorded in order for inspection by tests.
type TaskQueue struct {
	mu     sync.Mutex
	hashes []string
}

// NewTaskQueue creates a new in-memory task queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{}
}

// EnqueueEmbedding records an embedding task for the content hash.
func (q *TaskQueue) EnqueueEmbedding(_ context.Context, contentHash string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.hashes = append(q.hashes, contentHash)
	return nil
}

// Enqueued returns the recorded content hashes. Test helper.
func (q *TaskQueue) Enqueued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.hashes...)
}
