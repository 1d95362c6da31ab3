package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/gitpulse/internal/core/ports/driven"
)

// taskQueue implements driven.TaskQueue on the embedding_tasks table.
// Enqueueing the same content hash twice is a no-op, so the ingest
// path can enqueue unconditionally after every insert.
type taskQueue struct {
	store *Store
}

var _ driven.TaskQueue = (*taskQueue)(nil)

// EnqueueEmbedding records an embedding task for the content hash.
func (q *taskQueue) EnqueueEmbedding(ctx context.Context, contentHash string) error {
	_, err := q.store.db.ExecContext(ctx, `
		INSERT INTO embedding_tasks (content_hash, enqueued_at)
		VALUES (?, ?)
		ON CONFLICT(content_hash) DO NOTHING
	`, contentHash, time.Now().UTC().Format(time.RFC3339))

	if err != nil {
		return fmt.Errorf("enqueueing embedding task: %w", err)
	}
	return nil
}
