package driven

import "context"

// TaskQueue enqueues deferred downstream work.
//
// Ingestion guarantees at-most-once persistence of canonical facts,
// not exactly-once delivery downstream: embedding tasks are keyed by
// content hash so the consumer can retry idempotently.
type TaskQueue interface {
	// EnqueueEmbedding schedules embedding generation for the fact
	// identified by contentHash. Fire-and-forget from the caller's
	// perspective; failures are logged, never fatal to ingestion.
	EnqueueEmbedding(ctx context.Context, contentHash string) error
}
