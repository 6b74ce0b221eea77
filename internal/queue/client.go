package queue

import (
	"context"
	"time"
)

// Client enqueues jobs. Enqueue returns once the job is durably accepted;
// callers never wait for the job to run.
type Client interface {
	Enqueue(ctx context.Context, kind Kind, payload any) (Handle, error)
}

// Source is the consumer side of a queue backend.
type Source interface {
	// Receive blocks until at least one job is ready or ctx is done.
	Receive(ctx context.Context) ([]Job, error)
	// Complete removes a successfully processed job.
	Complete(ctx context.Context, job Job) error
	// Retry reschedules job to become visible again after delay.
	Retry(ctx context.Context, job Job, delay time.Duration) error
	// Fail records job as terminally failed and retains it for inspection.
	Fail(ctx context.Context, job Job, cause error) error
}
