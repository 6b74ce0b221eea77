package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultMemoryBatch = 10

// Stats is a point-in-time view of an in-process queue.
type Stats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Delayed   int `json:"delayed"`
	Failed    int `json:"failed"`
	Completed int `json:"completed"`
}

type memoryEntry struct {
	job     Job
	readyAt time.Time
}

// MemoryQueue is an in-process queue used when no durable backend is configured.
// Exhausted jobs are kept in memory for inspection.
type MemoryQueue struct {
	mu        sync.Mutex
	policy    RetryPolicy
	waiting   []memoryEntry
	active    map[string]Job
	failed    []Job
	completed int
	notify    chan struct{}
	now       func() time.Time
	batch     int
}

// NewMemoryQueue constructs a MemoryQueue stamping jobs with policy.
func NewMemoryQueue(policy RetryPolicy) *MemoryQueue {
	return &MemoryQueue{
		policy: policy.Normalize(),
		active: make(map[string]Job),
		notify: make(chan struct{}, 1),
		now:    time.Now,
		batch:  defaultMemoryBatch,
	}
}

// Enqueue appends a new job that is immediately ready.
func (q *MemoryQueue) Enqueue(ctx context.Context, kind Kind, payload any) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	job, err := newJob(kind, payload, q.policy, q.now())
	if err != nil {
		return Handle{}, err
	}

	q.mu.Lock()
	q.waiting = append(q.waiting, memoryEntry{job: job, readyAt: job.EnqueuedAt})
	q.mu.Unlock()
	q.signal()

	return Handle{JobID: job.ID, Kind: job.Kind}, nil
}

// Receive returns ready jobs, waiting for the earliest delayed job or a new enqueue.
func (q *MemoryQueue) Receive(ctx context.Context) ([]Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		q.mu.Lock()
		now := q.now()
		var (
			ready   []Job
			nextAt  time.Time
			pending = make([]memoryEntry, 0, len(q.waiting))
		)
		for _, e := range q.waiting {
			if !e.readyAt.After(now) && len(ready) < q.batch {
				e.job.Receipt = e.job.ID
				ready = append(ready, e.job)
				q.active[e.job.ID] = e.job
				continue
			}
			if e.readyAt.After(now) && (nextAt.IsZero() || e.readyAt.Before(nextAt)) {
				nextAt = e.readyAt
			}
			pending = append(pending, e)
		}
		q.waiting = pending
		q.mu.Unlock()

		if len(ready) > 0 {
			return ready, nil
		}

		var (
			t     *time.Timer
			timer <-chan time.Time
		)
		if !nextAt.IsZero() {
			t = time.NewTimer(nextAt.Sub(now))
			timer = t.C
		}
		select {
		case <-ctx.Done():
		case <-q.notify:
		case <-timer:
		}
		if t != nil {
			t.Stop()
		}
	}
}

// Complete drops a processed job.
func (q *MemoryQueue) Complete(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.active, job.ID)
	q.completed++
	return nil
}

// Retry puts the job back on the waiting list, visible after delay.
func (q *MemoryQueue) Retry(ctx context.Context, job Job, delay time.Duration) error {
	q.mu.Lock()
	delete(q.active, job.ID)
	job.Receipt = ""
	q.waiting = append(q.waiting, memoryEntry{job: job, readyAt: q.now().Add(delay)})
	q.mu.Unlock()
	q.signal()
	return nil
}

// Fail retains the job in the failed list.
func (q *MemoryQueue) Fail(ctx context.Context, job Job, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.active, job.ID)
	failedAt := q.now().UTC()
	job.FailedAt = &failedAt
	job.Receipt = ""
	if cause != nil {
		job.LastError = cause.Error()
	}
	q.failed = append(q.failed, job)
	return nil
}

// Stats reports current queue state counts.
func (q *MemoryQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	s := Stats{
		Active:    len(q.active),
		Failed:    len(q.failed),
		Completed: q.completed,
	}
	for _, e := range q.waiting {
		if e.readyAt.After(now) {
			s.Delayed++
		} else {
			s.Waiting++
		}
	}
	return s
}

// Failed returns a copy of the terminally failed jobs.
func (q *MemoryQueue) Failed() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, len(q.failed))
	copy(out, q.failed)
	return out
}

func (q *MemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func newJob(kind Kind, payload any, policy RetryPolicy, now time.Time) (Job, error) {
	if kind == "" {
		return Job{}, fmt.Errorf("enqueue: kind is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("encode payload: %w", err)
	}
	return Job{
		ID:            uuid.NewString(),
		Kind:          kind,
		Payload:       raw,
		MaxAttempts:   policy.MaxAttempts,
		BackoffBaseMs: policy.BackoffBase.Milliseconds(),
		EnqueuedAt:    now.UTC(),
		Version:       jobVersion,
	}, nil
}

var (
	_ Client = (*MemoryQueue)(nil)
	_ Source = (*MemoryQueue)(nil)
)
