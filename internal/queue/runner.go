package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"quality-backend/internal/shared/metrics"
	"quality-backend/internal/shared/telemetry"
)

// Outcome is the result of one job attempt as seen by the queue.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeRetried   Outcome = "retried"
	OutcomeFailed    Outcome = "failed"
)

// HandlerFunc executes one attempt of a job.
type HandlerFunc func(ctx context.Context, job Job) error

// ExhaustedFunc runs once a job is terminally failed, so the owner of the
// referenced record can settle it.
type ExhaustedFunc func(ctx context.Context, job Job, cause error)

type registration struct {
	handle    HandlerFunc
	exhausted ExhaustedFunc
}

// Runner pulls jobs from a Source and dispatches them to handlers by kind.
type Runner struct {
	source          Source
	policy          RetryPolicy
	concurrency     int
	shutdownTimeout time.Duration
	receiveBackoff  time.Duration

	mu       sync.RWMutex
	handlers map[Kind]registration
}

// NewRunner constructs a Runner with at most concurrency jobs in flight.
func NewRunner(source Source, policy RetryPolicy, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		source:          source,
		policy:          policy.Normalize(),
		concurrency:     concurrency,
		shutdownTimeout: 30 * time.Second,
		receiveBackoff:  time.Second,
		handlers:        make(map[Kind]registration),
	}
}

// SetShutdownTimeout bounds how long Run waits for in-flight jobs on shutdown.
func (r *Runner) SetShutdownTimeout(d time.Duration) {
	if d > 0 {
		r.shutdownTimeout = d
	}
}

// Register binds a handler and an optional exhaustion callback to kind.
func (r *Runner) Register(kind Kind, handle HandlerFunc, exhausted ExhaustedFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = registration{handle: handle, exhausted: exhausted}
}

// Run receives and processes jobs until ctx is cancelled, then waits for
// in-flight jobs up to the shutdown timeout.
func (r *Runner) Run(ctx context.Context) error {
	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup

	telemetry.Info("worker.started", map[string]any{"concurrency": r.concurrency})

pollLoop:
	for {
		jobs, err := r.source.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				break pollLoop
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
				break pollLoop
			case <-time.After(r.receiveBackoff):
			}
			continue
		}

		for _, job := range jobs {
			select {
			case <-ctx.Done():
				// Not started: hand it back so another worker picks it up.
				_ = r.source.Retry(context.WithoutCancel(ctx), job, 0)
				continue
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(j Job) {
				defer wg.Done()
				defer func() { <-sem }()
				// Picked-up jobs run to completion even during shutdown.
				_, _ = r.Process(context.WithoutCancel(ctx), j)
			}(job)
		}
	}

	telemetry.Info("worker.shutdown", map[string]any{"timeout_ms": r.shutdownTimeout.Milliseconds()})
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(r.shutdownTimeout):
		telemetry.Error("worker.shutdown_timeout", map[string]any{})
	}
	return nil
}

// Process runs one attempt of job and performs the queue bookkeeping for its
// outcome. The returned error is a bookkeeping failure, not the handler error.
func (r *Runner) Process(ctx context.Context, job Job) (Outcome, error) {
	policy := policyFor(job, r.policy)
	fields := map[string]any{
		"job_id":       job.ID,
		"kind":         string(job.Kind),
		"max_attempts": policy.MaxAttempts,
	}

	r.mu.RLock()
	reg, ok := r.handlers[job.Kind]
	r.mu.RUnlock()
	if !ok {
		return r.fail(ctx, job, reg, Permanent(fmt.Errorf("%w: %s", ErrUnknownKind, job.Kind)), fields)
	}

	if job.Attempt >= policy.MaxAttempts {
		cause := errors.New("attempts exhausted before delivery")
		if job.LastError != "" {
			cause = errors.New(job.LastError)
		}
		return r.fail(ctx, job, reg, cause, fields)
	}

	job.Attempt++
	fields["attempt"] = job.Attempt
	telemetry.Info("worker.job.started", fields)

	err := runHandler(ctx, reg.handle, job)
	if err == nil {
		metrics.IncJob(string(job.Kind), string(OutcomeCompleted))
		telemetry.Info("worker.job.completed", fields)
		if cerr := r.source.Complete(ctx, job); cerr != nil {
			return OutcomeCompleted, fmt.Errorf("complete job %s: %w", job.ID, cerr)
		}
		return OutcomeCompleted, nil
	}

	job.LastError = err.Error()
	if IsPermanent(err) || job.Attempt >= policy.MaxAttempts {
		return r.fail(ctx, job, reg, err, fields)
	}

	delay := policy.Delay(job.Attempt)
	fields["error"] = err.Error()
	fields["retry_in_ms"] = delay.Milliseconds()
	telemetry.Error("worker.job.retry", fields)
	metrics.IncJob(string(job.Kind), string(OutcomeRetried))
	if rerr := r.source.Retry(ctx, job, delay); rerr != nil {
		return OutcomeRetried, fmt.Errorf("retry job %s: %w", job.ID, rerr)
	}
	return OutcomeRetried, nil
}

func (r *Runner) fail(ctx context.Context, job Job, reg registration, cause error, fields map[string]any) (Outcome, error) {
	fields["attempt"] = job.Attempt
	fields["error"] = cause.Error()
	telemetry.Error("worker.job.failed", fields)
	metrics.IncJob(string(job.Kind), string(OutcomeFailed))

	ferr := r.source.Fail(ctx, job, cause)
	if reg.exhausted != nil {
		reg.exhausted(ctx, job, cause)
	}
	if ferr != nil {
		return OutcomeFailed, fmt.Errorf("fail job %s: %w", job.ID, ferr)
	}
	return OutcomeFailed, nil
}

func runHandler(ctx context.Context, handle HandlerFunc, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return handle(ctx, job)
}
