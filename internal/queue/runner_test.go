package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runUntilExhausted(t *testing.T, q *MemoryQueue, r *Runner, done <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = r.Run(ctx)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for job to finish")
	}
	cancel()
	wg.Wait()
}

func TestRunnerAlwaysFailingHandlerAttemptsExactlyMax(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BackoffBase: time.Millisecond}
	q := NewMemoryQueue(policy)
	r := NewRunner(q, policy, 2)

	var attempts int32
	exhausted := make(chan struct{})
	var exhaustedCalls int32
	r.Register(KindAnalysis,
		func(ctx context.Context, job Job) error {
			atomic.AddInt32(&attempts, 1)
			return errors.New("analyzer crashed")
		},
		func(ctx context.Context, job Job, cause error) {
			if atomic.AddInt32(&exhaustedCalls, 1) == 1 {
				close(exhausted)
			}
		},
	)

	_, err := q.Enqueue(context.Background(), KindAnalysis, AnalysisPayload{AnalysisID: "a-1"})
	require.NoError(t, err)
	runUntilExhausted(t, q, r, exhausted)

	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	assert.Equal(t, int32(1), atomic.LoadInt32(&exhaustedCalls))
	failed := q.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, 3, failed[0].Attempt)
	assert.Equal(t, "analyzer crashed", failed[0].LastError)
}

func TestRunnerSucceedsAfterRetry(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BackoffBase: time.Millisecond}
	q := NewMemoryQueue(policy)
	r := NewRunner(q, policy, 1)

	var attempts int32
	done := make(chan struct{})
	r.Register(KindAnalysis, func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 2 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, nil)

	_, err := q.Enqueue(context.Background(), KindAnalysis, AnalysisPayload{AnalysisID: "a-1"})
	require.NoError(t, err)
	runUntilExhausted(t, q, r, done)

	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
	assert.Empty(t, q.Failed())
}

func TestRunnerProcessPermanentErrorSkipsRetries(t *testing.T) {
	q := NewMemoryQueue(DefaultRetryPolicy())
	r := NewRunner(q, DefaultRetryPolicy(), 1)

	var exhaustedCause error
	r.Register(KindAnalysis, func(ctx context.Context, job Job) error {
		return Permanent(errors.New("bad payload"))
	}, func(ctx context.Context, job Job, cause error) {
		exhaustedCause = cause
	})

	ctx := context.Background()
	_, err := q.Enqueue(ctx, KindAnalysis, AnalysisPayload{AnalysisID: "a-1"})
	require.NoError(t, err)
	jobs, err := q.Receive(ctx)
	require.NoError(t, err)

	outcome, err := r.Process(ctx, jobs[0])
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.True(t, IsPermanent(exhaustedCause))
	assert.Len(t, q.Failed(), 1)
}

func TestRunnerProcessUnknownKindFails(t *testing.T) {
	q := NewMemoryQueue(DefaultRetryPolicy())
	r := NewRunner(q, DefaultRetryPolicy(), 1)

	outcome, err := r.Process(context.Background(), Job{ID: "j-1", Kind: "mystery"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	failed := q.Failed()
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].LastError, "unknown job kind")
}

func TestRunnerProcessRecoversPanic(t *testing.T) {
	q := NewMemoryQueue(DefaultRetryPolicy())
	r := NewRunner(q, DefaultRetryPolicy(), 1)
	r.Register(KindAnalysis, func(ctx context.Context, job Job) error {
		panic("boom")
	}, nil)

	outcome, err := r.Process(context.Background(), Job{ID: "j-1", Kind: KindAnalysis, MaxAttempts: 2})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRetried, outcome)
	assert.Equal(t, 1, q.Stats().Delayed+q.Stats().Waiting)
}

func TestRunnerProcessAlreadyExhaustedDoesNotRun(t *testing.T) {
	q := NewMemoryQueue(DefaultRetryPolicy())
	r := NewRunner(q, DefaultRetryPolicy(), 1)

	ran := false
	exhausted := false
	r.Register(KindAnalysis, func(ctx context.Context, job Job) error {
		ran = true
		return nil
	}, func(ctx context.Context, job Job, cause error) {
		exhausted = true
	})

	outcome, err := r.Process(context.Background(), Job{ID: "j-1", Kind: KindAnalysis, Attempt: 3, MaxAttempts: 3})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.False(t, ran)
	assert.True(t, exhausted)
}
