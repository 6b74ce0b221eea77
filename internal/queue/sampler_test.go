package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	waiting, active int
	err             error
	calls           int32
}

func (f *fakeCounter) QueueDepth(ctx context.Context) (int, int, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.waiting, f.active, f.err
}

func TestDepthSamplerReportsDelayedAndFailedAsZero(t *testing.T) {
	s := NewDepthSampler(&fakeCounter{waiting: 4, active: 2}, time.Minute)
	d, err := s.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Depth{Waiting: 4, Active: 2, Delayed: 0, Failed: 0}, d)
}

func TestDepthSamplerPropagatesError(t *testing.T) {
	s := NewDepthSampler(&fakeCounter{err: errors.New("db down")}, time.Minute)
	_, err := s.Sample(context.Background())
	assert.EqualError(t, err, "db down")
}

func TestDepthSamplerRunStopsOnCancel(t *testing.T) {
	counter := &fakeCounter{waiting: 1}
	s := NewDepthSampler(counter, 5*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	require.NoError(t, s.Run(ctx))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&counter.calls), int32(2))
}
