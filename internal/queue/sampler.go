package queue

import (
	"context"
	"time"

	"quality-backend/internal/shared/metrics"
	"quality-backend/internal/shared/telemetry"
)

const DefaultSampleInterval = 15 * time.Second

// DepthCounter reports pending and in-flight work from the system of record.
type DepthCounter interface {
	QueueDepth(ctx context.Context) (waiting, active int, err error)
}

// Depth is one sample of the queue depth gauges.
type Depth struct {
	Waiting int `json:"waiting"`
	Active  int `json:"active"`
	Delayed int `json:"delayed"`
	Failed  int `json:"failed"`
}

// DepthSampler periodically publishes queue depth gauges. Counts come from
// persisted analyses so they survive worker restarts; delayed and failed are
// queue-native states not derivable from there and are always reported as 0.
type DepthSampler struct {
	counter  DepthCounter
	interval time.Duration
}

// NewDepthSampler constructs a sampler ticking every interval.
func NewDepthSampler(counter DepthCounter, interval time.Duration) *DepthSampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &DepthSampler{counter: counter, interval: interval}
}

// Sample takes one measurement and updates the gauges.
func (s *DepthSampler) Sample(ctx context.Context) (Depth, error) {
	defer metrics.ObserveDependency(metrics.DependencyDB, "queue_depth", time.Now())
	waiting, active, err := s.counter.QueueDepth(ctx)
	if err != nil {
		return Depth{}, err
	}
	d := Depth{Waiting: waiting, Active: active}
	metrics.SetQueueDepth("waiting", float64(d.Waiting))
	metrics.SetQueueDepth("active", float64(d.Active))
	metrics.SetQueueDepth("delayed", float64(d.Delayed))
	metrics.SetQueueDepth("failed", float64(d.Failed))
	return d, nil
}

// Run samples immediately and then on every tick until ctx is cancelled.
func (s *DepthSampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sample(ctx); err != nil && ctx.Err() == nil {
			telemetry.Error("queue.sampler.failed", map[string]any{"error": err.Error()})
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
