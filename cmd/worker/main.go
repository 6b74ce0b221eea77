package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"quality-backend/internal/bootstrap"
	"quality-backend/internal/shared/config"
	"quality-backend/internal/shared/telemetry"
)

var errNoSharedQueue = errors.New("worker requires QUEUE_BACKEND=sqs; the memory queue is drained by the api process")

func main() {
	cfg := config.Load()
	if cfg.QueueBackend != "sqs" {
		fatal("worker.config_invalid", errNoSharedQueue)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.TracesStdout)
	if err != nil {
		fatal("worker.tracing_failed", err)
	}
	defer shutdownTracing(context.Background())

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		fatal("worker.bootstrap_failed", err)
	}
	if err := run(ctx, app); err != nil {
		fatal("worker.stopped", err)
	}
}

// run polls the queue and samples depth until ctx is cancelled.
func run(ctx context.Context, app *bootstrap.App) error {
	runner := app.NewRunner()
	sampler := app.NewSampler()

	telemetry.Info("worker.config", map[string]any{
		"queue":          app.Config.QueueBackend,
		"concurrency":    app.Config.WorkerConcurrency,
		"max_attempts":   app.RetryPolicy.MaxAttempts,
		"failed_queue":   app.HasFailedQueue(),
		"sample_every_s": app.Config.SampleInterval.Seconds(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error { return sampler.Run(gctx) })
	return g.Wait()
}

func fatal(event string, err error) {
	telemetry.Error(event, map[string]any{"error": err.Error()})
	os.Exit(1)
}
