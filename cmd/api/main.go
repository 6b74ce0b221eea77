package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"quality-backend/internal/bootstrap"
	"quality-backend/internal/shared/config"
	"quality-backend/internal/shared/server"
	"quality-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.TracesStdout)
	if err != nil {
		fatal("api.tracing_failed", err)
	}
	defer shutdownTracing(context.Background())

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		fatal("api.bootstrap_failed", err)
	}

	if err := run(ctx, app); err != nil {
		fatal("api.stopped", err)
	}
}

// run serves HTTP until ctx is done. With the in-memory queue the job runner
// and depth sampler share the process, since nothing else can drain the queue.
func run(ctx context.Context, app *bootstrap.App) error {
	srv := &http.Server{
		Addr:              server.Addr(app.Config.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		telemetry.Info("api.listening", map[string]any{"addr": srv.Addr, "queue": app.Config.QueueBackend})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if app.Memory != nil {
		runner := app.NewRunner()
		sampler := app.NewSampler()
		g.Go(func() error { return runner.Run(gctx) })
		g.Go(func() error { return sampler.Run(gctx) })
	}
	return g.Wait()
}

func fatal(event string, err error) {
	telemetry.Error(event, map[string]any{"error": err.Error()})
	os.Exit(1)
}
