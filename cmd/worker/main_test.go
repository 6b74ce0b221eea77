package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quality-backend/internal/analyses"
	"quality-backend/internal/bootstrap"
	"quality-backend/internal/shared/config"
)

func buildApp(t *testing.T) *bootstrap.App {
	t.Helper()
	app, err := bootstrap.Build(context.Background(), config.Config{
		Env:               "test",
		LocalStoreDir:     t.TempDir(),
		QueueBackend:      "memory",
		JobMaxAttempts:    2,
		JobBackoffBase:    5 * time.Millisecond,
		SampleInterval:    50 * time.Millisecond,
		WorkerConcurrency: 2,
		ShutdownTimeout:   time.Second,
	})
	require.NoError(t, err)
	return app
}

func TestRunProcessesUntilCancelled(t *testing.T) {
	app := buildApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, app) }()

	submitted, err := app.AnalysesService.Submit(context.Background(), analyses.SubmitInput{
		ProjectID: "p-1",
		Branch:    "main",
		CommitSHA: "abc123",
		Report:    []byte(`{"issues":[]}`),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		a, err := app.AnalysesService.Get(context.Background(), submitted.ID)
		return err == nil && a.Status == analyses.StatusSuccess
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestRunFailsAnalysisWithoutAnalyzer(t *testing.T) {
	app := buildApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = run(ctx, app) }()

	submitted, err := app.AnalysesService.Submit(context.Background(), analyses.SubmitInput{
		ProjectID:  "p-1",
		Branch:     "main",
		CommitSHA:  "abc123",
		Source:     strings.NewReader("package main"),
		SourceName: "src.tar.gz",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		a, err := app.AnalysesService.Get(context.Background(), submitted.ID)
		return err == nil && a.Status == analyses.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)
}
