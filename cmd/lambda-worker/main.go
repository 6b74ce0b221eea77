package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"quality-backend/internal/bootstrap"
	"quality-backend/internal/queue"
	"quality-backend/internal/shared/config"
	"quality-backend/internal/shared/telemetry"
	"quality-backend/internal/workerproc"
)

const receiveCountAttribute = "ApproximateReceiveCount"

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
	runner   *queue.Runner
)

func initApp() {
	cfg := config.Load()
	built, err := bootstrap.Build(context.Background(), cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
	runner = built.NewRunner()
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda.worker.bootstrap_failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return handleBatch(ctx, runner, app.HasFailedQueue(), event), nil
}

// handleBatch runs one attempt per record. Records that must be redelivered
// are reported as batch item failures so the rest of the batch is deleted.
func handleBatch(ctx context.Context, runner *queue.Runner, hasFailedQueue bool, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		redeliver, err := workerproc.HandleMessage(ctx, runner, record.Body, record.Attributes[receiveCountAttribute], hasFailedQueue)
		if err != nil {
			telemetry.Error("lambda.worker.message_failed", map[string]any{
				"sqs_message_id": record.MessageId,
				"redeliver":      redeliver,
				"error":          err.Error(),
			})
		}
		if redeliver {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
