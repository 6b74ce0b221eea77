package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"quality-backend/internal/bootstrap"
	"quality-backend/internal/shared/config"
	"quality-backend/internal/shared/server/respond"
	"quality-backend/internal/shared/telemetry"
)

var (
	initOnce  sync.Once
	initErr   error
	ginLambda *ginadapter.GinLambdaV2
)

func initApp() {
	cfg := config.Load()
	if cfg.QueueBackend != "sqs" {
		// A memory queue would be lost with the execution environment.
		telemetry.Error("lambda.http.queue_backend", map[string]any{"queue": cfg.QueueBackend})
	}
	app, err := bootstrap.Build(context.Background(), cfg)
	if err != nil {
		initErr = err
		return
	}
	ginLambda = ginadapter.NewV2(app.Router)
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda.http.bootstrap_failed", map[string]any{"error": initErr.Error()})
		body, _ := json.Marshal(respond.ErrorResponse{Error: respond.ErrorBody{Code: "bootstrap_failed", Message: "service unavailable"}})
		return events.APIGatewayV2HTTPResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       string(body),
			Headers:    map[string]string{"Content-Type": "application/json"},
		}, nil
	}
	return ginLambda.ProxyWithContext(ctx, withGatewayRequestID(req))
}

// withGatewayRequestID reuses the API Gateway request ID when the client did
// not send one, so access logs and gateway logs share an ID.
func withGatewayRequestID(req events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPRequest {
	if req.RequestContext.RequestID == "" {
		return req
	}
	for k := range req.Headers {
		if strings.EqualFold(k, "x-request-id") {
			return req
		}
	}
	headers := make(map[string]string, len(req.Headers)+1)
	for k, v := range req.Headers {
		headers[k] = v
	}
	headers["x-request-id"] = req.RequestContext.RequestID
	req.Headers = headers
	return req
}

func main() {
	lambda.Start(handler)
}
