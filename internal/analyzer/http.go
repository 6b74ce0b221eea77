package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"quality-backend/internal/issues"
	"quality-backend/internal/shared/metrics"
	"quality-backend/internal/shared/telemetry"
)

const maxResponseBytes = 32 << 20

// StatusError is a non-2xx answer from the analyzer service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analyzer returned %d: %s", e.Code, e.Body)
}

// Retryable reports whether another attempt could succeed.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests || e.Code == http.StatusRequestTimeout
}

// IsRetryable reports whether err is worth another attempt. Transport
// errors and 5xx answers are; 4xx rejections and malformed output are not.
func IsRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	var de *DecodeError
	return !errors.As(err, &de)
}

// DecodeError reports analyzer output that is not a canonical report.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode analyzer response: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// HTTPRunner posts a Request to an analyzer service and decodes the
// canonical report it answers with.
type HTTPRunner struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPRunner constructs a runner for the service at baseURL.
func NewHTTPRunner(baseURL string, timeout time.Duration) (*HTTPRunner, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("ANALYZER_URL is required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &HTTPRunner{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (r *HTTPRunner) Run(ctx context.Context, req Request) (Result, error) {
	defer metrics.ObserveDependency(metrics.DependencyAnalyzer, "run", time.Now())
	payload, err := json.Marshal(req)
	if err != nil {
		return Result{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/analyze", bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if id := telemetry.RequestIDFromContext(ctx); id != "" {
		httpReq.Header.Set("X-Request-Id", id)
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return Result{}, fmt.Errorf("analyzer request timeout: %w", err)
		}
		return Result{}, fmt.Errorf("analyzer request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("read analyzer response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var out Result
	if err := json.Unmarshal(body, &out); err != nil {
		return Result{}, &DecodeError{Err: err}
	}
	if out.Issues == nil {
		out.Issues = []issues.ReportEntry{}
	}
	telemetry.Info("analyzer.run.complete", map[string]any{
		"request_id":  telemetry.RequestIDFromContext(ctx),
		"analysis_id": req.AnalysisID,
		"issues":      len(out.Issues),
		"analyzers":   len(req.Analyzers),
	})
	return out, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ Runner = (*HTTPRunner)(nil)
