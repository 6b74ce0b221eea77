package analyzer

import (
	"context"
	"errors"

	"quality-backend/internal/issues"
)

// ErrNotConfigured is returned by the placeholder runner.
var ErrNotConfigured = errors.New("analyzer runner not configured")

// Request describes one analyzer execution over a stored source snapshot.
type Request struct {
	AnalysisID string   `json:"analysisId"`
	ProjectID  string   `json:"projectId"`
	Branch     string   `json:"branch,omitempty"`
	CommitSHA  string   `json:"commitSha,omitempty"`
	SourceKey  string   `json:"sourceKey"`
	SourceURL  string   `json:"sourceUrl,omitempty"`
	Analyzers  []string `json:"analyzers"`
}

// Result is the structured analyzer output.
type Result struct {
	Issues      []issues.ReportEntry `json:"issues"`
	LinesOfCode int                  `json:"linesOfCode"`
}

// Runner executes analyzers. Implementations may block for the whole run.
type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// Placeholder is used when no analyzer service is configured.
type Placeholder struct{}

func (Placeholder) Run(ctx context.Context, req Request) (Result, error) {
	_ = ctx
	_ = req
	return Result{}, ErrNotConfigured
}
