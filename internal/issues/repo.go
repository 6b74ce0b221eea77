package issues

import "context"

// Repo persists issues.
type Repo interface {
	// ReplaceForAnalysis swaps the full issue set of an analysis, so a retried job does not duplicate rows.
	ReplaceForAnalysis(ctx context.Context, analysisID string, issues []Issue) error
	ListByAnalysis(ctx context.Context, analysisID string, filter Filter) ([]Issue, error)
	GetByID(ctx context.Context, issueID string) (Issue, error)
	UpdateStatus(ctx context.Context, issueID string, status Status) (Issue, error)
}
