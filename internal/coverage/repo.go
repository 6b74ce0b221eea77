package coverage

import "context"

// Repo persists coverage reports. A report is written at most once per analysis.
type Repo interface {
	Create(ctx context.Context, report Report) error
	GetByAnalysis(ctx context.Context, analysisID string) (Report, error)
}
