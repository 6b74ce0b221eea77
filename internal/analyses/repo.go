package analyses

import (
	"context"
	"time"
)

// Repo defines persistence operations for analyses.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	List(ctx context.Context, filter ListFilter) ([]Analysis, error)
	// Transition moves an analysis from one status to the next. It returns
	// ErrInvalidTransition when the stored status is not from.
	Transition(ctx context.Context, analysisID string, from, to Status, at time.Time, failure *Failure) (Analysis, error)
	SaveResults(ctx context.Context, analysisID string, results Results) error
	// FindBaseline returns ErrNotFound when no analysis qualifies.
	FindBaseline(ctx context.Context, q BaselineQuery) (Analysis, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}
