package coverage

import (
	"context"
	"sync"
)

// MemoryRepo stores coverage reports in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu         sync.RWMutex
	byAnalysis map[string]Report
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byAnalysis: make(map[string]Report)}
}

// Create stores the report unless the analysis already has one.
func (r *MemoryRepo) Create(ctx context.Context, report Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byAnalysis[report.AnalysisID]; exists {
		return ErrAlreadyIngested
	}
	r.byAnalysis[report.AnalysisID] = report
	return nil
}

// GetByAnalysis returns the report of an analysis.
func (r *MemoryRepo) GetByAnalysis(ctx context.Context, analysisID string) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.byAnalysis[analysisID]
	if !ok {
		return Report{}, ErrNotFound
	}
	return report, nil
}

var _ Repo = (*MemoryRepo)(nil)
