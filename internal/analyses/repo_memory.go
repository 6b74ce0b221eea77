package analyses

import (
	"context"
	"sort"
	"sync"
	"time"

	"quality-backend/internal/measures"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Analysis
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Analysis)}
}

// Create stores the analysis.
func (r *MemoryRepo) Create(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[analysis.ID] = cloneAnalysis(analysis)
	return nil
}

// GetByID returns an analysis by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return cloneAnalysis(analysis), nil
}

// List returns matching analyses newest first.
func (r *MemoryRepo) List(ctx context.Context, filter ListFilter) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Analysis, 0)
	for _, a := range r.byID {
		if filter.ProjectID != "" && a.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Branch != "" && a.Branch != filter.Branch {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, cloneAnalysis(a))
	}
	r.mu.RUnlock()

	sortNewestFirst(out)
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []Analysis{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Transition applies a status change if the stored status matches from.
func (r *MemoryRepo) Transition(ctx context.Context, analysisID string, from, to Status, at time.Time, failure *Failure) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	if !CanTransition(from, to) {
		return Analysis{}, ErrInvalidTransition
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	if a.Status != from {
		return Analysis{}, ErrInvalidTransition
	}
	at = at.UTC()
	a.Status = to
	a.UpdatedAt = at
	if to == StatusRunning {
		a.StartedAt = &at
	}
	if to.Terminal() {
		a.FinishedAt = &at
	}
	if failure != nil {
		code, msg := failure.Code, failure.Message
		a.ErrorCode = &code
		a.ErrorMessage = &msg
	}
	r.byID[analysisID] = a
	return cloneAnalysis(a), nil
}

// SaveResults stores baseline, metrics and gate status.
func (r *MemoryRepo) SaveResults(ctx context.Context, analysisID string, results Results) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[analysisID]
	if !ok {
		return ErrNotFound
	}
	a.BaselineAnalysisID = results.BaselineAnalysisID
	if results.LinesOfCode > 0 {
		a.LinesOfCode = results.LinesOfCode
	}
	a.Metrics = cloneMetrics(results.Metrics)
	a.MetricsNew = cloneMetrics(results.MetricsNew)
	a.QualityGateStatus = results.QualityGateStatus
	a.UpdatedAt = time.Now().UTC()
	r.byID[analysisID] = a
	return nil
}

// FindBaseline scans for the latest qualifying SUCCESS analysis.
func (r *MemoryRepo) FindBaseline(ctx context.Context, q BaselineQuery) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		best  Analysis
		found bool
	)
	for _, a := range r.byID {
		if a.ProjectID != q.ProjectID || a.Branch != q.Branch || a.Status != StatusSuccess || a.ID == q.ExcludeID {
			continue
		}
		if !a.SubmittedAt.Before(q.Before) {
			continue
		}
		if q.NotAfter != nil && a.SubmittedAt.After(*q.NotAfter) {
			continue
		}
		if !found || newer(a, best) {
			best, found = a, true
		}
	}
	if !found {
		return Analysis{}, ErrNotFound
	}
	return cloneAnalysis(best), nil
}

// CountByStatus counts analyses per status.
func (r *MemoryRepo) CountByStatus(ctx context.Context) (map[Status]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Status]int, 4)
	for _, a := range r.byID {
		out[a.Status]++
	}
	return out, nil
}

func newer(a, b Analysis) bool {
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.After(b.SubmittedAt)
	}
	return a.ID > b.ID
}

func sortNewestFirst(list []Analysis) {
	sort.Slice(list, func(i, j int) bool { return newer(list[i], list[j]) })
}

func cloneAnalysis(a Analysis) Analysis {
	a.Metrics = cloneMetrics(a.Metrics)
	a.MetricsNew = cloneMetrics(a.MetricsNew)
	return a
}

func cloneMetrics(m measures.Metrics) measures.Metrics {
	if m == nil {
		return nil
	}
	out := make(measures.Metrics, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var _ Repo = (*MemoryRepo)(nil)
