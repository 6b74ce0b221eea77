package issues

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores issues in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu         sync.RWMutex
	byID       map[string]Issue
	byAnalysis map[string][]string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:       make(map[string]Issue),
		byAnalysis: make(map[string][]string),
	}
}

func (r *MemoryRepo) ReplaceForAnalysis(ctx context.Context, analysisID string, issues []Issue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.byAnalysis[analysisID] {
		delete(r.byID, id)
	}
	ids := make([]string, 0, len(issues))
	for _, issue := range issues {
		issue.AnalysisID = analysisID
		r.byID[issue.ID] = issue
		ids = append(ids, issue.ID)
	}
	r.byAnalysis[analysisID] = ids
	return nil
}

func (r *MemoryRepo) ListByAnalysis(ctx context.Context, analysisID string, filter Filter) ([]Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Issue{}
	for _, id := range r.byAnalysis[analysisID] {
		if issue := r.byID[id]; filter.matches(issue) {
			out = append(out, issue)
		}
	}
	sortIssues(out)
	return out, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, issueID string) (Issue, error) {
	if err := ctx.Err(); err != nil {
		return Issue{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	issue, ok := r.byID[issueID]
	if !ok {
		return Issue{}, ErrNotFound
	}
	return issue, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, issueID string, status Status) (Issue, error) {
	if err := ctx.Err(); err != nil {
		return Issue{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.byID[issueID]
	if !ok {
		return Issue{}, ErrNotFound
	}
	issue.Status = status
	issue.UpdatedAt = time.Now().UTC()
	r.byID[issueID] = issue
	return issue, nil
}

// sortIssues orders by severity (highest first), then file, line and id.
func sortIssues(list []Issue) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		al, bl := lineOf(a), lineOf(b)
		if al != bl {
			return al < bl
		}
		return a.ID < b.ID
	})
}

func lineOf(i Issue) int {
	if i.StartLine == nil {
		return 0
	}
	return *i.StartLine
}

var _ Repo = (*MemoryRepo)(nil)
