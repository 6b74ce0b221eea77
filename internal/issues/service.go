package issues

import (
	"context"
	"fmt"
	"strings"

	"quality-backend/internal/queue"
	"quality-backend/internal/shared/telemetry"
)

// Service exposes issue status changes and remediation requests.
type Service struct {
	Repo  Repo
	Queue queue.Client
}

// List returns issues of an analysis.
func (s *Service) List(ctx context.Context, analysisID string, filter Filter) ([]Issue, error) {
	return s.Repo.ListByAnalysis(ctx, analysisID, filter)
}

// Get returns one issue.
func (s *Service) Get(ctx context.Context, issueID string) (Issue, error) {
	return s.Repo.GetByID(ctx, issueID)
}

// UpdateStatus applies a human resolution action. Only status changes; isNew is immutable.
func (s *Service) UpdateStatus(ctx context.Context, issueID, rawStatus string) (Issue, error) {
	status, ok := ParseStatus(rawStatus)
	if !ok {
		return Issue{}, fmt.Errorf("%w: %q", ErrInvalidStatus, strings.TrimSpace(rawStatus))
	}
	before, err := s.Repo.GetByID(ctx, issueID)
	if err != nil {
		return Issue{}, err
	}
	updated, err := s.Repo.UpdateStatus(ctx, issueID, status)
	if err != nil {
		return Issue{}, err
	}
	telemetry.Info("issue.status", map[string]any{
		"request_id":        telemetry.RequestIDFromContext(ctx),
		"issue_id":          issueID,
		"analysis_id":       updated.AnalysisID,
		"status":            string(updated.Status),
		"status_transition": string(before.Status) + "->" + string(updated.Status),
	})
	return updated, nil
}

// RequestResolution enqueues an LLM remediation job for the issue.
func (s *Service) RequestResolution(ctx context.Context, issueID string) (queue.Handle, error) {
	if s.Queue == nil {
		return queue.Handle{}, queue.ErrJobQueueNotConfigured
	}
	issue, err := s.Repo.GetByID(ctx, issueID)
	if err != nil {
		return queue.Handle{}, err
	}
	handle, err := s.Queue.Enqueue(ctx, queue.KindResolveIssue, queue.ResolveIssuePayload{
		IssueID:    issue.ID,
		AnalysisID: issue.AnalysisID,
		RequestID:  telemetry.RequestIDFromContext(ctx),
	})
	if err != nil {
		return queue.Handle{}, fmt.Errorf("enqueue resolve issue: %w", err)
	}
	return handle, nil
}
