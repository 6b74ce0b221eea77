package analyses

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"quality-backend/internal/analyzer"
	"quality-backend/internal/coverage"
	"quality-backend/internal/issues"
	"quality-backend/internal/measures"
	"quality-backend/internal/projects"
	"quality-backend/internal/qualitygate"
	"quality-backend/internal/queue"
	"quality-backend/internal/shared/metrics"
	"quality-backend/internal/shared/storage/object"
	"quality-backend/internal/shared/telemetry"
	"quality-backend/internal/shared/util"
)

const (
	maxReportBytes   = 32 << 20
	sourceURLTTL     = 15 * time.Minute
	reportObjectName = "report.json"
)

// Service drives analyses through PENDING -> RUNNING -> SUCCESS/FAILED.
type Service struct {
	Repo     Repo
	Issues   issues.Repo
	Coverage coverage.Repo
	Projects *projects.Service
	Gates    *qualitygate.Service
	Debt     measures.DebtConfig
	Store    object.ObjectStore
	Queue    queue.Client
	Analyzer analyzer.Runner
	Now      func() time.Time
}

// SubmitInput is one analysis submission. Exactly one of Source or Report is set.
type SubmitInput struct {
	ProjectID    string
	Branch       string
	PullRequest  string
	TargetBranch string
	CommitSHA    string
	LinesOfCode  int
	// Source is a source snapshot archive run through the analyzers.
	Source     io.Reader
	SourceName string
	// Report is a pre-computed canonical issue report.
	Report []byte
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Submit stores the artifact, creates a PENDING analysis and enqueues its
// job. It returns as soon as the job is accepted by the queue.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Analysis, error) {
	if s.Queue == nil {
		return Analysis{}, queue.ErrJobQueueNotConfigured
	}
	in, err := normalizeSubmit(in)
	if err != nil {
		return Analysis{}, err
	}
	if in.Report != nil {
		// Reject malformed reports before anything is persisted.
		if _, err := issues.DecodeReport(in.Report, "", s.now()); err != nil {
			return Analysis{}, err
		}
	}

	analysis := Analysis{
		ID:           uuid.NewString(),
		ProjectID:    in.ProjectID,
		Branch:       in.Branch,
		PullRequest:  in.PullRequest,
		TargetBranch: in.TargetBranch,
		CommitSHA:    in.CommitSHA,
		LinesOfCode:  in.LinesOfCode,
		Status:       StatusPending,
		SubmittedAt:  s.now(),
	}
	analysis.UpdatedAt = analysis.SubmittedAt

	prefix := path.Join("projects", analysis.ProjectID, "analyses", analysis.ID)
	if in.Report != nil {
		analysis.ReportKey = path.Join(prefix, reportObjectName)
		if err := s.put(ctx, analysis.ReportKey, "application/json", bytes.NewReader(in.Report)); err != nil {
			return Analysis{}, err
		}
	} else {
		analysis.SourceKey = path.Join(prefix, in.SourceName)
		if err := s.put(ctx, analysis.SourceKey, "application/octet-stream", in.Source); err != nil {
			return Analysis{}, err
		}
	}

	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Analysis{}, fmt.Errorf("create analysis: %w", err)
	}
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        telemetry.RequestIDFromContext(ctx),
		"analysis_id":       analysis.ID,
		"project_id":        analysis.ProjectID,
		"status":            string(StatusPending),
		"status_transition": "->" + string(StatusPending),
	})

	if _, err := s.Queue.Enqueue(ctx, queue.KindAnalysis, queue.AnalysisPayload{
		AnalysisID: analysis.ID,
		RequestID:  telemetry.RequestIDFromContext(ctx),
	}); err != nil {
		cause := fmt.Errorf("enqueue analysis: %w", err)
		if markErr := s.fail(telemetry.Detach(ctx), analysis.ID, Failure{Code: ErrorCodeEnqueue, Message: "enqueue failed"}); markErr != nil {
			telemetry.Error("analysis.mark_failed.failed", map[string]any{
				"analysis_id": analysis.ID,
				"error":       markErr.Error(),
			})
		}
		return Analysis{}, cause
	}
	return analysis, nil
}

func normalizeSubmit(in SubmitInput) (SubmitInput, error) {
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.Branch = strings.TrimSpace(in.Branch)
	in.PullRequest = strings.TrimSpace(in.PullRequest)
	in.TargetBranch = strings.TrimSpace(in.TargetBranch)
	in.CommitSHA = strings.TrimSpace(in.CommitSHA)

	switch {
	case in.ProjectID == "":
		return in, fmt.Errorf("%w: projectId is required", ErrInvalidInput)
	case in.CommitSHA == "":
		return in, fmt.Errorf("%w: commitSha is required", ErrInvalidInput)
	case in.Branch == "" && in.PullRequest == "":
		return in, fmt.Errorf("%w: branch or pullRequest is required", ErrInvalidInput)
	case in.PullRequest != "" && in.TargetBranch == "":
		return in, fmt.Errorf("%w: targetBranch is required for pull requests", ErrInvalidInput)
	case in.LinesOfCode < 0:
		return in, fmt.Errorf("%w: linesOfCode must be >= 0", ErrInvalidInput)
	case (in.Source == nil) == (in.Report == nil):
		return in, fmt.Errorf("%w: exactly one of source or report is required", ErrInvalidInput)
	}
	if in.Branch == "" {
		in.Branch = "pr/" + in.PullRequest
	}
	if in.Source != nil {
		name := in.SourceName
		if strings.TrimSpace(name) == "" {
			name = "source.zip"
		}
		clean, err := util.SanitizeArtifactName(name)
		if err != nil {
			return in, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
		}
		in.SourceName = clean
	}
	return in, nil
}

func (s *Service) put(ctx context.Context, key, contentType string, r io.Reader) error {
	if s.Store == nil {
		return errors.New("object store not configured")
	}
	if _, err := s.Store.Put(ctx, key, contentType, r); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

// Get returns an analysis by ID.
func (s *Service) Get(ctx context.Context, analysisID string) (Analysis, error) {
	if strings.TrimSpace(analysisID) == "" {
		return Analysis{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, analysisID)
}

// List returns analyses newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Analysis, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.Repo.List(ctx, filter)
}

// ListIssues lists the issues of an analysis.
func (s *Service) ListIssues(ctx context.Context, analysisID string, filter issues.Filter) ([]issues.Issue, error) {
	if _, err := s.Repo.GetByID(ctx, analysisID); err != nil {
		return nil, err
	}
	return s.Issues.ListByAnalysis(ctx, analysisID, filter)
}

// SourceURL issues a presigned download URL for the submitted artifact.
func (s *Service) SourceURL(ctx context.Context, analysisID string) (string, error) {
	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return "", err
	}
	key := a.SourceKey
	if key == "" {
		key = a.ReportKey
	}
	return object.PresignGet(ctx, s.Store, key, sourceURLTTL)
}

// QueueDepth counts pending and running analyses for the depth sampler.
func (s *Service) QueueDepth(ctx context.Context) (waiting, active int, err error) {
	counts, err := s.Repo.CountByStatus(ctx)
	if err != nil {
		return 0, 0, err
	}
	return counts[StatusPending], counts[StatusRunning], nil
}

func (s *Service) logTransition(ctx context.Context, a Analysis, from Status, extra map[string]any) {
	fields := map[string]any{
		"request_id":        telemetry.RequestIDFromContext(ctx),
		"analysis_id":       a.ID,
		"project_id":        a.ProjectID,
		"status":            string(a.Status),
		"status_transition": string(from) + "->" + string(a.Status),
	}
	for k, v := range extra {
		fields[k] = v
	}
	if a.Status == StatusFailed {
		telemetry.Error("analysis.status", fields)
		return
	}
	telemetry.Info("analysis.status", fields)
}

var _ queue.DepthCounter = (*Service)(nil)

func observeFinished(a Analysis) {
	if a.StartedAt != nil && a.FinishedAt != nil {
		metrics.ObserveAnalysisDuration(a.FinishedAt.Sub(*a.StartedAt))
	}
}
