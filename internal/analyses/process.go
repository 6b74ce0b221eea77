package analyses

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

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
)

// ProcessAnalysis is the analysis job handler. It is safe to call again
// after a failed attempt: the issue set is replaced, not appended, and a
// terminal analysis is left untouched. Errors wrapped with queue.Permanent
// will not be retried.
func (s *Service) ProcessAnalysis(ctx context.Context, analysisID string) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "analysis.process")
	span.SetAttributes(attribute.String("analysis.id", analysisID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return queue.Permanent(err)
		}
		return fmt.Errorf("analysis lookup: %w", err)
	}
	if a.Status.Terminal() {
		telemetry.Info("analysis.redelivered", map[string]any{
			"request_id":  telemetry.RequestIDFromContext(ctx),
			"analysis_id": a.ID,
			"status":      string(a.Status),
		})
		return nil
	}
	if a.Status == StatusPending {
		a, err = s.Repo.Transition(ctx, a.ID, StatusPending, StatusRunning, s.now(), nil)
		if err != nil {
			return fmt.Errorf("set running: %w", err)
		}
		metrics.IncAnalysisStarted()
		s.logTransition(ctx, a, StatusPending, nil)
	}

	current, linesOfCode, err := s.collectIssues(ctx, a)
	if err != nil {
		return err
	}

	baseline := s.resolveBaseline(ctx, a)
	var baselineIssues []issues.Issue
	if baseline != nil {
		list, err := s.Issues.ListByAnalysis(ctx, baseline.ID, issues.Filter{})
		if err != nil {
			return fmt.Errorf("baseline issues: %w", err)
		}
		baselineIssues = issues.Unresolved(list)
	}
	current = issues.MarkNew(current, baselineIssues)
	if err := s.Issues.ReplaceForAnalysis(ctx, a.ID, current); err != nil {
		return fmt.Errorf("save issues: %w", err)
	}
	if linesOfCode > 0 {
		a.LinesOfCode = linesOfCode
	}

	results, err := s.computeResults(ctx, a, current, baseline)
	if err != nil {
		return err
	}
	if err := s.Repo.SaveResults(ctx, a.ID, results); err != nil {
		return fmt.Errorf("save results: %w", err)
	}

	done, err := s.Repo.Transition(ctx, a.ID, StatusRunning, StatusSuccess, s.now(), nil)
	if err != nil {
		return fmt.Errorf("set success: %w", err)
	}
	metrics.IncAnalysisCompleted()
	observeFinished(done)
	s.logTransition(ctx, done, StatusRunning, map[string]any{
		"issues":              len(current),
		"quality_gate_status": string(results.QualityGateStatus),
	})
	// A coverage upload that landed after computeResults and before the
	// transition saw a RUNNING analysis and left the refresh to us.
	if err := s.refreshLateCoverage(ctx, done); err != nil {
		telemetry.Error("analysis.coverage_refresh.failed", map[string]any{
			"request_id":  telemetry.RequestIDFromContext(ctx),
			"analysis_id": done.ID,
			"project_id":  done.ProjectID,
			"error":       err.Error(),
		})
	}
	return nil
}

// MarkFailed records a terminally failed analysis job. Persisted issues and
// coverage are kept. A terminal analysis is left as is.
func (s *Service) MarkFailed(ctx context.Context, analysisID string, cause error) error {
	msg := "analysis failed"
	if cause != nil {
		msg = cause.Error()
	}
	return s.fail(ctx, analysisID, Failure{Code: failureCode(cause), Message: msg})
}

func (s *Service) fail(ctx context.Context, analysisID string, failure Failure) error {
	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return err
	}
	if a.Status.Terminal() {
		return nil
	}
	from := a.Status
	if from == StatusPending {
		// FAILED is only reachable from RUNNING.
		if _, err := s.Repo.Transition(ctx, analysisID, StatusPending, StatusRunning, s.now(), nil); err != nil {
			return err
		}
	}
	done, err := s.Repo.Transition(ctx, analysisID, StatusRunning, StatusFailed, s.now(), &failure)
	if err != nil {
		return err
	}
	metrics.IncAnalysisFailed()
	observeFinished(done)
	s.logTransition(ctx, done, from, map[string]any{
		"error_code":    failure.Code,
		"error_message": failure.Message,
	})
	return nil
}

func failureCode(err error) string {
	var reportErr *issues.ReportError
	switch {
	case err == nil:
		return ErrorCodeInternal
	case errors.As(err, &reportErr):
		return ErrorCodeReport
	case errors.Is(err, errStorage):
		return ErrorCodeStorage
	case errors.Is(err, errAnalyzer):
		return ErrorCodeAnalyzer
	}
	return ErrorCodeInternal
}

var (
	errStorage  = errors.New("storage")
	errAnalyzer = errors.New("analyzer")
)

// collectIssues reads the submitted report or runs the analyzers.
func (s *Service) collectIssues(ctx context.Context, a Analysis) ([]issues.Issue, int, error) {
	if a.ReportKey != "" {
		raw, err := object.ReadAll(ctx, s.Store, a.ReportKey, maxReportBytes)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: read report: %w", errStorage, err)
		}
		list, err := issues.DecodeReport(raw, a.ID, s.now())
		if err != nil {
			return nil, 0, queue.Permanent(err)
		}
		return list, 0, nil
	}

	if s.Analyzer == nil {
		return nil, 0, queue.Permanent(fmt.Errorf("%w: %w", errAnalyzer, analyzer.ErrNotConfigured))
	}
	settings, err := s.Projects.Settings(ctx, a.ProjectID)
	if err != nil {
		return nil, 0, fmt.Errorf("project settings: %w", err)
	}
	req := analyzer.Request{
		AnalysisID: a.ID,
		ProjectID:  a.ProjectID,
		Branch:     a.Branch,
		CommitSHA:  a.CommitSHA,
		SourceKey:  a.SourceKey,
		Analyzers:  settings.EnabledAnalyzers,
	}
	if url, err := object.PresignGet(ctx, s.Store, a.SourceKey, sourceURLTTL); err == nil {
		req.SourceURL = url
	} else if !errors.Is(err, object.ErrPresignUnsupported) {
		return nil, 0, fmt.Errorf("%w: presign source: %w", errStorage, err)
	}

	res, err := s.Analyzer.Run(ctx, req)
	if err != nil {
		wrapped := fmt.Errorf("%w: %w", errAnalyzer, err)
		if errors.Is(err, analyzer.ErrNotConfigured) || !analyzer.IsRetryable(err) {
			return nil, 0, queue.Permanent(wrapped)
		}
		return nil, 0, wrapped
	}
	list, err := issues.FromEntries(res.Issues, a.ID, s.now())
	if err != nil {
		return nil, 0, queue.Permanent(err)
	}
	return list, res.LinesOfCode, nil
}

// resolveBaseline applies the project leak period. Any failure degrades to
// no baseline so every issue counts as new.
func (s *Service) resolveBaseline(ctx context.Context, a Analysis) *Analysis {
	settings, err := s.Projects.Settings(ctx, a.ProjectID)
	if err != nil {
		s.logBaselineGap(ctx, a, err)
		return nil
	}
	q := BaselineQuery{
		ProjectID: a.ProjectID,
		Branch:    a.BaselineBranch(),
		Before:    a.SubmittedAt,
		ExcludeID: a.ID,
	}
	switch settings.LeakPeriod {
	case projects.LeakPeriodDate:
		q.NotAfter = settings.LeakPeriodDate
	case projects.LeakPeriodBaseBranch:
		q.Branch = settings.ReferenceBranch
	}
	baseline, err := s.Repo.FindBaseline(ctx, q)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logBaselineGap(ctx, a, err)
		}
		return nil
	}
	return &baseline
}

func (s *Service) logBaselineGap(ctx context.Context, a Analysis, err error) {
	telemetry.Error("analysis.baseline.unresolved", map[string]any{
		"request_id":  telemetry.RequestIDFromContext(ctx),
		"analysis_id": a.ID,
		"project_id":  a.ProjectID,
		"error":       err.Error(),
	})
}

// computeResults derives metrics and the gate verdict from persisted data.
func (s *Service) computeResults(ctx context.Context, a Analysis, list []issues.Issue, baseline *Analysis) (Results, error) {
	in := measures.Input{Issues: list, LinesOfCode: a.LinesOfCode}

	cov, err := s.Coverage.GetByAnalysis(ctx, a.ID)
	switch {
	case err == nil:
		in.Coverage = &cov.ParsedCoverage
	case !errors.Is(err, coverage.ErrNotFound):
		return Results{}, fmt.Errorf("coverage lookup: %w", err)
	}

	var baselineID *string
	if baseline != nil {
		id := baseline.ID
		baselineID = &id
		base, err := s.Coverage.GetByAnalysis(ctx, baseline.ID)
		switch {
		case err == nil:
			in.BaselineCoverage = &base.ParsedCoverage
		case !errors.Is(err, coverage.ErrNotFound):
			return Results{}, fmt.Errorf("baseline coverage lookup: %w", err)
		}
	}

	all := measures.Compute(in, s.Debt)
	fresh := measures.ComputeNew(in, s.Debt)
	gate, err := s.Gates.ForProject(ctx, a.ProjectID)
	if err != nil {
		return Results{}, fmt.Errorf("quality gate lookup: %w", err)
	}
	verdict := qualitygate.Evaluate(gate, all, fresh)
	return Results{
		BaselineAnalysisID: baselineID,
		LinesOfCode:        a.LinesOfCode,
		Metrics:            all,
		MetricsNew:         fresh,
		QualityGateStatus:  verdict.Status,
	}, nil
}
