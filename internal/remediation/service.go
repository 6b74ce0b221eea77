package remediation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"quality-backend/internal/issues"
	"quality-backend/internal/llm"
	"quality-backend/internal/queue"
	"quality-backend/internal/shared/storage/object"
	"quality-backend/internal/shared/telemetry"
)

const maxRecordBytes = 1 << 20

// ErrNotFound is returned when no suggestion has been produced for an issue.
var ErrNotFound = errors.New("remediation not found")

// Record is the stored outcome of one remediation job.
type Record struct {
	IssueID        string         `json:"issueId"`
	AnalysisID     string         `json:"analysisId"`
	Suggestion     llm.Suggestion `json:"suggestion"`
	PreviousStatus issues.Status  `json:"previousStatus"`
	AppliedStatus  issues.Status  `json:"appliedStatus,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Service asks the LLM about an issue and applies its verdict.
type Service struct {
	Issues *issues.Service
	LLM    llm.Client
	Store  object.ObjectStore
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func recordKey(issueID string) string {
	return path.Join("remediations", issueID+".json")
}

// statusFor maps a verdict to the issue status it implies. NEEDS_REVIEW leaves the issue alone.
func statusFor(v llm.Verdict) (issues.Status, bool) {
	switch v {
	case llm.VerdictFixed:
		return issues.StatusResolved, true
	case llm.VerdictFalsePositive:
		return issues.StatusFalsePositive, true
	}
	return "", false
}

// Resolve is the remediation job handler. Only OPEN issues change status so a
// human decision is never overwritten.
func (s *Service) Resolve(ctx context.Context, issueID string) (Record, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "remediation.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("issue.id", issueID))

	issue, err := s.Issues.Get(ctx, issueID)
	if err != nil {
		if errors.Is(err, issues.ErrNotFound) {
			return Record{}, queue.Permanent(err)
		}
		return Record{}, fmt.Errorf("issue lookup: %w", err)
	}

	suggestion, err := s.LLM.SuggestFix(ctx, llm.IssueInput{
		IssueID:   issue.ID,
		Analyzer:  issue.AnalyzerID,
		Rule:      issue.RuleID,
		Severity:  string(issue.Severity),
		Type:      string(issue.Type),
		FilePath:  issue.FilePath,
		StartLine: issue.StartLine,
		EndLine:   issue.EndLine,
		Message:   issue.Message,
	})
	if err != nil {
		if errors.Is(err, llm.ErrNotImplemented) {
			return Record{}, queue.Permanent(err)
		}
		return Record{}, fmt.Errorf("suggest fix: %w", err)
	}

	rec := Record{
		IssueID:        issue.ID,
		AnalysisID:     issue.AnalysisID,
		Suggestion:     suggestion,
		PreviousStatus: issue.Status,
		CreatedAt:      s.now(),
	}
	if status, ok := statusFor(suggestion.Verdict); ok && issue.Status == issues.StatusOpen {
		rec.AppliedStatus = status
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return Record{}, err
	}
	if _, err := s.Store.Put(ctx, recordKey(issue.ID), "application/json", bytes.NewReader(raw)); err != nil {
		return Record{}, fmt.Errorf("store remediation: %w", err)
	}
	if rec.AppliedStatus != "" {
		if _, err := s.Issues.UpdateStatus(ctx, issue.ID, string(rec.AppliedStatus)); err != nil {
			return Record{}, fmt.Errorf("apply verdict: %w", err)
		}
	}

	telemetry.Info("remediation.completed", map[string]any{
		"request_id":     telemetry.RequestIDFromContext(ctx),
		"issue_id":       issue.ID,
		"analysis_id":    issue.AnalysisID,
		"verdict":        string(suggestion.Verdict),
		"applied_status": string(rec.AppliedStatus),
		"model":          suggestion.Model,
	})
	return rec, nil
}

// Get returns the latest stored suggestion for an issue.
func (s *Service) Get(ctx context.Context, issueID string) (Record, error) {
	if _, err := s.Issues.Get(ctx, issueID); err != nil {
		return Record{}, err
	}
	raw, err := object.ReadAll(ctx, s.Store, recordKey(issueID), maxRecordBytes)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("decode remediation: %w", err)
	}
	return rec, nil
}
