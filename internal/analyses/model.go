package analyses

import (
	"time"

	"quality-backend/internal/measures"
	"quality-backend/internal/qualitygate"
)

// Status is the lifecycle state of an analysis.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// CanTransition enforces PENDING -> RUNNING -> {SUCCESS, FAILED}.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusRunning
	case StatusRunning:
		return to == StatusSuccess || to == StatusFailed
	}
	return false
}

// Analysis is one pipeline run for a project branch or pull request.
type Analysis struct {
	ID           string `json:"id"`
	ProjectID    string `json:"projectId"`
	Branch       string `json:"branch,omitempty"`
	PullRequest  string `json:"pullRequest,omitempty"`
	TargetBranch string `json:"targetBranch,omitempty"`
	CommitSHA    string `json:"commitSha"`
	Status       Status `json:"status"`
	// SourceKey or ReportKey locate the submitted artifact; exactly one is set.
	SourceKey          string             `json:"sourceKey,omitempty"`
	ReportKey          string             `json:"reportKey,omitempty"`
	LinesOfCode        int                `json:"linesOfCode"`
	BaselineAnalysisID *string            `json:"baselineAnalysisId,omitempty"`
	Metrics            measures.Metrics   `json:"metrics,omitempty"`
	MetricsNew         measures.Metrics   `json:"metricsNew,omitempty"`
	QualityGateStatus  qualitygate.Status `json:"qualityGateStatus,omitempty"`
	ErrorCode          *string            `json:"errorCode,omitempty"`
	ErrorMessage       *string            `json:"errorMessage,omitempty"`
	SubmittedAt        time.Time          `json:"submittedAt"`
	StartedAt          *time.Time         `json:"startedAt,omitempty"`
	FinishedAt         *time.Time         `json:"finishedAt,omitempty"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// BaselineBranch is the branch whose history new issues are measured against.
// Pull requests compare to their target branch.
func (a Analysis) BaselineBranch() string {
	if a.PullRequest != "" && a.TargetBranch != "" {
		return a.TargetBranch
	}
	return a.Branch
}

// Results are the outputs of a processed analysis.
type Results struct {
	BaselineAnalysisID *string
	LinesOfCode        int
	Metrics            measures.Metrics
	MetricsNew         measures.Metrics
	QualityGateStatus  qualitygate.Status
}

// Failure describes why an analysis ended FAILED.
type Failure struct {
	Code    string
	Message string
}

// ListFilter narrows analysis listings.
type ListFilter struct {
	ProjectID string
	Branch    string
	Status    Status
	Limit     int
	Offset    int
}

// BaselineQuery selects the latest SUCCESS analysis of a project branch
// submitted strictly before Before and, when set, at or before NotAfter.
type BaselineQuery struct {
	ProjectID string
	Branch    string
	Before    time.Time
	NotAfter  *time.Time
	ExcludeID string
}
