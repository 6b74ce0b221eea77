package projects

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound        = errors.New("project settings not found")
	ErrInvalidSettings = errors.New("invalid project settings")
)

// LeakPeriod selects how the baseline analysis of a project is resolved.
type LeakPeriod string

const (
	// LeakPeriodLastAnalysis uses the latest prior successful analysis on the same branch.
	LeakPeriodLastAnalysis LeakPeriod = "LAST_ANALYSIS"
	// LeakPeriodDate uses the latest successful analysis at or before LeakPeriodDate.
	LeakPeriodDate LeakPeriod = "DATE"
	// LeakPeriodBaseBranch uses the latest successful analysis on ReferenceBranch.
	LeakPeriodBaseBranch LeakPeriod = "BASE_BRANCH"
)

func (l LeakPeriod) Valid() bool {
	switch l {
	case LeakPeriodLastAnalysis, LeakPeriodDate, LeakPeriodBaseBranch:
		return true
	}
	return false
}

// Settings are the per-project inputs the pipeline consumes.
type Settings struct {
	ProjectID        string     `json:"projectId"`
	LeakPeriod       LeakPeriod `json:"leakPeriod"`
	LeakPeriodDate   *time.Time `json:"leakPeriodDate,omitempty"`
	ReferenceBranch  string     `json:"referenceBranch,omitempty"`
	EnabledAnalyzers []string   `json:"enabledAnalyzers"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// DefaultSettings applies to projects that never saved settings.
func DefaultSettings(projectID string) Settings {
	return Settings{
		ProjectID:        projectID,
		LeakPeriod:       LeakPeriodLastAnalysis,
		EnabledAnalyzers: []string{},
	}
}

// Normalize upper-cases the leak period, dedupes analyzers and checks that
// the field the leak period needs is present.
func (s Settings) Normalize() (Settings, error) {
	s.LeakPeriod = LeakPeriod(strings.ToUpper(strings.TrimSpace(string(s.LeakPeriod))))
	if s.LeakPeriod == "" {
		s.LeakPeriod = LeakPeriodLastAnalysis
	}
	if !s.LeakPeriod.Valid() {
		return Settings{}, &FieldError{Field: "leakPeriod", Issue: "must be LAST_ANALYSIS, DATE or BASE_BRANCH"}
	}
	s.ReferenceBranch = strings.TrimSpace(s.ReferenceBranch)
	switch s.LeakPeriod {
	case LeakPeriodDate:
		if s.LeakPeriodDate == nil {
			return Settings{}, &FieldError{Field: "leakPeriodDate", Issue: "required for DATE leak period"}
		}
		d := s.LeakPeriodDate.UTC()
		s.LeakPeriodDate = &d
	case LeakPeriodBaseBranch:
		if s.ReferenceBranch == "" {
			return Settings{}, &FieldError{Field: "referenceBranch", Issue: "required for BASE_BRANCH leak period"}
		}
	}

	seen := make(map[string]struct{}, len(s.EnabledAnalyzers))
	analyzers := make([]string, 0, len(s.EnabledAnalyzers))
	for _, a := range s.EnabledAnalyzers {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		analyzers = append(analyzers, a)
	}
	s.EnabledAnalyzers = analyzers
	return s, nil
}

// FieldError reports an invalid settings field.
type FieldError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

func (e *FieldError) Error() string {
	return ErrInvalidSettings.Error() + ": " + e.Field + " " + e.Issue
}

func (e *FieldError) Unwrap() error { return ErrInvalidSettings }
