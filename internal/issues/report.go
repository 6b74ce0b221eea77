package issues

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReportEntry is one finding in the canonical analyzer report.
type ReportEntry struct {
	Analyzer string `json:"analyzer"`
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Type     string `json:"type"`
	File     string `json:"file"`
	Line     *int   `json:"line,omitempty"`
	EndLine  *int   `json:"endLine,omitempty"`
	Message  string `json:"message"`
}

// Report is the canonical analyzer output: {"issues":[...]}. A bare array
// of entries is accepted too.
type Report struct {
	Issues []ReportEntry `json:"issues"`
}

// DecodeReport parses a canonical report into issues for analysisID with
// fingerprints computed and status OPEN.
func DecodeReport(raw []byte, analysisID string, now time.Time) ([]Issue, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, &ReportError{Message: "report is empty"}
	}

	var report Report
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &report.Issues); err != nil {
			return nil, &ReportError{Message: "malformed JSON", Err: err}
		}
	} else if err := json.Unmarshal(trimmed, &report); err != nil {
		return nil, &ReportError{Message: "malformed JSON", Err: err}
	}

	out := make([]Issue, 0, len(report.Issues))
	for idx, e := range report.Issues {
		issue, err := e.toIssue(analysisID, now)
		if err != nil {
			return nil, &ReportError{Message: fmt.Sprintf("issue %d: %s", idx, err.Error())}
		}
		out = append(out, issue)
	}
	return out, nil
}

// FromEntries converts entries already decoded by a caller, such as the analyzer client.
func FromEntries(entries []ReportEntry, analysisID string, now time.Time) ([]Issue, error) {
	out := make([]Issue, 0, len(entries))
	for idx, e := range entries {
		issue, err := e.toIssue(analysisID, now)
		if err != nil {
			return nil, &ReportError{Message: fmt.Sprintf("issue %d: %s", idx, err.Error())}
		}
		out = append(out, issue)
	}
	return out, nil
}

func (e ReportEntry) toIssue(analysisID string, now time.Time) (Issue, error) {
	if strings.TrimSpace(e.Analyzer) == "" {
		return Issue{}, fmt.Errorf("analyzer is required")
	}
	if strings.TrimSpace(e.Rule) == "" {
		return Issue{}, fmt.Errorf("rule is required")
	}
	if strings.TrimSpace(e.File) == "" {
		return Issue{}, fmt.Errorf("file is required")
	}

	severity := SeverityMajor
	if s := strings.TrimSpace(e.Severity); s != "" {
		severity = Severity(strings.ToUpper(s))
		if !severity.Valid() {
			return Issue{}, fmt.Errorf("unknown severity %q", e.Severity)
		}
	}
	typ := TypeCodeSmell
	if t := strings.TrimSpace(e.Type); t != "" {
		typ = Type(strings.ToUpper(t))
		if !typ.Valid() {
			return Issue{}, fmt.Errorf("unknown type %q", e.Type)
		}
	}
	if e.Line != nil && e.EndLine != nil && *e.EndLine < *e.Line {
		return Issue{}, fmt.Errorf("endLine %d before line %d", *e.EndLine, *e.Line)
	}

	issue := Issue{
		ID:         uuid.NewString(),
		AnalysisID: analysisID,
		AnalyzerID: strings.TrimSpace(e.Analyzer),
		RuleID:     strings.TrimSpace(e.Rule),
		Severity:   severity,
		Type:       typ,
		FilePath:   NormalizePath(e.File),
		StartLine:  e.Line,
		EndLine:    e.EndLine,
		Message:    strings.TrimSpace(e.Message),
		Status:     StatusOpen,
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}
	issue.Fingerprint = Fingerprint(issue)
	return issue, nil
}
