package issues

import (
	"strings"
	"time"
)

// Severity is ordered INFO < MINOR < MAJOR < CRITICAL < BLOCKER.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityMinor    Severity = "MINOR"
	SeverityMajor    Severity = "MAJOR"
	SeverityCritical Severity = "CRITICAL"
	SeverityBlocker  Severity = "BLOCKER"
)

// Severities lists every severity in ascending order.
var Severities = []Severity{SeverityInfo, SeverityMinor, SeverityMajor, SeverityCritical, SeverityBlocker}

// Rank returns the position of s in the severity order, or -1 if unknown.
func (s Severity) Rank() int {
	for i, v := range Severities {
		if v == s {
			return i
		}
	}
	return -1
}

func (s Severity) Valid() bool { return s.Rank() >= 0 }

type Type string

const (
	TypeBug           Type = "BUG"
	TypeCodeSmell     Type = "CODE_SMELL"
	TypeVulnerability Type = "VULNERABILITY"
)

var Types = []Type{TypeBug, TypeCodeSmell, TypeVulnerability}

func (t Type) Valid() bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

// Status is the resolution state of an issue. Only human or LLM resolution
// actions change it after the issue is created.
type Status string

const (
	StatusOpen          Status = "OPEN"
	StatusFalsePositive Status = "FALSE_POSITIVE"
	StatusAcceptedRisk  Status = "ACCEPTED_RISK"
	StatusResolved      Status = "RESOLVED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusFalsePositive, StatusAcceptedRisk, StatusResolved:
		return true
	}
	return false
}

// ParseStatus normalizes a user supplied status value.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// Issue is one finding attached to an analysis.
type Issue struct {
	ID          string    `json:"id"`
	AnalysisID  string    `json:"analysisId"`
	AnalyzerID  string    `json:"analyzerId"`
	RuleID      string    `json:"ruleId"`
	Severity    Severity  `json:"severity"`
	Type        Type      `json:"type"`
	FilePath    string    `json:"filePath"`
	StartLine   *int      `json:"startLine,omitempty"`
	EndLine     *int      `json:"endLine,omitempty"`
	Message     string    `json:"message"`
	Fingerprint string    `json:"fingerprint"`
	Status      Status    `json:"status"`
	IsNew       bool      `json:"isNew"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Filter narrows issue listings.
type Filter struct {
	OnlyNew  bool
	Severity Severity
	Status   Status
}

func (f Filter) matches(i Issue) bool {
	if f.OnlyNew && !i.IsNew {
		return false
	}
	if f.Severity != "" && i.Severity != f.Severity {
		return false
	}
	if f.Status != "" && i.Status != f.Status {
		return false
	}
	return true
}
