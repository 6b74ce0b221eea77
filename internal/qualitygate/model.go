package qualitygate

import (
	"strings"
	"time"
)

// Operator names the comparison under which a condition FAILS.
type Operator string

const (
	OperatorGT Operator = "GT"
	OperatorLT Operator = "LT"
	OperatorEQ Operator = "EQ"
)

func (o Operator) Valid() bool {
	switch o {
	case OperatorGT, OperatorLT, OperatorEQ:
		return true
	}
	return false
}

// Scope selects full-run metrics (ALL) or leak-period metrics (NEW).
type Scope string

const (
	ScopeAll Scope = "ALL"
	ScopeNew Scope = "NEW"
)

func (s Scope) Valid() bool { return s == ScopeAll || s == ScopeNew }

// Condition is one metric check of a gate.
type Condition struct {
	Metric    string   `json:"metric" yaml:"metric"`
	Operator  Operator `json:"operator" yaml:"operator"`
	Threshold float64  `json:"threshold" yaml:"threshold"`
	Scope     Scope    `json:"scope" yaml:"scope"`
}

func (c Condition) normalized() Condition {
	c.Metric = strings.TrimSpace(c.Metric)
	c.Operator = Operator(strings.ToUpper(strings.TrimSpace(string(c.Operator))))
	c.Scope = Scope(strings.ToUpper(strings.TrimSpace(string(c.Scope))))
	if c.Scope == "" {
		c.Scope = ScopeAll
	}
	return c
}

// Gate is the ordered condition set of a project.
type Gate struct {
	ID         string      `json:"id"`
	ProjectID  string      `json:"projectId"`
	Name       string      `json:"name"`
	Conditions []Condition `json:"conditions"`
	IsDefault  bool        `json:"isDefault"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

// ConditionResult is the per-condition breakdown of an evaluation. Value is
// nil when the metric was absent; such a condition passes.
type ConditionResult struct {
	Metric    string   `json:"metric"`
	Operator  Operator `json:"operator"`
	Threshold float64  `json:"threshold"`
	Scope     Scope    `json:"scope"`
	Value     *float64 `json:"value"`
	Evaluated bool     `json:"evaluated"`
	Passed    bool     `json:"passed"`
}

// Result is the verdict of a gate over one set of metrics.
type Result struct {
	Status     Status            `json:"status"`
	Conditions []ConditionResult `json:"conditions"`
}
