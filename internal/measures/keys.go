package measures

// Metric keys produced for quality gate conditions.
const (
	KeyIssues                = "issues"
	KeyBlockerIssues         = "blocker_issues"
	KeyCriticalIssues        = "critical_issues"
	KeyMajorIssues           = "major_issues"
	KeyMinorIssues           = "minor_issues"
	KeyInfoIssues            = "info_issues"
	KeyBugs                  = "bugs"
	KeyCodeSmells            = "code_smells"
	KeyVulnerabilities       = "vulnerabilities"
	KeyCoverage              = "coverage"
	KeyLineCoverage          = "line_coverage"
	KeyBranchCoverage        = "branch_coverage"
	KeyLinesToCover          = "lines_to_cover"
	KeyUncoveredLines        = "uncovered_lines"
	KeyRemediationCost       = "remediation_cost"
	KeyDebtRatio             = "debt_ratio"
	KeyMaintainabilityRating = "maintainability_rating"
)

// Metrics maps metric keys to values. A key that is absent means the value
// could not be computed, which is different from zero.
type Metrics map[string]float64

// Get returns the value of key and whether it is present.
func (m Metrics) Get(key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	v, ok := m[key]
	return v, ok
}
