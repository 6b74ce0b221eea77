package measures

import (
	"math"

	"quality-backend/internal/coverage"
	"quality-backend/internal/issues"
)

// Input is everything an analysis has produced that metrics derive from.
type Input struct {
	Issues []issues.Issue
	// Coverage is nil when no coverage was ingested.
	Coverage *coverage.ParsedCoverage
	// BaselineCoverage is the coverage of the baseline analysis, if any.
	BaselineCoverage *coverage.ParsedCoverage
	// LinesOfCode is the submitted size, used when no coverage gives one.
	LinesOfCode int
}

var severityKeys = map[issues.Severity]string{
	issues.SeverityBlocker:  KeyBlockerIssues,
	issues.SeverityCritical: KeyCriticalIssues,
	issues.SeverityMajor:    KeyMajorIssues,
	issues.SeverityMinor:    KeyMinorIssues,
	issues.SeverityInfo:     KeyInfoIssues,
}

var typeKeys = map[issues.Type]string{
	issues.TypeBug:           KeyBugs,
	issues.TypeCodeSmell:     KeyCodeSmells,
	issues.TypeVulnerability: KeyVulnerabilities,
}

// Compute derives the full-run metrics. Coverage keys are omitted when no
// coverage exists so gate conditions on them pass.
func Compute(in Input, cfg DebtConfig) Metrics {
	open := openIssues(in.Issues, false)
	m := issueCounts(open)

	if in.Coverage != nil {
		c := in.Coverage
		// Stored percentages are authoritative; never recompute from counts.
		m[KeyCoverage] = c.CoveragePercent
		m[KeyLineCoverage] = c.CoveragePercent
		if c.TotalBranches > 0 {
			m[KeyBranchCoverage] = c.BranchCoveragePercent
		}
		m[KeyLinesToCover] = float64(c.TotalLines)
		m[KeyUncoveredLines] = float64(c.TotalLines - c.CoveredLines)
	}

	cost := cfg.RemediationCost(open)
	ratio := cfg.DebtRatio(cost, size(in))
	m[KeyRemediationCost] = cost
	m[KeyDebtRatio] = ratio
	m[KeyMaintainabilityRating] = float64(cfg.Rating(ratio))
	return m
}

// ComputeNew derives the leak-period metrics: counts over new open issues
// and the coverage delta against the baseline, which may be negative.
func ComputeNew(in Input, cfg DebtConfig) Metrics {
	fresh := openIssues(in.Issues, true)
	m := issueCounts(fresh)
	m[KeyRemediationCost] = cfg.RemediationCost(fresh)

	if in.Coverage != nil && in.BaselineCoverage != nil {
		delta := in.Coverage.CoveragePercent - in.BaselineCoverage.CoveragePercent
		m[KeyCoverage] = math.Round(delta*100) / 100
	}
	return m
}

func openIssues(list []issues.Issue, onlyNew bool) []issues.Issue {
	out := make([]issues.Issue, 0, len(list))
	for _, i := range list {
		if i.Status != issues.StatusOpen {
			continue
		}
		if onlyNew && !i.IsNew {
			continue
		}
		out = append(out, i)
	}
	return out
}

func issueCounts(list []issues.Issue) Metrics {
	m := Metrics{KeyIssues: float64(len(list))}
	for _, key := range severityKeys {
		m[key] = 0
	}
	for _, key := range typeKeys {
		m[key] = 0
	}
	for _, i := range list {
		if key, ok := severityKeys[i.Severity]; ok {
			m[key]++
		}
		if key, ok := typeKeys[i.Type]; ok {
			m[key]++
		}
	}
	return m
}

func size(in Input) int {
	if in.Coverage != nil && in.Coverage.TotalLines > 0 {
		return in.Coverage.TotalLines
	}
	return in.LinesOfCode
}
