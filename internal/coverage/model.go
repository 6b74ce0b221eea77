package coverage

import "time"

// FileCoverage is the canonical per-file coverage breakdown.
type FileCoverage struct {
	Path            string      `json:"path"`
	Lines           int         `json:"lines"`
	CoveredLines    int         `json:"coveredLines"`
	Branches        int         `json:"branches"`
	CoveredBranches int         `json:"coveredBranches"`
	CoveragePercent float64     `json:"coveragePercent"`
	LineHits        map[int]int `json:"lineHits"`
}

// ParsedCoverage is the canonical shape every format parser produces.
// Aggregates always equal the sum over Files.
type ParsedCoverage struct {
	Format                Format         `json:"format"`
	TotalLines            int            `json:"totalLines"`
	CoveredLines          int            `json:"coveredLines"`
	TotalBranches         int            `json:"totalBranches"`
	CoveredBranches       int            `json:"coveredBranches"`
	CoveragePercent       float64        `json:"coveragePercent"`
	BranchCoveragePercent float64        `json:"branchCoveragePercent"`
	Files                 []FileCoverage `json:"files"`
}

// Report is the persisted coverage snapshot of one analysis.
type Report struct {
	ID          string    `json:"id"`
	AnalysisID  string    `json:"analysisId"`
	ArtifactKey string    `json:"artifactKey,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	ParsedCoverage
}
