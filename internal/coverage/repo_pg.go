package coverage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quality-backend/internal/shared/metrics"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts the report; a second insert for the same analysis returns ErrAlreadyIngested.
func (r *PGRepo) Create(ctx context.Context, report Report) error {
	defer metrics.ObserveDependency(metrics.DependencyDB, "coverage_create", time.Now())
	const query = `
INSERT INTO coverage_reports (
	id, analysis_id, format, total_lines, covered_lines, total_branches, covered_branches,
	coverage_percent, branch_coverage_percent, files, artifact_key, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (analysis_id) DO NOTHING`

	files, err := json.Marshal(report.Files)
	if err != nil {
		return fmt.Errorf("encode coverage files: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, query,
		report.ID,
		report.AnalysisID,
		string(report.Format),
		report.TotalLines,
		report.CoveredLines,
		report.TotalBranches,
		report.CoveredBranches,
		report.CoveragePercent,
		report.BranchCoveragePercent,
		files,
		nullString(report.ArtifactKey),
		report.CreatedAt,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyIngested
	}
	return nil
}

// GetByAnalysis returns the report of an analysis.
func (r *PGRepo) GetByAnalysis(ctx context.Context, analysisID string) (Report, error) {
	defer metrics.ObserveDependency(metrics.DependencyDB, "coverage_get", time.Now())
	const query = `
SELECT id, analysis_id, format, total_lines, covered_lines, total_branches, covered_branches,
       coverage_percent, branch_coverage_percent, files, artifact_key, created_at
FROM coverage_reports
WHERE analysis_id = $1
LIMIT 1`

	var (
		rep         Report
		format      string
		files       []byte
		artifactKey sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, query, analysisID).Scan(
		&rep.ID,
		&rep.AnalysisID,
		&format,
		&rep.TotalLines,
		&rep.CoveredLines,
		&rep.TotalBranches,
		&rep.CoveredBranches,
		&rep.CoveragePercent,
		&rep.BranchCoveragePercent,
		&files,
		&artifactKey,
		&rep.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Report{}, ErrNotFound
		}
		return Report{}, err
	}
	rep.Format = Format(format)
	if artifactKey.Valid {
		rep.ArtifactKey = artifactKey.String
	}
	if len(files) > 0 {
		if err := json.Unmarshal(files, &rep.Files); err != nil {
			return Report{}, fmt.Errorf("decode coverage files: %w", err)
		}
	}
	return rep, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Repo = (*PGRepo)(nil)
