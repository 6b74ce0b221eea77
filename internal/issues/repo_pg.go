package issues

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"quality-backend/internal/shared/metrics"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const issueColumns = `id, analysis_id, analyzer_id, rule_id, severity, type, file_path, start_line, end_line,
       message, fingerprint, status, is_new, created_at, updated_at`

// ReplaceForAnalysis deletes and reinserts the issue set in one transaction.
func (r *PGRepo) ReplaceForAnalysis(ctx context.Context, analysisID string, issues []Issue) error {
	defer metrics.ObserveDependency(metrics.DependencyDB, "issues_replace", time.Now())
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE analysis_id = $1`, analysisID); err != nil {
		return fmt.Errorf("delete issues: %w", err)
	}

	const insert = `
INSERT INTO issues (
	id, analysis_id, analyzer_id, rule_id, severity, type, file_path, start_line, end_line,
	message, fingerprint, status, is_new, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, i := range issues {
		if _, err := stmt.ExecContext(ctx,
			i.ID,
			analysisID,
			i.AnalyzerID,
			i.RuleID,
			string(i.Severity),
			string(i.Type),
			i.FilePath,
			nullInt(i.StartLine),
			nullInt(i.EndLine),
			i.Message,
			i.Fingerprint,
			string(i.Status),
			i.IsNew,
			i.CreatedAt,
			i.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert issue %s: %w", i.ID, err)
		}
	}
	return tx.Commit()
}

// ListByAnalysis lists issues of an analysis, highest severity first.
func (r *PGRepo) ListByAnalysis(ctx context.Context, analysisID string, filter Filter) ([]Issue, error) {
	defer metrics.ObserveDependency(metrics.DependencyDB, "issues_list", time.Now())
	where := []string{"analysis_id = $1"}
	args := []any{analysisID}
	if filter.OnlyNew {
		where = append(where, "is_new = TRUE")
	}
	if filter.Severity != "" {
		args = append(args, string(filter.Severity))
		where = append(where, fmt.Sprintf("severity = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `
SELECT ` + issueColumns + `
FROM issues
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY array_position(ARRAY['BLOCKER','CRITICAL','MAJOR','MINOR','INFO']::text[], severity),
         file_path, start_line NULLS FIRST, id`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Issue{}
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, issue)
	}
	return out, rows.Err()
}

// GetByID returns an issue by ID.
func (r *PGRepo) GetByID(ctx context.Context, issueID string) (Issue, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = $1 LIMIT 1`, issueID)
	issue, err := scanIssue(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Issue{}, ErrNotFound
		}
		return Issue{}, err
	}
	return issue, nil
}

// UpdateStatus changes the resolution status; is_new is never touched.
func (r *PGRepo) UpdateStatus(ctx context.Context, issueID string, status Status) (Issue, error) {
	const query = `
UPDATE issues
SET status = $1,
    updated_at = now()
WHERE id = $2
RETURNING ` + issueColumns

	issue, err := scanIssue(r.DB.QueryRowContext(ctx, query, string(status), issueID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Issue{}, ErrNotFound
		}
		return Issue{}, err
	}
	return issue, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIssue(s scanner) (Issue, error) {
	var (
		i                  Issue
		severity, typ, st  string
		startLine, endLine sql.NullInt64
	)
	if err := s.Scan(
		&i.ID,
		&i.AnalysisID,
		&i.AnalyzerID,
		&i.RuleID,
		&severity,
		&typ,
		&i.FilePath,
		&startLine,
		&endLine,
		&i.Message,
		&i.Fingerprint,
		&st,
		&i.IsNew,
		&i.CreatedAt,
		&i.UpdatedAt,
	); err != nil {
		return Issue{}, err
	}
	i.Severity = Severity(severity)
	i.Type = Type(typ)
	i.Status = Status(st)
	if startLine.Valid {
		v := int(startLine.Int64)
		i.StartLine = &v
	}
	if endLine.Valid {
		v := int(endLine.Int64)
		i.EndLine = &v
	}
	return i, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

var _ Repo = (*PGRepo)(nil)
