package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"quality-backend/internal/measures"
	"quality-backend/internal/qualitygate"
	"quality-backend/internal/shared/metrics"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const analysisColumns = `id, project_id, branch, pull_request, target_branch, commit_sha, status,
       source_key, report_key, lines_of_code, baseline_analysis_id, metrics, metrics_new,
       quality_gate_status, error_code, error_message, submitted_at, started_at, finished_at, updated_at`

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, a Analysis) error {
	defer metrics.ObserveDependency(metrics.DependencyDB, "analysis_create", time.Now())
	const query = `
INSERT INTO analyses (
	id, project_id, branch, pull_request, target_branch, commit_sha, status,
	source_key, report_key, lines_of_code, submitted_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`
	_, err := r.DB.ExecContext(ctx, query,
		a.ID,
		a.ProjectID,
		a.Branch,
		a.PullRequest,
		a.TargetBranch,
		a.CommitSHA,
		string(a.Status),
		a.SourceKey,
		a.ReportKey,
		a.LinesOfCode,
		a.SubmittedAt,
	)
	return err
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	defer metrics.ObserveDependency(metrics.DependencyDB, "analysis_get", time.Now())
	row := r.DB.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = $1 LIMIT 1`, analysisID)
	a, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	return a, nil
}

// List returns matching analyses newest first.
func (r *PGRepo) List(ctx context.Context, filter ListFilter) ([]Analysis, error) {
	defer metrics.ObserveDependency(metrics.DependencyDB, "analysis_list", time.Now())
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.ProjectID != "" {
		add("project_id = $%d", filter.ProjectID)
	}
	if filter.Branch != "" {
		add("branch = $%d", filter.Branch)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	query := `SELECT ` + analysisColumns + ` FROM analyses`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY submitted_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Transition performs a compare-and-set on the status column.
func (r *PGRepo) Transition(ctx context.Context, analysisID string, from, to Status, at time.Time, failure *Failure) (Analysis, error) {
	defer metrics.ObserveDependency(metrics.DependencyDB, "analysis_transition", time.Now())
	if !CanTransition(from, to) {
		return Analysis{}, ErrInvalidTransition
	}
	var code, msg sql.NullString
	if failure != nil {
		code = sql.NullString{String: failure.Code, Valid: true}
		msg = sql.NullString{String: failure.Message, Valid: true}
	}
	const query = `
UPDATE analyses
SET status = $1::text,
    updated_at = $2::timestamptz,
    started_at = CASE WHEN $1::text = 'RUNNING' THEN $2::timestamptz ELSE started_at END,
    finished_at = CASE WHEN $1::text IN ('SUCCESS', 'FAILED') THEN $2::timestamptz ELSE finished_at END,
    error_code = COALESCE($3, error_code),
    error_message = COALESCE($4, error_message)
WHERE id = $5 AND status = $6
RETURNING ` + analysisColumns

	a, err := scanAnalysis(r.DB.QueryRowContext(ctx, query, string(to), at.UTC(), code, msg, analysisID, string(from)))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, err
	}
	if _, getErr := r.GetByID(ctx, analysisID); getErr != nil {
		return Analysis{}, getErr
	}
	return Analysis{}, ErrInvalidTransition
}

// SaveResults stores baseline, metrics and gate status.
func (r *PGRepo) SaveResults(ctx context.Context, analysisID string, results Results) error {
	defer metrics.ObserveDependency(metrics.DependencyDB, "analysis_save_results", time.Now())
	all, err := marshalMetrics(results.Metrics)
	if err != nil {
		return err
	}
	fresh, err := marshalMetrics(results.MetricsNew)
	if err != nil {
		return err
	}
	var baseline sql.NullString
	if results.BaselineAnalysisID != nil {
		baseline = sql.NullString{String: *results.BaselineAnalysisID, Valid: true}
	}
	const query = `
UPDATE analyses
SET baseline_analysis_id = $1,
    lines_of_code = CASE WHEN $2 > 0 THEN $2 ELSE lines_of_code END,
    metrics = $3,
    metrics_new = $4,
    quality_gate_status = $5,
    updated_at = now()
WHERE id = $6`
	res, err := r.DB.ExecContext(ctx, query, baseline, results.LinesOfCode, all, fresh, nullString(string(results.QualityGateStatus)), analysisID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindBaseline returns the latest qualifying SUCCESS analysis.
func (r *PGRepo) FindBaseline(ctx context.Context, q BaselineQuery) (Analysis, error) {
	defer metrics.ObserveDependency(metrics.DependencyDB, "analysis_baseline", time.Now())
	query := `
SELECT ` + analysisColumns + `
FROM analyses
WHERE project_id = $1
  AND branch = $2
  AND status = 'SUCCESS'
  AND submitted_at < $3
  AND id <> $4`
	args := []any{q.ProjectID, q.Branch, q.Before.UTC(), q.ExcludeID}
	if q.NotAfter != nil {
		args = append(args, q.NotAfter.UTC())
		query += `
  AND submitted_at <= $5`
	}
	query += `
ORDER BY submitted_at DESC, id DESC
LIMIT 1`

	a, err := scanAnalysis(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	return a, nil
}

// CountByStatus counts analyses per status.
func (r *PGRepo) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM analyses GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[Status]int, 4)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[Status(status)] = n
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(s scanner) (Analysis, error) {
	var (
		a                     Analysis
		status                string
		baseline              sql.NullString
		metricsRaw, newRaw    []byte
		gateStatus            sql.NullString
		errCode, errMessage   sql.NullString
		startedAt, finishedAt sql.NullTime
	)
	if err := s.Scan(
		&a.ID,
		&a.ProjectID,
		&a.Branch,
		&a.PullRequest,
		&a.TargetBranch,
		&a.CommitSHA,
		&status,
		&a.SourceKey,
		&a.ReportKey,
		&a.LinesOfCode,
		&baseline,
		&metricsRaw,
		&newRaw,
		&gateStatus,
		&errCode,
		&errMessage,
		&a.SubmittedAt,
		&startedAt,
		&finishedAt,
		&a.UpdatedAt,
	); err != nil {
		return Analysis{}, err
	}
	a.Status = Status(status)
	if baseline.Valid {
		v := baseline.String
		a.BaselineAnalysisID = &v
	}
	var err error
	if a.Metrics, err = unmarshalMetrics(metricsRaw); err != nil {
		return Analysis{}, err
	}
	if a.MetricsNew, err = unmarshalMetrics(newRaw); err != nil {
		return Analysis{}, err
	}
	a.QualityGateStatus = qualitygate.Status(gateStatus.String)
	if errCode.Valid {
		v := errCode.String
		a.ErrorCode = &v
	}
	if errMessage.Valid {
		v := errMessage.String
		a.ErrorMessage = &v
	}
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		a.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		a.FinishedAt = &t
	}
	return a, nil
}

func marshalMetrics(m measures.Metrics) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func unmarshalMetrics(raw []byte) (measures.Metrics, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m measures.Metrics
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}
	return m, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Repo = (*PGRepo)(nil)
