package projects

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

func (r *PGRepo) Get(ctx context.Context, projectID string) (Settings, error) {
	defer metrics.ObserveDependency(metrics.DependencyDB, "project_settings_get", time.Now())
	const query = `
SELECT project_id, leak_period, leak_period_date, reference_branch, enabled_analyzers, updated_at
FROM project_settings
WHERE project_id = $1`

	var (
		s         Settings
		period    string
		date      sql.NullTime
		branch    sql.NullString
		analyzers []byte
	)
	err := r.DB.QueryRowContext(ctx, query, projectID).Scan(&s.ProjectID, &period, &date, &branch, &analyzers, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Settings{}, ErrNotFound
		}
		return Settings{}, err
	}
	s.LeakPeriod = LeakPeriod(period)
	if date.Valid {
		t := date.Time.UTC()
		s.LeakPeriodDate = &t
	}
	s.ReferenceBranch = branch.String
	s.EnabledAnalyzers = []string{}
	if len(analyzers) > 0 {
		if err := json.Unmarshal(analyzers, &s.EnabledAnalyzers); err != nil {
			return Settings{}, fmt.Errorf("decode enabled analyzers: %w", err)
		}
	}
	return s, nil
}

func (r *PGRepo) Save(ctx context.Context, s Settings) (Settings, error) {
	defer metrics.ObserveDependency(metrics.DependencyDB, "project_settings_save", time.Now())
	analyzers, err := json.Marshal(s.EnabledAnalyzers)
	if err != nil {
		return Settings{}, err
	}
	var date sql.NullTime
	if s.LeakPeriodDate != nil {
		date = sql.NullTime{Time: *s.LeakPeriodDate, Valid: true}
	}
	branch := sql.NullString{String: s.ReferenceBranch, Valid: s.ReferenceBranch != ""}

	const query = `
INSERT INTO project_settings (project_id, leak_period, leak_period_date, reference_branch, enabled_analyzers, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (project_id) DO UPDATE
SET leak_period = EXCLUDED.leak_period,
    leak_period_date = EXCLUDED.leak_period_date,
    reference_branch = EXCLUDED.reference_branch,
    enabled_analyzers = EXCLUDED.enabled_analyzers,
    updated_at = now()
RETURNING updated_at`
	if err := r.DB.QueryRowContext(ctx, query, s.ProjectID, string(s.LeakPeriod), date, branch, analyzers).Scan(&s.UpdatedAt); err != nil {
		return Settings{}, err
	}
	return s, nil
}

var _ Repo = (*PGRepo)(nil)
