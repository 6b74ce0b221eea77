package qualitygate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quality-backend/internal/shared/metrics"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// GetByProject loads a gate and its ordered conditions.
func (r *PGRepo) GetByProject(ctx context.Context, projectID string) (Gate, error) {
	defer metrics.ObserveDependency(metrics.DependencyDB, "quality_gate_get", time.Now())
	const query = `
SELECT g.id, g.project_id, g.name, g.updated_at,
       c.metric, c.operator, c.threshold, c.scope
FROM quality_gates g
LEFT JOIN quality_gate_conditions c ON c.gate_id = g.id
WHERE g.project_id = $1
ORDER BY c.position`

	rows, err := r.DB.QueryContext(ctx, query, projectID)
	if err != nil {
		return Gate{}, err
	}
	defer rows.Close()

	var (
		gate  Gate
		found bool
	)
	for rows.Next() {
		var (
			metric, op, scope sql.NullString
			threshold         sql.NullFloat64
		)
		if err := rows.Scan(&gate.ID, &gate.ProjectID, &gate.Name, &gate.UpdatedAt, &metric, &op, &threshold, &scope); err != nil {
			return Gate{}, err
		}
		found = true
		if metric.Valid {
			gate.Conditions = append(gate.Conditions, Condition{
				Metric:    metric.String,
				Operator:  Operator(op.String),
				Threshold: threshold.Float64,
				Scope:     Scope(scope.String),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return Gate{}, err
	}
	if !found {
		return Gate{}, ErrNotFound
	}
	if gate.Conditions == nil {
		gate.Conditions = []Condition{}
	}
	return gate, nil
}

// Save upserts the gate row and rewrites its conditions in one transaction.
func (r *PGRepo) Save(ctx context.Context, gate Gate) (Gate, error) {
	defer metrics.ObserveDependency(metrics.DependencyDB, "quality_gate_save", time.Now())
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Gate{}, err
	}
	defer tx.Rollback()

	if gate.ID == "" {
		gate.ID = uuid.NewString()
	}
	const upsert = `
INSERT INTO quality_gates (id, project_id, name, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (project_id) DO UPDATE
SET name = EXCLUDED.name,
    updated_at = now()
RETURNING id, updated_at`
	if err := tx.QueryRowContext(ctx, upsert, gate.ID, gate.ProjectID, gate.Name).Scan(&gate.ID, &gate.UpdatedAt); err != nil {
		return Gate{}, fmt.Errorf("upsert quality gate: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM quality_gate_conditions WHERE gate_id = $1`, gate.ID); err != nil {
		return Gate{}, fmt.Errorf("delete conditions: %w", err)
	}
	for pos, c := range gate.Conditions {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO quality_gate_conditions (gate_id, position, metric, operator, threshold, scope)
VALUES ($1, $2, $3, $4, $5, $6)`,
			gate.ID, pos, c.Metric, string(c.Operator), c.Threshold, string(c.Scope),
		); err != nil {
			return Gate{}, fmt.Errorf("insert condition %d: %w", pos, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Gate{}, err
	}
	gate.IsDefault = false
	return gate, nil
}

var _ Repo = (*PGRepo)(nil)
