package qualitygate

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepoSaveKeepsID(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	_, err := repo.GetByProject(ctx, "p-1")
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := repo.Save(ctx, Gate{ProjectID: "p-1", Name: "g", Conditions: []Condition{{Metric: "bugs", Operator: OperatorGT, Scope: ScopeAll}}})
	require.NoError(t, err)
	second, err := repo.Save(ctx, Gate{ProjectID: "p-1", Name: "g2"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, err := repo.GetByProject(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "g2", got.Name)
	assert.Empty(t, got.Conditions)
}

func TestPGRepoGetByProjectOrdersConditions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "project_id", "name", "updated_at", "metric", "operator", "threshold", "scope"}).
		AddRow("g-1", "p-1", "gate", now, "blocker_issues", "GT", 0.0, "ALL").
		AddRow("g-1", "p-1", "gate", now, "coverage", "LT", 80.0, "NEW")
	mock.ExpectQuery(regexp.QuoteMeta("FROM quality_gates g")).WithArgs("p-1").WillReturnRows(rows)

	repo := &PGRepo{DB: db}
	gate, err := repo.GetByProject(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, gate.Conditions, 2)
	assert.Equal(t, ScopeNew, gate.Conditions[1].Scope)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoGetByProjectNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM quality_gates g")).WithArgs("p-x").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "name", "updated_at", "metric", "operator", "threshold", "scope"}))

	repo := &PGRepo{DB: db}
	_, err = repo.GetByProject(context.Background(), "p-x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPGRepoSaveRewritesConditions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO quality_gates")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "updated_at"}).AddRow("g-existing", now))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM quality_gate_conditions")).
		WithArgs("g-existing").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quality_gate_conditions")).
		WithArgs("g-existing", 0, "bugs", "GT", 1.0, "ALL").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := &PGRepo{DB: db}
	gate, err := repo.Save(context.Background(), Gate{ProjectID: "p-1", Name: "gate", Conditions: []Condition{
		{Metric: "bugs", Operator: OperatorGT, Threshold: 1, Scope: ScopeAll},
	}})
	require.NoError(t, err)
	assert.Equal(t, "g-existing", gate.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
