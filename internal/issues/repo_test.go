package issues

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepoReplaceListAndUpdate(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	minor := withFingerprint("1", "r1")
	minor.Severity = SeverityMinor
	blocker := withFingerprint("2", "r2")
	blocker.Severity = SeverityBlocker
	blocker.IsNew = true
	require.NoError(t, repo.ReplaceForAnalysis(ctx, "an-1", []Issue{minor, blocker}))

	all, err := repo.ListByAnalysis(ctx, "an-1", Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2", all[0].ID, "blocker sorts first")

	onlyNew, err := repo.ListByAnalysis(ctx, "an-1", Filter{OnlyNew: true})
	require.NoError(t, err)
	require.Len(t, onlyNew, 1)

	updated, err := repo.UpdateStatus(ctx, "2", StatusFalsePositive)
	require.NoError(t, err)
	assert.Equal(t, StatusFalsePositive, updated.Status)
	assert.True(t, updated.IsNew, "isNew is untouched by status changes")

	require.NoError(t, repo.ReplaceForAnalysis(ctx, "an-1", []Issue{minor}))
	_, err = repo.GetByID(ctx, "2")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.UpdateStatus(ctx, "missing", StatusResolved)
	assert.ErrorIs(t, err, ErrNotFound)
}

func issueRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "analysis_id", "analyzer_id", "rule_id", "severity", "type", "file_path", "start_line", "end_line",
		"message", "fingerprint", "status", "is_new", "created_at", "updated_at",
	})
}

func TestPGRepoReplaceForAnalysis(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	issue := withFingerprint("1", "r1")
	issue.Severity = SeverityMajor
	issue.Type = TypeBug
	issue.CreatedAt = time.Now()
	issue.UpdatedAt = issue.CreatedAt

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM issues WHERE analysis_id = $1")).
		WithArgs("an-1").WillReturnResult(sqlmock.NewResult(0, 3))
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO issues"))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := &PGRepo{DB: db}
	require.NoError(t, repo.ReplaceForAnalysis(context.Background(), "an-1", []Issue{issue}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoListAppliesFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE analysis_id = $1 AND is_new = TRUE AND severity = $2")).
		WithArgs("an-1", "BLOCKER").
		WillReturnRows(issueRows().AddRow("1", "an-1", "gosec", "G101", "BLOCKER", "VULNERABILITY", "a.go", 4, nil,
			"secret", "fp", "OPEN", true, now, now))

	repo := &PGRepo{DB: db}
	got, err := repo.ListByAnalysis(context.Background(), "an-1", Filter{OnlyNew: true, Severity: SeverityBlocker})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4, *got[0].StartLine)
	assert.Nil(t, got[0].EndLine)
	assert.True(t, got[0].IsNew)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoUpdateStatusNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE issues")).
		WithArgs("RESOLVED", "missing").
		WillReturnRows(issueRows())

	repo := &PGRepo{DB: db}
	_, err = repo.UpdateStatus(context.Background(), "missing", StatusResolved)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
