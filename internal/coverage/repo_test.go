package coverage

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepoWriteOnce(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	_, err := repo.GetByAnalysis(ctx, "a-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Create(ctx, Report{ID: "c-1", AnalysisID: "a-1"}))
	assert.ErrorIs(t, repo.Create(ctx, Report{ID: "c-2", AnalysisID: "a-1"}), ErrAlreadyIngested)

	got, err := repo.GetByAnalysis(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", got.ID)
}

func TestPGRepoCreateConflictIsAlreadyIngested(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &PGRepo{DB: db}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO coverage_reports")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Create(context.Background(), Report{
		ID:         "c-1",
		AnalysisID: "a-1",
		CreatedAt:  time.Now(),
		ParsedCoverage: ParsedCoverage{
			Format: FormatLineCoverage,
			Files:  []FileCoverage{{Path: "a.go", Lines: 1, CoveredLines: 1, LineHits: map[int]int{1: 1}}},
		},
	})
	assert.ErrorIs(t, err, ErrAlreadyIngested)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoGetByAnalysisDecodesFiles(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "analysis_id", "format", "total_lines", "covered_lines", "total_branches", "covered_branches",
		"coverage_percent", "branch_coverage_percent", "files", "artifact_key", "created_at",
	}).AddRow("c-1", "a-1", "LINE_COVERAGE", 2, 1, 0, 0, 50.0, 0.0,
		[]byte(`[{"path":"a.go","lines":2,"coveredLines":1,"branches":0,"coveredBranches":0,"coveragePercent":50,"lineHits":{"1":1,"2":0}}]`),
		nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM coverage_reports")).WithArgs("a-1").WillReturnRows(rows)

	repo := &PGRepo{DB: db}
	got, err := repo.GetByAnalysis(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, FormatLineCoverage, got.Format)
	assert.Equal(t, 50.0, got.CoveragePercent)
	require.Len(t, got.Files, 1)
	assert.Equal(t, 1, got.Files[0].LineHits[1])
	assert.Empty(t, got.ArtifactKey)
	require.NoError(t, mock.ExpectationsWereMet())
}
