package analyses

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quality-backend/internal/measures"
	"quality-backend/internal/qualitygate"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func analysisColumnNames() []string {
	names := strings.Split(strings.Join(strings.Fields(analysisColumns), ""), ",")
	return names
}

func analysisRow(id string, status Status, submitted time.Time, metricsJSON []byte) *sqlmock.Rows {
	return sqlmock.NewRows(analysisColumnNames()).AddRow(
		id, "proj-1", "main", "", "", "abc", string(status),
		"", "projects/proj-1/analyses/"+id+"/report.json", 100, nil, metricsJSON, nil,
		nil, nil, nil, submitted, nil, nil, submitted,
	)
}

func TestPGRepoCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	submitted := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := Analysis{
		ID:          "a-1",
		ProjectID:   "proj-1",
		Branch:      "main",
		CommitSHA:   "abc",
		Status:      StatusPending,
		ReportKey:   "projects/proj-1/analyses/a-1/report.json",
		LinesOfCode: 100,
		SubmittedAt: submitted,
	}

	mock.ExpectExec("INSERT INTO analyses").
		WithArgs("a-1", "proj-1", "main", "", "", "abc", "PENDING", "", a.ReportKey, 100, submitted).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), a))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoGetByIDDecodesMetrics(t *testing.T) {
	repo, mock := newMockRepo(t)
	submitted := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery("FROM analyses WHERE id = \\$1").
		WithArgs("a-1").
		WillReturnRows(analysisRow("a-1", StatusSuccess, submitted, []byte(`{"issues":3,"coverage":81.5}`)))

	a, err := repo.GetByID(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, a.Status)
	assert.Equal(t, measures.Metrics{"issues": 3, "coverage": 81.5}, a.Metrics)
	assert.Nil(t, a.MetricsNew)
	assert.Nil(t, a.BaselineAnalysisID)
	assert.Equal(t, qualitygate.Status(""), a.QualityGateStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM analyses WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPGRepoTransitionRejectsSkippedState(t *testing.T) {
	repo, _ := newMockRepo(t)
	_, err := repo.Transition(context.Background(), "a-1", StatusPending, StatusSuccess, time.Now(), nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPGRepoTransitionCompareAndSet(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE analyses")).
		WithArgs("RUNNING", at, sql.NullString{}, sql.NullString{}, "a-1", "PENDING").
		WillReturnRows(analysisRow("a-1", StatusRunning, at, nil))

	a, err := repo.Transition(context.Background(), "a-1", StatusPending, StatusRunning, at, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, a.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoTransitionLostRace(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE analyses")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("FROM analyses WHERE id = \\$1").
		WithArgs("a-1").
		WillReturnRows(analysisRow("a-1", StatusSuccess, at, nil))

	_, err := repo.Transition(context.Background(), "a-1", StatusRunning, StatusFailed, at, &Failure{Code: ErrorCodeInternal, Message: "boom"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoSaveResults(t *testing.T) {
	repo, mock := newMockRepo(t)
	baseline := "a-0"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE analyses")).
		WithArgs(sql.NullString{String: "a-0", Valid: true}, 100, []byte(`{"issues":2}`), []byte(`{"issues":1}`),
			sql.NullString{String: "PASS", Valid: true}, "a-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveResults(context.Background(), "a-1", Results{
		BaselineAnalysisID: &baseline,
		LinesOfCode:        100,
		Metrics:            measures.Metrics{"issues": 2},
		MetricsNew:         measures.Metrics{"issues": 1},
		QualityGateStatus:  qualitygate.StatusPass,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoFindBaselineWithDateBound(t *testing.T) {
	repo, mock := newMockRepo(t)
	before := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	notAfter := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("AND submitted_at <= $5")).
		WithArgs("proj-1", "main", before, "a-2", notAfter).
		WillReturnRows(analysisRow("a-1", StatusSuccess, notAfter, nil))

	a, err := repo.FindBaseline(context.Background(), BaselineQuery{
		ProjectID: "proj-1",
		Branch:    "main",
		Before:    before,
		NotAfter:  &notAfter,
		ExcludeID: "a-2",
	})
	require.NoError(t, err)
	assert.Equal(t, "a-1", a.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoCountByStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("GROUP BY status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("PENDING", 4).AddRow("RUNNING", 1))

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, counts[StatusPending])
	assert.Equal(t, 1, counts[StatusRunning])
}
