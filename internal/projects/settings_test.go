package projects

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.FixedZone("X", 3600))

	cases := []struct {
		name    string
		in      Settings
		wantErr string
	}{
		{name: "defaults", in: Settings{}},
		{name: "date", in: Settings{LeakPeriod: "date", LeakPeriodDate: &date}},
		{name: "date missing", in: Settings{LeakPeriod: LeakPeriodDate}, wantErr: "leakPeriodDate"},
		{name: "branch missing", in: Settings{LeakPeriod: LeakPeriodBaseBranch, ReferenceBranch: "  "}, wantErr: "referenceBranch"},
		{name: "unknown", in: Settings{LeakPeriod: "FOREVER"}, wantErr: "leakPeriod"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.in.Normalize()
			if tc.wantErr != "" {
				require.ErrorIs(t, err, ErrInvalidSettings)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.LeakPeriod.Valid())
			if got.LeakPeriodDate != nil {
				assert.Equal(t, time.UTC, got.LeakPeriodDate.Location())
			}
		})
	}
}

func TestNormalizeDedupesAnalyzers(t *testing.T) {
	got, err := Settings{EnabledAnalyzers: []string{"gosec", " gosec", "", "eslint"}}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, []string{"gosec", "eslint"}, got.EnabledAnalyzers)
}

func TestServiceFallsBackToDefaults(t *testing.T) {
	svc := &Service{Repo: NewMemoryRepo()}
	s, err := svc.Settings(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, LeakPeriodLastAnalysis, s.LeakPeriod)
	assert.Equal(t, "p-1", s.ProjectID)
}

func TestSettingsHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(&Service{Repo: NewMemoryRepo()}).RegisterRoutes(r.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/projects/p-1/settings",
		strings.NewReader(`{"leakPeriod":"BASE_BRANCH","referenceBranch":"main","enabledAnalyzers":["gosec"]}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/projects/p-1/settings", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"referenceBranch":"main"`)

	req = httptest.NewRequest(http.MethodPut, "/api/v1/projects/p-1/settings", strings.NewReader(`{"leakPeriod":"DATE"}`))
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestPGRepoGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM project_settings")).WithArgs("p-1").WillReturnRows(
		sqlmock.NewRows([]string{"project_id", "leak_period", "leak_period_date", "reference_branch", "enabled_analyzers", "updated_at"}).
			AddRow("p-1", "BASE_BRANCH", nil, "main", []byte(`["gosec"]`), now))

	repo := &PGRepo{DB: db}
	s, err := repo.Get(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, LeakPeriodBaseBranch, s.LeakPeriod)
	assert.Nil(t, s.LeakPeriodDate)
	assert.Equal(t, []string{"gosec"}, s.EnabledAnalyzers)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM project_settings")).WithArgs("p-x").
		WillReturnRows(sqlmock.NewRows([]string{"project_id"}))

	repo := &PGRepo{DB: db}
	_, err = repo.Get(context.Background(), "p-x")
	assert.ErrorIs(t, err, ErrNotFound)
}
