package remediation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quality-backend/internal/issues"
	"quality-backend/internal/llm"
	"quality-backend/internal/queue"
	"quality-backend/internal/shared/storage/object/local"
)

type stubLLM struct {
	suggestion llm.Suggestion
	err        error
	calls      int
}

func (s *stubLLM) SuggestFix(ctx context.Context, input llm.IssueInput) (llm.Suggestion, error) {
	s.calls++
	return s.suggestion, s.err
}

func setup(t *testing.T, status issues.Status, client llm.Client) (*Service, issues.Repo) {
	t.Helper()
	repo := issues.NewMemoryRepo()
	line := 4
	require.NoError(t, repo.ReplaceForAnalysis(context.Background(), "a-1", []issues.Issue{{
		ID:          "issue-1",
		AnalysisID:  "a-1",
		AnalyzerID:  "lint",
		RuleID:      "unused-var",
		Severity:    issues.SeverityMajor,
		Type:        issues.TypeCodeSmell,
		FilePath:    "main.go",
		StartLine:   &line,
		Message:     "x is unused",
		Fingerprint: "fp",
		Status:      status,
		IsNew:       true,
	}}))
	svc := &Service{
		Issues: &issues.Service{Repo: repo},
		LLM:    client,
		Store:  local.New(t.TempDir()),
		Now:    func() time.Time { return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) },
	}
	return svc, repo
}

func TestResolveAppliesFixedVerdictToOpenIssue(t *testing.T) {
	client := &stubLLM{suggestion: llm.Suggestion{Verdict: llm.VerdictFixed, Explanation: "drop x", Model: "m"}}
	svc, repo := setup(t, issues.StatusOpen, client)

	rec, err := svc.Resolve(context.Background(), "issue-1")
	require.NoError(t, err)
	assert.Equal(t, issues.StatusResolved, rec.AppliedStatus)
	assert.Equal(t, issues.StatusOpen, rec.PreviousStatus)

	issue, err := repo.GetByID(context.Background(), "issue-1")
	require.NoError(t, err)
	assert.Equal(t, issues.StatusResolved, issue.Status)
	assert.True(t, issue.IsNew)

	stored, err := svc.Get(context.Background(), "issue-1")
	require.NoError(t, err)
	assert.Equal(t, llm.VerdictFixed, stored.Suggestion.Verdict)
	assert.Equal(t, "drop x", stored.Suggestion.Explanation)
}

func TestResolveKeepsHumanDecision(t *testing.T) {
	client := &stubLLM{suggestion: llm.Suggestion{Verdict: llm.VerdictFalsePositive, Explanation: "generated"}}
	svc, repo := setup(t, issues.StatusAcceptedRisk, client)

	rec, err := svc.Resolve(context.Background(), "issue-1")
	require.NoError(t, err)
	assert.Empty(t, rec.AppliedStatus)

	issue, err := repo.GetByID(context.Background(), "issue-1")
	require.NoError(t, err)
	assert.Equal(t, issues.StatusAcceptedRisk, issue.Status)
}

func TestResolveNeedsReviewLeavesStatus(t *testing.T) {
	client := &stubLLM{suggestion: llm.Suggestion{Verdict: llm.VerdictNeedsReview, Explanation: "unclear"}}
	svc, repo := setup(t, issues.StatusOpen, client)

	_, err := svc.Resolve(context.Background(), "issue-1")
	require.NoError(t, err)
	issue, err := repo.GetByID(context.Background(), "issue-1")
	require.NoError(t, err)
	assert.Equal(t, issues.StatusOpen, issue.Status)
}

func TestResolveErrorClassification(t *testing.T) {
	svc, _ := setup(t, issues.StatusOpen, llm.PlaceholderClient{})
	_, err := svc.Resolve(context.Background(), "issue-1")
	assert.True(t, queue.IsPermanent(err))

	_, err = svc.Resolve(context.Background(), "missing")
	assert.True(t, queue.IsPermanent(err))

	flaky := &stubLLM{err: errors.New("connection reset")}
	svc, _ = setup(t, issues.StatusOpen, flaky)
	_, err = svc.Resolve(context.Background(), "issue-1")
	require.Error(t, err)
	assert.False(t, queue.IsPermanent(err))
}

func TestGetRemediationRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	client := &stubLLM{suggestion: llm.Suggestion{Verdict: llm.VerdictFixed, Explanation: "drop x"}}
	svc, _ := setup(t, issues.StatusOpen, client)
	router := gin.New()
	NewHandler(svc).RegisterRoutes(router.Group("/api/v1"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/issues/issue-1/remediation", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err := svc.Resolve(context.Background(), "issue-1")
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/issues/issue-1/remediation", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"verdict":"FIXED"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/issues/nope/remediation", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
