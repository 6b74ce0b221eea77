package analyses

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"quality-backend/internal/coverage"
	"quality-backend/internal/issues"
	"quality-backend/internal/queue"
	"quality-backend/internal/shared/server/middleware"
	"quality-backend/internal/shared/server/respond"
	"quality-backend/internal/shared/storage/object"
	"quality-backend/internal/shared/telemetry"
)

const maxCoverageBytes = 16 << 20

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/projects/:projectId/analyses", h.submit)
	rg.GET("/projects/:projectId/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
	rg.GET("/analyses/:id/issues", h.listIssues)
	rg.POST("/analyses/:id/coverage", h.ingestCoverage)
	rg.GET("/analyses/:id/coverage", h.getCoverage)
	rg.GET("/analyses/:id/quality-gate", h.qualityGate)
	rg.GET("/analyses/:id/source-url", h.sourceURL)
}

func (h *Handler) submit(c *gin.Context) {
	projectID := c.Param("projectId")
	c.Set(middleware.ProjectIDKey, projectID)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxReportBytes+1<<20)
	if !parseForm(c) {
		return
	}

	in := SubmitInput{
		ProjectID:    projectID,
		Branch:       c.PostForm("branch"),
		PullRequest:  c.PostForm("pullRequest"),
		TargetBranch: c.PostForm("targetBranch"),
		CommitSHA:    c.PostForm("commitSha"),
	}
	if raw := strings.TrimSpace(c.PostForm("linesOfCode")); raw != "" {
		loc, err := strconv.Atoi(raw)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "linesOfCode must be an integer", []map[string]string{
				{"field": "linesOfCode", "issue": "invalid"},
			})
			return
		}
		in.LinesOfCode = loc
	}

	if fh, err := c.FormFile("report"); err == nil {
		raw, err := readPart(fh, maxReportBytes)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, err.Error(), nil)
			return
		}
		in.Report = raw
	}
	if fh, err := c.FormFile("source"); err == nil {
		f, err := fh.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "unable to read source upload", nil)
			return
		}
		defer f.Close()
		in.Source = f
		in.SourceName = fh.Filename
	}

	ctx := telemetry.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	analysis, err := h.Svc.Submit(ctx, in)
	if err != nil {
		writeError(c, err, "failed to submit analysis")
		return
	}
	c.Set(middleware.AnalysisIDKey, analysis.ID)
	c.Set(middleware.StatusTransitionKey, "->"+string(StatusPending))

	respond.Accepted(c, gin.H{
		"analysisId":     analysis.ID,
		"status":         analysis.Status,
		"statusUrl":      "/api/v1/analyses/" + analysis.ID,
		"qualityGateUrl": "/api/v1/analyses/" + analysis.ID + "/quality-gate",
	})
}

func parseForm(c *gin.Context) bool {
	err := c.Request.ParseMultipartForm(8 << 20)
	if err == nil {
		return true
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		respond.Error(c, http.StatusRequestEntityTooLarge, respond.CodePayloadTooLarge, "upload too large", nil)
		return false
	}
	respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "multipart form data required", nil)
	return false
}

func readPart(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	if fh.Size > limit {
		return nil, fmt.Errorf("%s exceeds %d bytes", fh.Filename, limit)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.New("unable to read upload")
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit))
}

func (h *Handler) getAnalysis(c *gin.Context) {
	analysis, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to fetch analysis")
		return
	}
	c.Set(middleware.AnalysisIDKey, analysis.ID)
	respond.OK(c, analysis)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	filter := ListFilter{
		ProjectID: c.Param("projectId"),
		Branch:    c.Query("branch"),
		Limit:     20,
	}
	if v := c.Query("status"); v != "" {
		st := Status(strings.ToUpper(v))
		if !st.Valid() {
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "unknown status "+v, nil)
			return
		}
		filter.Status = st
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Offset = parsed
		}
	}

	list, err := h.Svc.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err, "failed to list analyses")
		return
	}
	if list == nil {
		list = []Analysis{}
	}
	respond.OK(c, list)
}

func (h *Handler) listIssues(c *gin.Context) {
	filter := issues.Filter{}
	if v := c.Query("new"); v != "" {
		onlyNew, err := strconv.ParseBool(v)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "new must be a boolean", nil)
			return
		}
		filter.OnlyNew = onlyNew
	}
	if v := c.Query("severity"); v != "" {
		sev := issues.Severity(strings.ToUpper(v))
		if !sev.Valid() {
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "unknown severity "+v, nil)
			return
		}
		filter.Severity = sev
	}
	if v := c.Query("status"); v != "" {
		st, ok := issues.ParseStatus(v)
		if !ok {
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "unknown status "+v, nil)
			return
		}
		filter.Status = st
	}

	list, err := h.Svc.ListIssues(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		writeError(c, err, "failed to list issues")
		return
	}
	if list == nil {
		list = []issues.Issue{}
	}
	respond.OK(c, list)
}

func (h *Handler) ingestCoverage(c *gin.Context) {
	analysisID := c.Param("id")
	c.Set(middleware.AnalysisIDKey, analysisID)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCoverageBytes+1<<20)

	format := c.Query("format")
	var raw []byte
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if !parseForm(c) {
			return
		}
		if format == "" {
			format = c.PostForm("format")
		}
		fh, err := c.FormFile("file")
		if err != nil {
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "file is required", []map[string]string{
				{"field": "file", "issue": "missing"},
			})
			return
		}
		raw, err = readPart(fh, maxCoverageBytes)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, err.Error(), nil)
			return
		}
	} else {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			respond.Error(c, http.StatusRequestEntityTooLarge, respond.CodePayloadTooLarge, "coverage report too large", nil)
			return
		}
		raw = body
	}
	if strings.TrimSpace(format) == "" {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "format is required", []map[string]string{
			{"field": "format", "issue": "missing"},
		})
		return
	}

	ctx := telemetry.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	report, err := h.Svc.IngestCoverage(ctx, analysisID, format, raw)
	if err != nil {
		writeError(c, err, "failed to ingest coverage")
		return
	}
	respond.Created(c, coverageSummary(report))
}

func (h *Handler) getCoverage(c *gin.Context) {
	report, err := h.Svc.GetCoverage(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to fetch coverage")
		return
	}
	respond.OK(c, report)
}

func coverageSummary(r coverage.Report) gin.H {
	return gin.H{
		"id":                    r.ID,
		"analysisId":            r.AnalysisID,
		"format":                r.Format,
		"totalLines":            r.TotalLines,
		"coveredLines":          r.CoveredLines,
		"totalBranches":         r.TotalBranches,
		"coveredBranches":       r.CoveredBranches,
		"coveragePercent":       r.CoveragePercent,
		"branchCoveragePercent": r.BranchCoveragePercent,
		"files":                 len(r.Files),
		"createdAt":             r.CreatedAt,
	}
}

func (h *Handler) qualityGate(c *gin.Context) {
	report, err := h.Svc.QualityGate(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to evaluate quality gate")
		return
	}
	respond.OK(c, report)
}

func (h *Handler) sourceURL(c *gin.Context) {
	url, err := h.Svc.SourceURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to issue source url")
		return
	}
	respond.OK(c, gin.H{"url": url, "expiresIn": int(sourceURLTTL.Seconds())})
}

func writeError(c *gin.Context, err error, fallback string) {
	var reportErr *issues.ReportError
	var parseErr *coverage.ParseError
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "analysis not found", nil)
	case errors.Is(err, coverage.ErrNotFound):
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "no coverage ingested for this analysis", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, err.Error(), nil)
	case errors.As(err, &maxBytesErr):
		respond.Error(c, http.StatusRequestEntityTooLarge, respond.CodePayloadTooLarge, "upload too large", nil)
	case errors.As(err, &reportErr):
		respond.Error(c, http.StatusUnprocessableEntity, "invalid_report", reportErr.Error(), nil)
	case errors.As(err, &parseErr):
		respond.Error(c, http.StatusUnprocessableEntity, "invalid_coverage", parseErr.Error(), nil)
	case errors.Is(err, coverage.ErrAlreadyIngested):
		respond.Error(c, http.StatusConflict, "coverage_exists", "coverage already ingested for this analysis", nil)
	case errors.Is(err, ErrNotReady):
		respond.Error(c, http.StatusConflict, "not_ready", "analysis has no metrics yet", nil)
	case errors.Is(err, object.ErrPresignUnsupported):
		respond.Error(c, http.StatusNotImplemented, "not_supported", "object store cannot issue download urls", nil)
	case errors.Is(err, queue.ErrJobQueueNotConfigured):
		respond.Error(c, http.StatusServiceUnavailable, respond.CodeQueueUnavailable, "job queue not configured", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, fallback, nil)
	}
}
