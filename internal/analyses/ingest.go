package analyses

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"quality-backend/internal/coverage"
	"quality-backend/internal/issues"
	"quality-backend/internal/measures"
	"quality-backend/internal/qualitygate"
	"quality-backend/internal/shared/metrics"
	"quality-backend/internal/shared/telemetry"
)

// IngestCoverage parses and stores the coverage report of an analysis.
// Coverage is write-once; a second upload returns coverage.ErrAlreadyIngested.
// When the analysis already succeeded its metrics and gate status are refreshed.
func (s *Service) IngestCoverage(ctx context.Context, analysisID, formatTag string, raw []byte) (coverage.Report, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "coverage.ingest")
	defer span.End()
	span.SetAttributes(attribute.String("analysis.id", analysisID), attribute.String("coverage.format", formatTag))

	format, err := coverage.ParseFormat(formatTag)
	if err != nil {
		metrics.IncCoverageIngest("UNKNOWN", "invalid")
		return coverage.Report{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return coverage.Report{}, err
	}
	if _, err := s.Coverage.GetByAnalysis(ctx, analysisID); err == nil {
		return coverage.Report{}, coverage.ErrAlreadyIngested
	} else if !errors.Is(err, coverage.ErrNotFound) {
		return coverage.Report{}, fmt.Errorf("coverage lookup: %w", err)
	}

	parsed, err := coverage.Parse(format, raw)
	if err != nil {
		metrics.IncCoverageIngest(string(format), "invalid")
		return coverage.Report{}, err
	}

	report := coverage.Report{
		ID:             uuid.NewString(),
		AnalysisID:     a.ID,
		ArtifactKey:    path.Join("projects", a.ProjectID, "analyses", a.ID, "coverage", strings.ToLower(string(format))),
		CreatedAt:      s.now(),
		ParsedCoverage: parsed,
	}
	if err := s.put(ctx, report.ArtifactKey, "text/plain", bytes.NewReader(raw)); err != nil {
		metrics.IncCoverageIngest(string(format), "error")
		return coverage.Report{}, err
	}
	if err := s.Coverage.Create(ctx, report); err != nil {
		if !errors.Is(err, coverage.ErrAlreadyIngested) {
			metrics.IncCoverageIngest(string(format), "error")
		}
		return coverage.Report{}, err
	}
	metrics.IncCoverageIngest(string(format), "ok")
	telemetry.Info("coverage.ingested", map[string]any{
		"request_id":       telemetry.RequestIDFromContext(ctx),
		"analysis_id":      a.ID,
		"project_id":       a.ProjectID,
		"format":           string(format),
		"files":            len(parsed.Files),
		"coverage_percent": parsed.CoveragePercent,
	})

	// Processing may have finished while the report was stored.
	a, err = s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return coverage.Report{}, err
	}
	if err := s.refreshLateCoverage(ctx, a); err != nil {
		return coverage.Report{}, err
	}
	return report, nil
}

// refreshLateCoverage recomputes the results of a SUCCESS analysis whose
// metrics were computed before its coverage report was stored.
func (s *Service) refreshLateCoverage(ctx context.Context, a Analysis) error {
	if a.Status != StatusSuccess {
		return nil
	}
	if _, ok := a.Metrics.Get(measures.KeyCoverage); ok {
		return nil
	}
	if _, err := s.Coverage.GetByAnalysis(ctx, a.ID); err != nil {
		if errors.Is(err, coverage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("coverage lookup: %w", err)
	}
	return s.refreshResults(ctx, a)
}

// GetCoverage returns the stored coverage report of an analysis.
func (s *Service) GetCoverage(ctx context.Context, analysisID string) (coverage.Report, error) {
	if _, err := s.Repo.GetByID(ctx, analysisID); err != nil {
		return coverage.Report{}, err
	}
	return s.Coverage.GetByAnalysis(ctx, analysisID)
}

func (s *Service) refreshResults(ctx context.Context, a Analysis) error {
	list, err := s.Issues.ListByAnalysis(ctx, a.ID, issues.Filter{})
	if err != nil {
		return fmt.Errorf("issues lookup: %w", err)
	}
	var baseline *Analysis
	if a.BaselineAnalysisID != nil {
		b, err := s.Repo.GetByID(ctx, *a.BaselineAnalysisID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("baseline lookup: %w", err)
		}
		if err == nil {
			baseline = &b
		}
	}
	results, err := s.computeResults(ctx, a, list, baseline)
	if err != nil {
		return err
	}
	// Keep the original baseline even if it could not be reloaded.
	results.BaselineAnalysisID = a.BaselineAnalysisID
	return s.Repo.SaveResults(ctx, a.ID, results)
}

// GateReport is the quality gate payload of an analysis. Status comes from
// the project's current gate; RecordedStatus is the verdict stored when the
// analysis finished and differs after the gate is edited.
type GateReport struct {
	AnalysisID     string                        `json:"analysisId"`
	Status         qualitygate.Status            `json:"status"`
	RecordedStatus qualitygate.Status            `json:"recordedStatus,omitempty"`
	Conditions     []qualitygate.ConditionResult `json:"conditions"`
	Metrics        map[string]float64            `json:"metrics"`
	MetricsNew     map[string]float64            `json:"metricsNew"`
}

// QualityGate evaluates the project's current gate against the stored
// metrics of an analysis. Analyses without metrics return ErrNotReady.
func (s *Service) QualityGate(ctx context.Context, analysisID string) (GateReport, error) {
	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return GateReport{}, err
	}
	if a.Metrics == nil {
		return GateReport{}, ErrNotReady
	}
	gate, err := s.Gates.ForProject(ctx, a.ProjectID)
	if err != nil {
		return GateReport{}, fmt.Errorf("quality gate lookup: %w", err)
	}
	res := qualitygate.Evaluate(gate, a.Metrics, a.MetricsNew)
	out := GateReport{
		AnalysisID:     a.ID,
		Status:         res.Status,
		RecordedStatus: a.QualityGateStatus,
		Conditions:     res.Conditions,
		Metrics:        a.Metrics,
		MetricsNew:     a.MetricsNew,
	}
	if out.MetricsNew == nil {
		out.MetricsNew = map[string]float64{}
	}
	return out, nil
}
