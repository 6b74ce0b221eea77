package qualitygate

import (
	"context"
	"errors"
	"strings"

	"quality-backend/internal/shared/telemetry"
)

// Service resolves the gate in force for a project.
type Service struct {
	Repo     Repo
	Defaults Defaults
}

// ForProject returns the project's gate, falling back to the default gate.
func (s *Service) ForProject(ctx context.Context, projectID string) (Gate, error) {
	gate, err := s.Repo.GetByProject(ctx, projectID)
	if errors.Is(err, ErrNotFound) {
		return s.Defaults.DefaultGate(projectID), nil
	}
	if err != nil {
		return Gate{}, err
	}
	return gate, nil
}

// Update validates and stores the project's gate.
func (s *Service) Update(ctx context.Context, projectID, name string, conds []Condition) (Gate, error) {
	normalized, err := NormalizeConditions(conds)
	if err != nil {
		return Gate{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = s.Defaults.Gate.Name
	}
	gate, err := s.Repo.Save(ctx, Gate{ProjectID: projectID, Name: name, Conditions: normalized})
	if err != nil {
		return Gate{}, err
	}
	telemetry.Info("quality_gate.updated", map[string]any{
		"request_id": telemetry.RequestIDFromContext(ctx),
		"project_id": projectID,
		"conditions": len(gate.Conditions),
	})
	return gate, nil
}
