package projects

import (
	"context"
	"errors"

	"quality-backend/internal/shared/telemetry"
)

// Service reads and writes project settings.
type Service struct {
	Repo Repo
}

// Settings returns the stored settings or the defaults.
func (s *Service) Settings(ctx context.Context, projectID string) (Settings, error) {
	settings, err := s.Repo.Get(ctx, projectID)
	if errors.Is(err, ErrNotFound) {
		return DefaultSettings(projectID), nil
	}
	return settings, err
}

// Update validates and stores settings for a project.
func (s *Service) Update(ctx context.Context, projectID string, in Settings) (Settings, error) {
	in.ProjectID = projectID
	normalized, err := in.Normalize()
	if err != nil {
		return Settings{}, err
	}
	saved, err := s.Repo.Save(ctx, normalized)
	if err != nil {
		return Settings{}, err
	}
	telemetry.Info("project.settings.updated", map[string]any{
		"request_id":  telemetry.RequestIDFromContext(ctx),
		"project_id":  projectID,
		"leak_period": string(saved.LeakPeriod),
	})
	return saved, nil
}
