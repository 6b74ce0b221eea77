package projects

import "context"

// Repo persists project settings.
type Repo interface {
	Get(ctx context.Context, projectID string) (Settings, error)
	Save(ctx context.Context, s Settings) (Settings, error)
}
