package qualitygate

import "context"

// Repo persists project quality gates.
type Repo interface {
	GetByProject(ctx context.Context, projectID string) (Gate, error)
	// Save creates or replaces the gate of gate.ProjectID.
	Save(ctx context.Context, gate Gate) (Gate, error)
}
