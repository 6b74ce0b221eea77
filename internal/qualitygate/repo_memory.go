package qualitygate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo keeps gates in memory.
type MemoryRepo struct {
	mu        sync.RWMutex
	byProject map[string]Gate
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byProject: make(map[string]Gate)}
}

func (r *MemoryRepo) GetByProject(ctx context.Context, projectID string) (Gate, error) {
	if err := ctx.Err(); err != nil {
		return Gate{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.byProject[projectID]
	if !ok {
		return Gate{}, ErrNotFound
	}
	return cloneGate(g), nil
}

func (r *MemoryRepo) Save(ctx context.Context, gate Gate) (Gate, error) {
	if err := ctx.Err(); err != nil {
		return Gate{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byProject[gate.ProjectID]; ok {
		gate.ID = existing.ID
	}
	if gate.ID == "" {
		gate.ID = uuid.NewString()
	}
	gate.IsDefault = false
	gate.UpdatedAt = time.Now().UTC()
	r.byProject[gate.ProjectID] = cloneGate(gate)
	return gate, nil
}

func cloneGate(g Gate) Gate {
	conds := make([]Condition, len(g.Conditions))
	copy(conds, g.Conditions)
	g.Conditions = conds
	return g
}

var _ Repo = (*MemoryRepo)(nil)
