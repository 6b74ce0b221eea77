package projects

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo keeps settings in memory.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Settings
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Settings)}
}

func (r *MemoryRepo) Get(ctx context.Context, projectID string) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return Settings{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.data[projectID]
	if !ok {
		return Settings{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepo) Save(ctx context.Context, s Settings) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return Settings{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s.UpdatedAt = time.Now().UTC()
	r.data[s.ProjectID] = s
	return s, nil
}

var _ Repo = (*MemoryRepo)(nil)
